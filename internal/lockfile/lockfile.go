package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"podsearch/internal/blobstore"
	"podsearch/internal/episode"
	"podsearch/internal/logging"
	"podsearch/internal/services"
)

// DefaultStaleAfter is the age after which an entry is presumed abandoned.
const DefaultStaleAfter = 2 * time.Hour

const guardRetryDelay = 50 * time.Millisecond

// ErrLockWrite reports that the shared lockfile could not be persisted. The
// caller should skip the file it was trying to claim.
var ErrLockWrite = fmt.Errorf("%w: lockfile write failed", services.ErrStorage)

// Entry records that a worker is transcribing a file.
type Entry struct {
	FileKey   string `json:"fileKey"`
	ProcessID string `json:"processId"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// Age returns how long ago the entry was written.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.Timestamp))
}

// File is the persisted lockfile document.
type File struct {
	Entries []Entry `json:"entries"`
	Version int64   `json:"version"`
}

// Coordinator claims files in the shared lockfile so concurrent workers avoid
// duplicate transcription. Coordination is advisory: the store offers no
// compare-and-swap, so two workers on different hosts can still race between
// read and write. Duplicate work is tolerated because every stage is idempotent.
type Coordinator struct {
	// mu serializes read-modify-write cycles within the process. The flock
	// guard only excludes other processes: a shared handle is re-entrant.
	mu     sync.Mutex
	store  blobstore.Store
	key    string
	owner  string
	now    func() time.Time
	logger *slog.Logger
	guard  *flock.Flock
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithOwner overrides the process identifier written into entries.
func WithOwner(owner string) Option {
	return func(c *Coordinator) {
		if strings.TrimSpace(owner) != "" {
			c.owner = owner
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logging.NewComponentLogger(logger, "lockfile")
	}
}

// WithLocalGuard serializes read-modify-write cycles between processes on
// the same host using an flock on path.
func WithLocalGuard(path string) Option {
	return func(c *Coordinator) {
		if strings.TrimSpace(path) != "" {
			c.guard = flock.New(path)
		}
	}
}

// NewOwnerID builds a per-process identifier: host, pid and a random suffix.
func NewOwnerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// New returns a coordinator for the standard lockfile key.
func New(store blobstore.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		key:    episode.LockfileKey,
		owner:  NewOwnerID(),
		now:    time.Now,
		logger: logging.NewComponentLogger(nil, "lockfile"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.guard != nil {
		if err := os.MkdirAll(filepath.Dir(c.guard.Path()), 0o755); err != nil {
			c.logger.Debug("local lock guard disabled", logging.Error(err))
			c.guard = nil
		}
	}
	return c
}

// Owner returns the process identifier used for entries.
func (c *Coordinator) Owner() string { return c.owner }

// TryAcquire claims fileKey. It returns false without error when another
// entry for the same key already exists.
func (c *Coordinator) TryAcquire(ctx context.Context, fileKey string) (bool, error) {
	acquired := false
	err := c.mutate(ctx, func(f *File) bool {
		for _, entry := range f.Entries {
			if entry.FileKey == fileKey {
				c.logger.Debug("file already claimed",
					logging.String(logging.FieldFileKey, fileKey),
					logging.String("holder", entry.ProcessID),
				)
				return false
			}
		}
		f.Entries = append(f.Entries, Entry{
			FileKey:   fileKey,
			ProcessID: c.owner,
			Timestamp: c.now().UnixMilli(),
		})
		acquired = true
		return true
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// Release removes this process's entries for fileKey. Entries written by
// other processes are left alone.
func (c *Coordinator) Release(ctx context.Context, fileKey string) error {
	return c.mutate(ctx, func(f *File) bool {
		kept := f.Entries[:0]
		removed := false
		for _, entry := range f.Entries {
			if entry.FileKey == fileKey && entry.ProcessID == c.owner {
				removed = true
				continue
			}
			kept = append(kept, entry)
		}
		f.Entries = kept
		return removed
	})
}

// PruneStale drops entries older than maxAge and returns how many were removed.
func (c *Coordinator) PruneStale(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultStaleAfter
	}
	now := c.now()
	pruned := 0
	err := c.mutate(ctx, func(f *File) bool {
		kept := f.Entries[:0]
		for _, entry := range f.Entries {
			if entry.Age(now) > maxAge {
				pruned++
				c.logger.Info("pruned stale lock entry",
					logging.String(logging.FieldFileKey, entry.FileKey),
					logging.String("holder", entry.ProcessID),
					logging.Duration("age", entry.Age(now)),
				)
				continue
			}
			kept = append(kept, entry)
		}
		f.Entries = kept
		return pruned > 0
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

// Snapshot returns the current lockfile content.
func (c *Coordinator) Snapshot(ctx context.Context) (File, error) {
	return c.read(ctx), ctx.Err()
}

// mutate runs a read-modify-write cycle. fn reports whether it changed the
// document; unchanged documents are not rewritten.
func (c *Coordinator) mutate(ctx context.Context, fn func(*File) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	unlock, err := c.lockGuard(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	current := c.read(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	if !fn(&current) {
		return nil
	}
	current.Version++
	return c.write(ctx, current)
}

// read never fails: a missing or unparseable lockfile reads as empty.
func (c *Coordinator) read(ctx context.Context) File {
	data, err := c.store.GetFile(ctx, c.key)
	if err != nil {
		if !errors.Is(err, blobstore.ErrNotExist) && ctx.Err() == nil {
			logging.WarnWithContext(c.logger, "lockfile unreadable; treating as empty", "lockfile_read_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "another worker may transcribe the same file"),
				logging.String(logging.FieldErrorHint, "check blob store connectivity"),
			)
		}
		return File{}
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		logging.WarnWithContext(c.logger, "lockfile corrupt; treating as empty", "lockfile_corrupt",
			logging.Error(err),
			logging.String(logging.FieldImpact, "existing claims are ignored until the file is rewritten"),
			logging.String(logging.FieldErrorHint, "run 'podsearch locks list' to inspect the lockfile"),
		)
		return File{}
	}
	return f
}

func (c *Coordinator) write(ctx context.Context, f File) error {
	if f.Entries == nil {
		f.Entries = []Entry{}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrLockWrite, err)
	}
	if err := c.store.SaveFile(ctx, c.key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrLockWrite, err)
	}
	return nil
}

func (c *Coordinator) lockGuard(ctx context.Context) (func(), error) {
	if c.guard == nil {
		return func() {}, nil
	}
	locked, err := c.guard.TryLockContext(ctx, guardRetryDelay)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Debug("local lock guard unavailable", logging.Error(err))
		return func() {}, nil
	}
	if !locked {
		return nil, ctx.Err()
	}
	return func() { _ = c.guard.Unlock() }, nil
}
