package testsupport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"podsearch/internal/blobstore"
	"podsearch/internal/services"
)

// MemoryStore is an in-memory blobstore.Store with failure injection.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]struct{}

	// FailSave makes SaveFile and streamed commits fail for matching keys.
	FailSave func(key string) bool
	// FailGet makes GetFile fail with a storage error for matching keys.
	FailGet func(key string) bool

	saves map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: map[string][]byte{},
		dirs:  map[string]struct{}{},
		saves: map[string]int{},
	}
}

// Put seeds a file without counting it as a save.
func (m *MemoryStore) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = append([]byte(nil), data...)
}

// Get returns a file's content or nil.
func (m *MemoryStore) Get(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil
	}
	return append([]byte(nil), data...)
}

// SaveCount reports how many times key was written through the Store API.
func (m *MemoryStore) SaveCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[key]
}

// Keys returns every stored key, sorted.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.files))
	for k := range m.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryStore) FileExists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok, nil
}

func (m *MemoryStore) GetFile(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.FailGet != nil && m.FailGet(key) {
		return nil, fmt.Errorf("%w: injected read failure for %s", services.ErrStorage, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", blobstore.ErrNotExist, key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) SaveFile(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := blobstore.CleanKey(key); err != nil {
		return err
	}
	if m.FailSave != nil && m.FailSave(key) {
		return fmt.Errorf("%w: injected write failure for %s", services.ErrStorage, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = append([]byte(nil), data...)
	m.saves[key]++
	return nil
}

func (m *MemoryStore) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := normalizedPrefix(prefix)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for key := range m.files {
		if !strings.HasPrefix(key, p) {
			continue
		}
		if strings.Contains(strings.TrimPrefix(key, p), "/") {
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) ListDirectories(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := normalizedPrefix(prefix)
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]struct{}{}
	collect := func(key string) {
		if !strings.HasPrefix(key, p) {
			return
		}
		rest := strings.TrimPrefix(key, p)
		if idx := strings.Index(rest, "/"); idx > 0 {
			seen[rest[:idx]] = struct{}{}
		}
	}
	for key := range m.files {
		collect(key)
	}
	for dir := range m.dirs {
		collect(dir + "/")
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) CreateDirectory(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[strings.Trim(prefix, "/")] = struct{}{}
	return nil
}

func (m *MemoryStore) DeleteFile(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *MemoryStore) GetDirectorySize(ctx context.Context, prefix string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p := normalizedPrefix(prefix)
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for key, data := range m.files {
		if strings.HasPrefix(key, p) {
			total += int64(len(data))
		}
	}
	return total, nil
}

// CreateFile implements blobstore.StreamSaver.
func (m *MemoryStore) CreateFile(ctx context.Context, key string) (blobstore.PendingFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryPending{store: m, ctx: ctx, key: key}, nil
}

type memoryPending struct {
	store *MemoryStore
	ctx   context.Context
	key   string
	buf   bytes.Buffer
	done  bool
}

func (p *memoryPending) Write(b []byte) (int, error) {
	if p.done {
		return 0, errors.New("write after finish")
	}
	return p.buf.Write(b)
}

func (p *memoryPending) Commit() error {
	if p.done {
		return errors.New("commit after finish")
	}
	p.done = true
	return p.store.SaveFile(p.ctx, p.key, p.buf.Bytes())
}

func (p *memoryPending) Abort() { p.done = true }

func normalizedPrefix(prefix string) string {
	p := strings.Trim(prefix, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

var (
	_ blobstore.Store       = (*MemoryStore)(nil)
	_ blobstore.StreamSaver = (*MemoryStore)(nil)
)
