package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"podsearch/internal/services"
)

// ErrNotExist reports a missing key. It matches services.ErrNotFound.
var ErrNotExist = fmt.Errorf("blob %w", services.ErrNotFound)

// Store is the key/value blob storage the pipeline reads audio from and
// writes derived artifacts to. Keys use "/" separators and never start with one.
type Store interface {
	FileExists(ctx context.Context, key string) (bool, error)
	GetFile(ctx context.Context, key string) ([]byte, error)
	SaveFile(ctx context.Context, key string, data []byte) error
	// ListFiles returns the keys of files directly under prefix, sorted.
	ListFiles(ctx context.Context, prefix string) ([]string, error)
	// ListDirectories returns the names of directories directly under prefix, sorted.
	ListDirectories(ctx context.Context, prefix string) ([]string, error)
	CreateDirectory(ctx context.Context, prefix string) error
	DeleteFile(ctx context.Context, key string) error
	// GetDirectorySize sums the size of every file below prefix.
	GetDirectorySize(ctx context.Context, prefix string) (int64, error)
}

// PendingFile is an in-progress streamed write. Commit publishes the content
// in one step; Abort leaves any previous content in place.
type PendingFile interface {
	io.Writer
	Commit() error
	Abort()
}

// StreamSaver is implemented by stores that can accept content without
// holding it all in memory.
type StreamSaver interface {
	CreateFile(ctx context.Context, key string) (PendingFile, error)
}

// StreamLoader is implemented by stores that can stream content out.
type StreamLoader interface {
	OpenFile(ctx context.Context, key string) (io.ReadCloser, error)
}

// Create starts a streamed write to key. Stores without StreamSaver support
// get a buffering writer that saves the whole payload on Commit.
func Create(ctx context.Context, store Store, key string) (PendingFile, error) {
	if saver, ok := store.(StreamSaver); ok {
		return saver.CreateFile(ctx, key)
	}
	return &bufferedFile{ctx: ctx, store: store, key: key}, nil
}

// Open streams the content of key, falling back to GetFile.
func Open(ctx context.Context, store Store, key string) (io.ReadCloser, error) {
	if loader, ok := store.(StreamLoader); ok {
		return loader.OpenFile(ctx, key)
	}
	data, err := store.GetFile(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type bufferedFile struct {
	ctx   context.Context
	store Store
	key   string
	buf   bytes.Buffer
	done  bool
}

func (f *bufferedFile) Write(p []byte) (int, error) {
	if f.done {
		return 0, fmt.Errorf("write %s: already finished", f.key)
	}
	return f.buf.Write(p)
}

func (f *bufferedFile) Commit() error {
	if f.done {
		return fmt.Errorf("commit %s: already finished", f.key)
	}
	f.done = true
	return f.store.SaveFile(f.ctx, f.key, f.buf.Bytes())
}

func (f *bufferedFile) Abort() {
	f.done = true
	f.buf.Reset()
}

// CleanKey normalizes key and rejects values that would escape the store root.
func CleanKey(key string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty storage key", services.ErrStorage)
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." || segment == "." || segment == "" {
			return "", fmt.Errorf("%w: invalid storage key %q", services.ErrStorage, key)
		}
	}
	if strings.Contains(trimmed, `\`) {
		return "", fmt.Errorf("%w: invalid storage key %q", services.ErrStorage, key)
	}
	return path.Clean(trimmed), nil
}

// CleanPrefix is CleanKey for listing prefixes, where the root ("") is allowed.
func CleanPrefix(prefix string) (string, error) {
	if strings.Trim(strings.TrimSpace(prefix), "/") == "" {
		return "", nil
	}
	return CleanKey(prefix)
}

// Join builds a key from a prefix and a name.
func Join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
