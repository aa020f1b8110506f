package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"podsearch/internal/fileutil"
	"podsearch/internal/services"
)

// Local stores blobs as files below a root directory. Writes are atomic
// (temporary sibling plus rename).
type Local struct {
	root string
}

// NewLocal returns a filesystem store rooted at root, creating it if needed.
func NewLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: local store root is required", services.ErrConfiguration)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store root: %v", services.ErrStorage, err)
	}
	return &Local{root: root}, nil
}

// Root returns the store directory.
func (s *Local) Root() string { return s.root }

// Path resolves key to its absolute filesystem location.
func (s *Local) Path(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *Local) dirPath(prefix string) (string, error) {
	clean, err := CleanPrefix(prefix)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return s.root, nil
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *Local) FileExists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := s.Path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", services.ErrStorage, key, err)
	}
	return !info.IsDir(), nil
}

func (s *Local) GetFile(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", services.ErrStorage, key, err)
	}
	return data, nil
}

func (s *Local) SaveFile(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(p, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", services.ErrStorage, key, err)
	}
	return nil
}

func (s *Local) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	return s.list(ctx, prefix, false)
}

func (s *Local) ListDirectories(ctx context.Context, prefix string) ([]string, error) {
	return s.list(ctx, prefix, true)
}

func (s *Local) list(ctx context.Context, prefix string, dirs bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.dirPath(prefix)
	if err != nil {
		return nil, err
	}
	clean, _ := CleanPrefix(prefix)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", services.ErrStorage, prefix, err)
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, fileutil.TempPrefix) || entry.IsDir() != dirs {
			continue
		}
		if dirs {
			out = append(out, name)
		} else {
			out = append(out, Join(clean, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Local) CreateDirectory(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.dirPath(prefix)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", services.ErrStorage, prefix, err)
	}
	return nil
}

// DeleteFile removes key. Deleting a missing key is not an error.
func (s *Local) DeleteFile(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %v", services.ErrStorage, key, err)
	}
	return nil
}

func (s *Local) GetDirectorySize(ctx context.Context, prefix string) (int64, error) {
	dir, err := s.dirPath(prefix)
	if err != nil {
		return 0, err
	}
	var total int64
	err = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), fileutil.TempPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: size of %s: %v", services.ErrStorage, prefix, err)
	}
	return total, nil
}

// CreateFile streams into a temporary file that replaces key on Commit.
func (s *Local) CreateFile(ctx context.Context, key string) (PendingFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	file, err := fileutil.CreateAtomic(p, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", services.ErrStorage, key, err)
	}
	return file, nil
}

// OpenFile streams key from disk.
func (s *Local) OpenFile(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", services.ErrStorage, key, err)
	}
	return file, nil
}
