package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// TempPrefix marks in-flight files so directory listings can skip them.
const TempPrefix = ".tmp-"

// AtomicFile writes to a temporary sibling and renames it over the target on
// Commit, so readers only ever observe the previous or the complete new file.
type AtomicFile struct {
	target string
	file   *os.File
	done   bool
}

// CreateAtomic opens a temporary file next to target. The caller must call
// exactly one of Commit or Abort.
func CreateAtomic(target string, mode os.FileMode) (*AtomicFile, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure directory: %w", err)
	}
	file, err := os.CreateTemp(dir, TempPrefix+filepath.Base(target)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if err := file.Chmod(mode); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return nil, fmt.Errorf("chmod temp file: %w", err)
	}
	return &AtomicFile{target: target, file: file}, nil
}

func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.file.Write(p)
}

// Commit flushes the temporary file and moves it into place.
func (a *AtomicFile) Commit() error {
	if a.done {
		return fmt.Errorf("atomic write %s: already finished", a.target)
	}
	a.done = true
	if err := a.file.Sync(); err != nil {
		_ = a.file.Close()
		_ = os.Remove(a.file.Name())
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := a.file.Close(); err != nil {
		_ = os.Remove(a.file.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(a.file.Name(), a.target); err != nil {
		_ = os.Remove(a.file.Name())
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Abort discards the temporary file and leaves the target untouched.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	_ = a.file.Close()
	_ = os.Remove(a.file.Name())
}

// WriteFileAtomic replaces path with data in a single rename.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	file, err := CreateAtomic(path, mode)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Abort()
		return fmt.Errorf("write temp file: %w", err)
	}
	return file.Commit()
}
