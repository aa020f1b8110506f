package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with exactly size bytes. The content is sparse, so
// multi-megabyte fixtures for size-based chunking stay cheap.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("size %s: %v", path, err)
	}
}

// MB converts megabytes to bytes.
func MB(n float64) int64 {
	return int64(n * 1024 * 1024)
}
