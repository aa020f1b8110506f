package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"

	"podsearch/internal/services"
)

const supabaseListPageSize = 1000

// objectAPI is the subset of the Supabase storage client used here.
type objectAPI interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	DownloadFile(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) ([]byte, error)
	ListFiles(bucketID, queryPath string, options storage_go.FileSearchOptions) ([]storage_go.FileObject, error)
	RemoveFile(bucketID string, paths []string) ([]storage_go.FileUploadResponse, error)
}

// Supabase stores blobs in a Supabase storage bucket. Directories are
// implicit in object storage, so CreateDirectory is a no-op.
type Supabase struct {
	api    objectAPI
	bucket string
}

// NewSupabase connects to the project at url with the service key.
func NewSupabase(url, key, bucket string) (*Supabase, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: initialize supabase client: %v", services.ErrConfiguration, err)
	}
	return newSupabaseWithAPI(client.Storage, bucket), nil
}

func newSupabaseWithAPI(api objectAPI, bucket string) *Supabase {
	return &Supabase{api: api, bucket: bucket}
}

func (s *Supabase) FileExists(ctx context.Context, key string) (bool, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return false, err
	}
	dir, name := splitKey(clean)
	objects, err := s.listAll(ctx, dir)
	if err != nil {
		return false, err
	}
	for _, obj := range objects {
		if obj.Name == name && !isFolder(obj) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Supabase) GetFile(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := s.api.DownloadFile(s.bucket, clean)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, key)
		}
		return nil, fmt.Errorf("%w: download %s: %v", services.ErrStorage, key, err)
	}
	return data, nil
}

func (s *Supabase) SaveFile(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := CleanKey(key)
	if err != nil {
		return err
	}
	upsert := true
	contentType := contentTypeFor(clean)
	_, err = s.api.UploadFile(s.bucket, clean, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("%w: upload %s: %v", services.ErrStorage, key, err)
	}
	return nil
}

func (s *Supabase) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	clean, err := CleanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	objects, err := s.listAll(ctx, clean)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(objects))
	for _, obj := range objects {
		if isFolder(obj) || obj.Name == "" || strings.HasPrefix(obj.Name, ".") {
			continue
		}
		out = append(out, Join(clean, obj.Name))
	}
	sort.Strings(out)
	return out, nil
}

func (s *Supabase) ListDirectories(ctx context.Context, prefix string) ([]string, error) {
	clean, err := CleanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	objects, err := s.listAll(ctx, clean)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, obj := range objects {
		if isFolder(obj) && obj.Name != "" {
			out = append(out, obj.Name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Supabase) CreateDirectory(ctx context.Context, prefix string) error {
	if _, err := CleanPrefix(prefix); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Supabase) DeleteFile(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := CleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.api.RemoveFile(s.bucket, []string{clean}); err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: delete %s: %v", services.ErrStorage, key, err)
	}
	return nil
}

func (s *Supabase) GetDirectorySize(ctx context.Context, prefix string) (int64, error) {
	clean, err := CleanPrefix(prefix)
	if err != nil {
		return 0, err
	}
	objects, err := s.listAll(ctx, clean)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, obj := range objects {
		if isFolder(obj) {
			size, err := s.GetDirectorySize(ctx, Join(clean, obj.Name))
			if err != nil {
				return 0, err
			}
			total += size
			continue
		}
		total += objectSize(obj)
	}
	return total, nil
}

func (s *Supabase) listAll(ctx context.Context, prefix string) ([]storage_go.FileObject, error) {
	var all []storage_go.FileObject
	for offset := 0; ; offset += supabaseListPageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.api.ListFiles(s.bucket, prefix, storage_go.FileSearchOptions{
			Limit:  supabaseListPageSize,
			Offset: offset,
			SortByOptions: storage_go.SortBy{
				Column: "name",
				Order:  "asc",
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %v", services.ErrStorage, prefix, err)
		}
		all = append(all, page...)
		if len(page) < supabaseListPageSize {
			return all, nil
		}
	}
}

func splitKey(key string) (string, string) {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return "", key
	}
	return key[:idx], key[idx+1:]
}

// Folder placeholders come back from the list endpoint without an id.
func isFolder(obj storage_go.FileObject) bool {
	return obj.Id == ""
}

func objectSize(obj storage_go.FileObject) int64 {
	meta, ok := obj.Metadata.(map[string]interface{})
	if !ok {
		return 0
	}
	switch size := meta["size"].(type) {
	case float64:
		return int64(size)
	case int64:
		return size
	case int:
		return int64(size)
	default:
		return 0
	}
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}

func contentTypeFor(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".srt"):
		return "application/x-subrip"
	default:
		return "application/octet-stream"
	}
}
