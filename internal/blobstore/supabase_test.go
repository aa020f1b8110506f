package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"testing"

	storage_go "github.com/supabase-community/storage-go"
)

// fakeObjectAPI mimics bucket listing semantics: folders have no id and
// listings return only the immediate children of the query path.
type fakeObjectAPI struct {
	objects map[string][]byte
	uploads []storage_go.FileOptions
}

func newFakeObjectAPI() *fakeObjectAPI {
	return &fakeObjectAPI{objects: map[string][]byte{}}
}

func (f *fakeObjectAPI) UploadFile(_ string, path string, data io.Reader, opts ...storage_go.FileOptions) (storage_go.FileUploadResponse, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return storage_go.FileUploadResponse{}, err
	}
	f.objects[path] = body
	f.uploads = append(f.uploads, opts...)
	return storage_go.FileUploadResponse{}, nil
}

func (f *fakeObjectAPI) DownloadFile(_ string, path string, _ ...storage_go.UrlOptions) ([]byte, error) {
	data, ok := f.objects[path]
	if !ok {
		return nil, errors.New("Object not found")
	}
	return data, nil
}

func (f *fakeObjectAPI) ListFiles(_ string, query string, opts storage_go.FileSearchOptions) ([]storage_go.FileObject, error) {
	prefix := query
	if prefix != "" {
		prefix += "/"
	}
	seenDirs := map[string]bool{}
	var out []storage_go.FileObject
	for key, data := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			dir := rest[:idx]
			if !seenDirs[dir] {
				seenDirs[dir] = true
				out = append(out, storage_go.FileObject{Name: dir})
			}
			continue
		}
		out = append(out, storage_go.FileObject{
			Name:     rest,
			Id:       "id-" + key,
			Metadata: map[string]interface{}{"size": float64(len(data))},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeObjectAPI) RemoveFile(_ string, paths []string) ([]storage_go.FileUploadResponse, error) {
	for _, p := range paths {
		delete(f.objects, p)
	}
	return nil, nil
}

func TestSupabaseStoreOperations(t *testing.T) {
	ctx := context.Background()
	api := newFakeObjectAPI()
	store := newSupabaseWithAPI(api, "podsearch")

	if err := store.SaveFile(ctx, "search-entries/show/a.json", []byte(`[]`)); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if err := store.SaveFile(ctx, "search-entries/show/nested/b.json", []byte(`[1]`)); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if len(api.uploads) != 2 || api.uploads[0].Upsert == nil || !*api.uploads[0].Upsert {
		t.Fatalf("uploads must upsert: %+v", api.uploads)
	}
	if *api.uploads[0].ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", *api.uploads[0].ContentType)
	}

	exists, err := store.FileExists(ctx, "search-entries/show/a.json")
	if err != nil || !exists {
		t.Fatalf("FileExists = %v, %v", exists, err)
	}
	if exists, _ := store.FileExists(ctx, "search-entries/show/nested"); exists {
		t.Fatal("folders are not files")
	}

	files, err := store.ListFiles(ctx, "search-entries/show")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if want := []string{"search-entries/show/a.json"}; !reflect.DeepEqual(files, want) {
		t.Fatalf("ListFiles = %v, want %v", files, want)
	}
	dirs, err := store.ListDirectories(ctx, "search-entries/show")
	if err != nil || !reflect.DeepEqual(dirs, []string{"nested"}) {
		t.Fatalf("ListDirectories = %v, %v", dirs, err)
	}
	size, err := store.GetDirectorySize(ctx, "search-entries")
	if err != nil || size != 5 {
		t.Fatalf("GetDirectorySize = %d, %v", size, err)
	}

	if err := store.DeleteFile(ctx, "search-entries/show/a.json"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := store.GetFile(ctx, "search-entries/show/a.json"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSupabaseListPaginates(t *testing.T) {
	api := newFakeObjectAPI()
	for i := 0; i < supabaseListPageSize+5; i++ {
		api.objects[fmt.Sprintf("audio/show/2024-01-01__ep-%04d.mp3", i)] = []byte("z")
	}
	store := newSupabaseWithAPI(api, "podsearch")
	files, err := store.ListFiles(context.Background(), "audio/show")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != supabaseListPageSize+5 {
		t.Fatalf("expected all pages, got %d files", len(files))
	}
}
