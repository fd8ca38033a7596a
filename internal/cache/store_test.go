package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestStorePutAndGet(t *testing.T) {
	store := newTestStore(t)
	locator := Locator{Key: "pages-view-1", Ext: "html"}

	modTime := time.Now().Add(-time.Hour).UTC()
	payload := []byte("<!--cachetime:0;ext:html-->Foo bar")
	entry, err := store.Put(context.Background(), locator, bytes.NewReader(payload), PutOptions{ModTime: modTime})
	if err != nil {
		t.Fatalf("put error: %v", err)
	}
	if filepath.Base(entry.FilePath) != "pages-view-1.html" {
		t.Fatalf("unexpected file name: %s", entry.FilePath)
	}

	result, err := store.Get(context.Background(), locator)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	defer result.Reader.Close()

	body, err := io.ReadAll(result.Reader)
	if err != nil {
		t.Fatalf("read cached body error: %v", err)
	}
	if string(body) != string(payload) {
		t.Fatalf("cached payload mismatch: %s", string(body))
	}
	if result.Entry.SizeBytes != int64(len(payload)) {
		t.Fatalf("size mismatch: %d", result.Entry.SizeBytes)
	}
	if !result.Entry.ModTime.Equal(modTime) {
		t.Fatalf("modtime mismatch: expected %v got %v", modTime, result.Entry.ModTime)
	}
}

func TestStorePutOverwrites(t *testing.T) {
	store := newTestStore(t)
	locator := Locator{Key: "_root", Ext: "html"}

	for _, body := range []string{"first", "second"} {
		if _, err := store.Put(context.Background(), locator, bytes.NewReader([]byte(body)), PutOptions{}); err != nil {
			t.Fatalf("put error: %v", err)
		}
	}

	result, err := store.Get(context.Background(), locator)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	defer result.Reader.Close()
	body, _ := io.ReadAll(result.Reader)
	if string(body) != "second" {
		t.Fatalf("expected last write to win, got %s", string(body))
	}
}

func TestStorePutRecreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "views")
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove dir: %v", err)
	}

	if _, err := store.Put(context.Background(), Locator{Key: "_root", Ext: "html"}, bytes.NewReader(nil), PutOptions{}); err != nil {
		t.Fatalf("put should recreate the directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "_root.html")); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), Locator{Key: "missing", Ext: "html"})
	if err == nil || err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRejectsUnsafeLocator(t *testing.T) {
	store := newTestStore(t)
	cases := []Locator{
		{Key: "", Ext: "html"},
		{Key: "foo", Ext: ""},
		{Key: "../escape", Ext: "html"},
		{Key: "foo/bar", Ext: "html"},
	}
	for _, loc := range cases {
		_, err := store.Put(context.Background(), loc, bytes.NewReader([]byte("x")), PutOptions{})
		if !errors.Is(err, ErrInvalidLocator) {
			t.Fatalf("expected ErrInvalidLocator for %+v, got %v", loc, err)
		}
	}
}

func TestStoreIgnoresDirectories(t *testing.T) {
	store := newTestStore(t)
	locator := Locator{Key: "pages", Ext: "html"}

	fs, ok := store.(*fileStore)
	if !ok {
		t.Fatalf("unexpected store type %T", store)
	}

	filePath, err := fs.entryPath(locator)
	if err != nil {
		t.Fatalf("path error: %v", err)
	}
	if err := os.MkdirAll(filePath, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}

	if _, err := store.Get(context.Background(), locator); err == nil || err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
}

func TestStoreConcurrentPutsLeaveOneFile(t *testing.T) {
	store := newTestStore(t)
	locator := Locator{Key: "hot", Ext: "html"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Put(context.Background(), locator, bytes.NewReader([]byte("same")), PutOptions{}); err != nil {
				t.Errorf("put error: %v", err)
			}
		}()
	}
	wg.Wait()

	fs := store.(*fileStore)
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, got %d entries", len(entries))
	}
	if len(fs.locks) != 0 {
		t.Fatalf("expected entry locks to be released, got %d", len(fs.locks))
	}
}

// newTestStore returns a Store backed by a temporary directory.
func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
