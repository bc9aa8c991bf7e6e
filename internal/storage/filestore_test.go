package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreEmptyOnMissingDocuments(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	items, err := store.ListContent(ctx)
	if err != nil {
		t.Fatalf("ListContent on fresh dir: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty collection, got %+v", items)
	}
	records, err := store.ListUploads(ctx)
	if err != nil {
		t.Fatalf("ListUploads on fresh dir: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %+v", records)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	item, err := store.AddContent(ctx, KindText, "durable", "")
	if err != nil {
		t.Fatalf("AddContent: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	items, err := reopened.ListContent(ctx)
	if err != nil {
		t.Fatalf("ListContent after reopen: %v", err)
	}
	if len(items) != 1 || items[0].ID != item.ID {
		t.Fatalf("expected persisted item %q, got %+v", item.ID, items)
	}
}

func TestFileStoreDataDirIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := NewFileStore(blocker); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

// A failed durable write must leave nothing behind: the rejected add stays
// invisible to every later read.
func TestFileStoreWriteFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.AddContent(ctx, KindText, "kept", ""); err != nil {
		t.Fatalf("AddContent: %v", err)
	}

	// swap the content document path for one whose parent is a regular
	// file so the staged write cannot succeed.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	broken := &FileStore{
		contentPath: filepath.Join(blocker, contentFileName),
		uploadsPath: filepath.Join(blocker, uploadsFileName),
	}
	if _, err := broken.AddContent(ctx, KindText, "lost", ""); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	items, err := store.ListContent(ctx)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(items) != 1 || items[0].Body != "kept" {
		t.Fatalf("expected only the successful add, got %+v", items)
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, contentFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := store.ListContent(context.Background()); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence for corrupt document, got %v", err)
	}
}
