package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestSQLStore(t *testing.T) (*SQLStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shareboard.db")
	store, err := NewSQLStore(path)
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestSQLStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store, path := newTestSQLStore(t)

	item, err := store.AddContent(ctx, KindText, "durable", "")
	if err != nil {
		t.Fatalf("AddContent: %v", err)
	}
	if _, err := store.AddUpload(ctx, "/uploads/a.bin", "a.bin", 3); err != nil {
		t.Fatalf("AddUpload: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	items, err := reopened.ListContent(ctx)
	if err != nil {
		t.Fatalf("ListContent after reopen: %v", err)
	}
	if len(items) != 1 || items[0].ID != item.ID {
		t.Fatalf("expected persisted item %q, got %+v", item.ID, items)
	}
	records, err := reopened.ListUploads(ctx)
	if err != nil {
		t.Fatalf("ListUploads after reopen: %v", err)
	}
	if len(records) != 1 || records[0].URL != "/uploads/a.bin" {
		t.Fatalf("expected persisted upload, got %+v", records)
	}
}

func TestSQLStoreMigrateTwice(t *testing.T) {
	store, _ := newTestSQLStore(t)
	// migrations are CREATE IF NOT EXISTS; running again must not fail.
	if err := store.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestBuildDSN(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"board.db", "file:board.db?_pragma=busy_timeout=5000"},
		{"sqlite://board.db", "file:board.db?_pragma=busy_timeout=5000"},
		{"file:board.db?mode=rwc", "file:board.db?mode=rwc&_pragma=busy_timeout=5000"},
	}
	for _, tc := range cases {
		if got := buildDSN(tc.in); got != tc.want {
			t.Errorf("buildDSN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
