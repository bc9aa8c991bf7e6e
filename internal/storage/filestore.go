package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	contentFileName = "contents.json"
	uploadsFileName = "uploads.json"
)

// FileStore keeps each collection as a single JSON document that is
// rewritten wholesale on every mutation. A mutation reads the durable
// snapshot, applies the change, and writes the document back under one
// mutex; without that serialization two concurrent adds could both read
// the same stale snapshot and one would clobber the other's item.
type FileStore struct {
	mu          sync.Mutex
	contentPath string
	uploadsPath string
}

// NewFileStore prepares a store rooted at dir, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: data directory is required", ErrValidation)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, persistErr("create data dir", err)
	}
	return &FileStore{
		contentPath: filepath.Join(dir, contentFileName),
		uploadsPath: filepath.Join(dir, uploadsFileName),
	}, nil
}

// Close is a no-op; the store holds no open handles between operations.
func (s *FileStore) Close() error { return nil }

// ListContent returns the full collection in insertion order. A missing
// document means an uninitialized board and yields an empty list.
func (s *FileStore) ListContent(ctx context.Context) ([]ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readDoc[ContentItem](s.contentPath)
}

// AddContent validates, stamps, appends, and persists the new item. If the
// durable write fails the append never becomes visible.
func (s *FileStore) AddContent(ctx context.Context, kind ContentKind, body, imageRef string) (*ContentItem, error) {
	if err := validateContent(kind, body, imageRef); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := readDoc[ContentItem](s.contentPath)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	item := ContentItem{
		ID:        uuid.NewString(),
		Kind:      kind,
		Body:      body,
		ImageRef:  imageRef,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := writeDoc(s.contentPath, append(items, item)); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteContent removes the matching item, if any, and persists the result.
func (s *FileStore) DeleteContent(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := readDoc[ContentItem](s.contentPath)
	if err != nil {
		return false, err
	}
	kept := items[:0]
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	if err := writeDoc(s.contentPath, kept); err != nil {
		return false, err
	}
	return true, nil
}

// ClearContent persists an empty collection. Safe to call repeatedly.
func (s *FileStore) ClearContent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeDoc(s.contentPath, []ContentItem{})
}

// AddUpload prepends a record so the listing stays newest first.
func (s *FileStore) AddUpload(ctx context.Context, url, originalName string, sizeBytes int64) (*UploadRecord, error) {
	if err := validateUpload(url, originalName); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := readDoc[UploadRecord](s.uploadsPath)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.URL == url {
			return nil, fmt.Errorf("%w: upload url %q already recorded", ErrValidation, url)
		}
	}
	record := UploadRecord{
		URL:          url,
		OriginalName: originalName,
		SizeBytes:    sizeBytes,
		CreatedAt:    time.Now().UTC(),
	}
	if err := writeDoc(s.uploadsPath, append([]UploadRecord{record}, records...)); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *FileStore) ListUploads(ctx context.Context) ([]UploadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readDoc[UploadRecord](s.uploadsPath)
}

func (s *FileStore) DeleteUpload(ctx context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := readDoc[UploadRecord](s.uploadsPath)
	if err != nil {
		return false, err
	}
	kept := records[:0]
	for _, rec := range records {
		if rec.URL != url {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return false, nil
	}
	if err := writeDoc(s.uploadsPath, kept); err != nil {
		return false, err
	}
	return true, nil
}

func readDoc[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, persistErr("read "+filepath.Base(path), err)
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, persistErr("decode "+filepath.Base(path), err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// writeDoc replaces the document atomically: encode to a temp file in the
// same directory, then rename over the target. Readers never observe a
// partially written snapshot.
func writeDoc[T any](path string, items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return persistErr("encode "+filepath.Base(path), err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return persistErr("stage "+filepath.Base(path), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return persistErr("write "+filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return persistErr("flush "+filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return persistErr("replace "+filepath.Base(path), err)
	}
	return nil
}
