// Package storage holds the durable collections behind the board: the
// ordered content log and the upload record list. Two backends implement
// the same Store contract, a whole-file JSON store and an embedded SQLite
// store, so the rest of the server never depends on how snapshots are kept.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ContentKind discriminates what a board item carries.
type ContentKind string

const (
	KindText  ContentKind = "text"
	KindImage ContentKind = "image"
)

// ContentItem is one posted entry on the board. Items are append-only:
// once created they are never edited, only deleted or cleared away.
type ContentItem struct {
	ID        string      `json:"id"`
	Kind      ContentKind `json:"kind"`
	Body      string      `json:"body"`
	ImageRef  string      `json:"imageRef,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// UploadRecord tracks a raw file upload. It lives in its own collection,
// separate from image content items, and is listed newest first.
type UploadRecord struct {
	URL          string    `json:"url"`
	OriginalName string    `json:"originalName"`
	SizeBytes    int64     `json:"sizeBytes"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Error taxonomy shared by both backends. Callers match with errors.Is and
// translate to HTTP statuses at the gateway.
var (
	ErrValidation  = errors.New("invalid input")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
)

// Store is the single-writer content store. Mutating calls are serialized
// internally; reads always observe a fully-formed snapshot.
type Store interface {
	ListContent(ctx context.Context) ([]ContentItem, error)
	AddContent(ctx context.Context, kind ContentKind, body, imageRef string) (*ContentItem, error)
	// DeleteContent reports whether an item was removed; a missing id is a
	// normal false, not an error.
	DeleteContent(ctx context.Context, id string) (bool, error)
	ClearContent(ctx context.Context) error

	AddUpload(ctx context.Context, url, originalName string, sizeBytes int64) (*UploadRecord, error)
	ListUploads(ctx context.Context) ([]UploadRecord, error)
	DeleteUpload(ctx context.Context, url string) (bool, error)

	Close() error
}

func validateContent(kind ContentKind, body, imageRef string) error {
	switch kind {
	case KindText:
		if strings.TrimSpace(body) == "" {
			return fmt.Errorf("%w: text content requires a non-empty body", ErrValidation)
		}
		if imageRef != "" {
			return fmt.Errorf("%w: text content cannot carry an image reference", ErrValidation)
		}
	case KindImage:
		if imageRef == "" {
			return fmt.Errorf("%w: image content requires an image reference", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown content kind %q", ErrValidation, kind)
	}
	return nil
}

func validateUpload(url, originalName string) error {
	if url == "" {
		return fmt.Errorf("%w: upload url is required", ErrValidation)
	}
	if originalName == "" {
		return fmt.Errorf("%w: upload original name is required", ErrValidation)
	}
	return nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
