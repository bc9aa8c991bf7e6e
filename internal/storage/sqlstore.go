package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"
)

const (
	sqliteConstraintCode = 19
	defaultBusyTimeout   = 5000
)

// SQLStore is the embedded transactional alternative to FileStore. SQLite
// provides the single-writer discipline the contract requires, so the
// read-modify-write cycle collapses into ordinary statements.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (or creates) the SQLite database at the provided path
// and runs migrations. Call Close when done.
func NewSQLStore(path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path is required", ErrValidation)
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, persistErr("open database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, persistErr("configure database", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, persistErr("ping database", err)
	}
	store := &SQLStore{db: db}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying DB connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	path = strings.TrimPrefix(path, "sqlite://")
	if !strings.HasPrefix(path, "file:") && !strings.HasPrefix(path, ":memory:") {
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d", path, separator, defaultBusyTimeout)
}

func (s *SQLStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS contents (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			body TEXT NOT NULL,
			image_ref TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS uploads (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL UNIQUE,
			original_name TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin migration", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return persistErr("migrate", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return persistErr("commit migration", err)
	}
	return nil
}

// ListContent returns all items ordered by insertion.
func (s *SQLStore) ListContent(ctx context.Context) ([]ContentItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, body, image_ref, created_at, updated_at FROM contents ORDER BY seq ASC`)
	if err != nil {
		return nil, persistErr("list contents", err)
	}
	defer rows.Close()
	items := []ContentItem{}
	for rows.Next() {
		var item ContentItem
		if err := rows.Scan(&item.ID, &item.Kind, &item.Body, &item.ImageRef, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, persistErr("scan content", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list contents", err)
	}
	return items, nil
}

func (s *SQLStore) AddContent(ctx context.Context, kind ContentKind, body, imageRef string) (*ContentItem, error) {
	if err := validateContent(kind, body, imageRef); err != nil {
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contents(id, kind, body, image_ref, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.Kind), item.Body, item.ImageRef, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return nil, persistErr("insert content", err)
	}
	return &item, nil
}

func (s *SQLStore) DeleteContent(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contents WHERE id = ?`, id)
	if err != nil {
		return false, persistErr("delete content", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, persistErr("delete content", err)
	}
	return affected > 0, nil
}

func (s *SQLStore) ClearContent(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contents`); err != nil {
		return persistErr("clear contents", err)
	}
	return nil
}

func (s *SQLStore) AddUpload(ctx context.Context, url, originalName string, sizeBytes int64) (*UploadRecord, error) {
	if err := validateUpload(url, originalName); err != nil {
		return nil, err
	}
	record := UploadRecord{
		URL:          url,
		OriginalName: originalName,
		SizeBytes:    sizeBytes,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads(url, original_name, size_bytes, created_at) VALUES(?, ?, ?, ?)`,
		record.URL, record.OriginalName, record.SizeBytes, record.CreatedAt)
	if err != nil {
		if isConstraintError(err) {
			return nil, fmt.Errorf("%w: upload url %q already recorded", ErrValidation, url)
		}
		return nil, persistErr("insert upload", err)
	}
	return &record, nil
}

// ListUploads returns records newest first, matching FileStore ordering.
func (s *SQLStore) ListUploads(ctx context.Context) ([]UploadRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, original_name, size_bytes, created_at FROM uploads ORDER BY seq DESC`)
	if err != nil {
		return nil, persistErr("list uploads", err)
	}
	defer rows.Close()
	records := []UploadRecord{}
	for rows.Next() {
		var rec UploadRecord
		if err := rows.Scan(&rec.URL, &rec.OriginalName, &rec.SizeBytes, &rec.CreatedAt); err != nil {
			return nil, persistErr("scan upload", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list uploads", err)
	}
	return records, nil
}

func (s *SQLStore) DeleteUpload(ctx context.Context, url string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE url = ?`, url)
	if err != nil {
		return false, persistErr("delete upload", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, persistErr("delete upload", err)
	}
	return affected > 0, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// extended constraint codes carry 19 in the low byte
		return sqliteErr.Code()&0xff == sqliteConstraintCode
	}
	return false
}
