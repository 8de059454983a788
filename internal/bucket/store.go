// Package bucket persists the named data buckets that carry the migration
// model from one stage to the next.
package bucket

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Bucket names shared by the stages.
const (
	WikiPages           = "wiki-pages"
	PageRevisions       = "page-revisions"
	AttachmentFiles     = "attachment-files"
	DiagramContents     = "diagram-contents"
	Customizations      = "customizations"
	RevisionWikitext    = "revision-wikitext"
	SameNameAttachments = "samename-attachments"
	ExtractedFiles      = "extracted-files"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Entry is one key/value pair of a bucket. Value holds JSON.
type Entry struct {
	Key   string `db:"key"`
	Value []byte `db:"value"`
}

// Store is a SQLite-backed bucket store.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the bucket store at path and migrates its schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bucket store: %w", err)
	}
	// Stages run sequentially; one connection keeps writes ordered.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func applyMigrations(db *sqlx.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read bucket store migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m.Close would close db as well, so the instance is left to the GC.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply bucket store migrations: %w", err)
	}
	return nil
}

// Save replaces the whole content of bucket with entries, keeping their order.
func (s *Store) Save(ctx context.Context, bucket string, entries []Entry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bucket transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM buckets WHERE bucket = ?`, bucket); err != nil {
		return fmt.Errorf("failed to clear bucket %s: %w", bucket, err)
	}
	for i, e := range entries {
		query := `INSERT INTO buckets (bucket, position, key, value) VALUES (?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, bucket, i, e.Key, e.Value); err != nil {
			return fmt.Errorf("failed to write %s/%s: %w", bucket, e.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bucket %s: %w", bucket, err)
	}
	return nil
}

// Load returns all entries of bucket in the order they were saved.
// An unknown bucket is empty.
func (s *Store) Load(ctx context.Context, bucket string) ([]Entry, error) {
	var entries []Entry
	query := `SELECT key, value FROM buckets WHERE bucket = ? ORDER BY position`
	if err := s.db.SelectContext(ctx, &entries, query, bucket); err != nil {
		return nil, fmt.Errorf("failed to load bucket %s: %w", bucket, err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveMap encodes values as JSON and saves them under keys, in key order.
func SaveMap[T any](ctx context.Context, s *Store, bucket string, keys []string, values map[string]T) error {
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v, ok := values[k]
		if !ok {
			return fmt.Errorf("bucket %s: no value for key %q", bucket, k)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", bucket, k, err)
		}
		entries = append(entries, Entry{Key: k, Value: raw})
	}
	return s.Save(ctx, bucket, entries)
}

// LoadMap loads a bucket and decodes every value into T.
func LoadMap[T any](ctx context.Context, s *Store, bucket string) ([]string, map[string]T, error) {
	entries, err := s.Load(ctx, bucket)
	if err != nil {
		return nil, nil, err
	}
	keys := make([]string, 0, len(entries))
	values := make(map[string]T, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			return nil, nil, fmt.Errorf("failed to decode %s/%s: %w", bucket, e.Key, err)
		}
		keys = append(keys, e.Key)
		values[e.Key] = v
	}
	return keys, values, nil
}

// SaveValue stores a single-entry bucket.
func SaveValue[T any](ctx context.Context, s *Store, bucket string, v T) error {
	return SaveMap(ctx, s, bucket, []string{bucket}, map[string]T{bucket: v})
}

// LoadValue loads a single-entry bucket. found is false when it was never saved.
func LoadValue[T any](ctx context.Context, s *Store, bucket string) (v T, found bool, err error) {
	_, values, err := LoadMap[T](ctx, s, bucket)
	if err != nil {
		return v, false, err
	}
	v, found = values[bucket]
	return v, found, nil
}
