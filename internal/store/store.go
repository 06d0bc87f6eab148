// Package store provides the SQLite-backed ingestion ledger. Every PDF that
// makes it through the pipeline gets one row keyed by its source ID, so
// operators can see what the vector store holds without scanning it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Document is one ledger row.
type Document struct {
	// Source is where the PDF was read from (path or URL).
	Source string `json:"source"`
	// SourceID is the id written into every chunk payload.
	SourceID string `json:"source_id"`
	// Chunks is how many chunks were upserted.
	Chunks int `json:"chunks"`
	// SHA256 is the hex digest of the raw PDF bytes.
	SHA256 string `json:"sha256"`
	// IngestedAt is when the ingest finished.
	IngestedAt time.Time `json:"ingested_at"`
}

// Ledger records ingested documents. Implementations must be safe for
// concurrent use.
type Ledger interface {
	// Record inserts doc, replacing any existing row with the same SourceID.
	Record(ctx context.Context, doc Document) error
	// Get returns the row for sourceID, or nil when there is none.
	Get(ctx context.Context, sourceID string) (*Document, error)
	// Recent returns up to n rows, newest first.
	Recent(ctx context.Context, n int) ([]Document, error)
	// Close releases any resources held by the ledger.
	Close() error
}

// SQLiteStore is a Ledger backed by a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// DefaultDBPath returns the default ledger path, ~/.ragpdf/ledger.db,
// creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragpdf")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "ledger.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Single writer connection avoids SQLITE_BUSY and keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string { return s.path }

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    source       TEXT    NOT NULL,
    source_id    TEXT    NOT NULL UNIQUE,
    chunks       INTEGER NOT NULL,
    sha256       TEXT    NOT NULL,
    ingested_at  INTEGER NOT NULL  -- Unix timestamp (milliseconds)
);
CREATE INDEX IF NOT EXISTS idx_documents_ingested_at
    ON documents (ingested_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record implements Ledger. A zero IngestedAt is stamped with the current time.
func (s *SQLiteStore) Record(ctx context.Context, doc Document) error {
	if doc.SourceID == "" {
		return fmt.Errorf("store: record: source_id is required")
	}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now()
	}
	const q = `
INSERT INTO documents (source, source_id, chunks, sha256, ingested_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(source_id) DO UPDATE SET
    source      = excluded.source,
    chunks      = excluded.chunks,
    sha256      = excluded.sha256,
    ingested_at = excluded.ingested_at`
	if _, err := s.db.ExecContext(ctx, q, doc.Source, doc.SourceID, doc.Chunks, doc.SHA256, doc.IngestedAt.UnixMilli()); err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Get implements Ledger.
func (s *SQLiteStore) Get(ctx context.Context, sourceID string) (*Document, error) {
	const q = `SELECT source, source_id, chunks, sha256, ingested_at FROM documents WHERE source_id = ?`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, q, sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	return &doc, nil
}

// Recent implements Ledger.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Document, error) {
	const q = `
SELECT source, source_id, chunks, sha256, ingested_at
FROM   documents
ORDER  BY ingested_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return docs, nil
}

// Ping checks the database connection. It lets the server use the ledger as
// a readiness probe.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (Document, error) {
	var doc Document
	var ts int64
	if err := r.Scan(&doc.Source, &doc.SourceID, &doc.Chunks, &doc.SHA256, &ts); err != nil {
		return Document{}, err
	}
	doc.IngestedAt = time.UnixMilli(ts)
	return doc, nil
}
