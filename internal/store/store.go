// Package store persists documents and their sanitized chunk records in
// SQLite.
//
// The database is opened with production pragmas applied through EXEC:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/docchunk/internal/docmodel"
	"github.com/dgallion1/docchunk/internal/sanitize"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	format          TEXT NOT NULL DEFAULT '',
	content_hash    TEXT NOT NULL DEFAULT '',
	paragraph_count INTEGER NOT NULL DEFAULT 0,
	chunk_count     INTEGER NOT NULL DEFAULT 0,
	asset_count     INTEGER NOT NULL DEFAULT 0,
	unassigned_images TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);

CREATE TABLE IF NOT EXISTS chunks (
	document_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_id      TEXT NOT NULL,
	document_name TEXT NOT NULL DEFAULT '',
	text          TEXT NOT NULL DEFAULT '',
	metadata      TEXT NOT NULL DEFAULT '{}',
	images        TEXT NOT NULL DEFAULT '',
	vector        BLOB,
	create_time   INTEGER NOT NULL,
	PRIMARY KEY (document_id, chunk_id)
);
`

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

type config struct {
	busyTimeout int
	synchronous string
	mkdirAll    bool
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// Store is a SQLite-backed document and chunk store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" opens a
// private in-memory database on a single connection.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := config{busyTimeout: 10_000, synchronous: "NORMAL"}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: exec schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// migrate adds columns introduced after a database was first created.
func migrate(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('documents') WHERE name = 'unassigned_images'`).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = db.Exec(`ALTER TABLE documents ADD COLUMN unassigned_images TEXT NOT NULL DEFAULT ''`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PutDocument inserts or replaces a document row. Existing chunks are kept.
func (s *Store) PutDocument(ctx context.Context, doc docmodel.Document) error {
	return putDocument(ctx, s.db, doc)
}

func putDocument(ctx context.Context, ex execer, doc docmodel.Document) error {
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO documents (id, name, title, format, content_hash, paragraph_count, chunk_count, asset_count, unassigned_images, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			title = excluded.title,
			format = excluded.format,
			content_hash = excluded.content_hash,
			paragraph_count = excluded.paragraph_count,
			chunk_count = excluded.chunk_count,
			asset_count = excluded.asset_count,
			unassigned_images = excluded.unassigned_images`,
		doc.ID, doc.Name, doc.Title, doc.Format, doc.ContentHash,
		doc.ParagraphCount, doc.ChunkCount, doc.AssetCount, doc.UnassignedImages, created.UnixMilli())
	if err != nil {
		return fmt.Errorf("put document %s: %w", doc.ID, err)
	}
	return nil
}

// PutChunk inserts or replaces one chunk record of an existing document.
func (s *Store) PutChunk(ctx context.Context, docID string, rec sanitize.Record) error {
	return putChunk(ctx, s.db, docID, rec)
}

func putChunk(ctx context.Context, ex execer, docID string, rec sanitize.Record) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO chunks (document_id, chunk_id, document_name, text, metadata, images, vector, create_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, chunk_id) DO UPDATE SET
			document_name = excluded.document_name,
			text = excluded.text,
			metadata = excluded.metadata,
			images = excluded.images,
			vector = excluded.vector,
			create_time = excluded.create_time`,
		docID, rec.ChunkID, rec.DocumentName, rec.Text, rec.Metadata, rec.Images,
		encodeVector(rec.Vector), rec.CreateTime)
	if err != nil {
		return fmt.Errorf("put chunk %s/%s: %w", docID, rec.ChunkID, err)
	}
	return nil
}

// ClearChunks deletes every chunk of a document, leaving the document row.
func (s *Store) ClearChunks(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("clear chunks %s: %w", docID, err)
	}
	return nil
}

// SaveDocument replaces a document and all of its chunks in one transaction.
func (s *Store) SaveDocument(ctx context.Context, doc docmodel.Document, records []sanitize.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("clear chunks %s: %w", doc.ID, err)
	}
	if err := putDocument(ctx, tx, doc); err != nil {
		return err
	}
	for _, rec := range records {
		if err := putChunk(ctx, tx, doc.ID, rec); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FindByHash returns the oldest document with the given content hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE content_hash = ? ORDER BY created_at, id LIMIT 1`, hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find by hash: %w", err)
	}
	return id, true, nil
}

const documentColumns = `id, name, title, format, content_hash, paragraph_count, chunk_count, asset_count, unassigned_images, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (docmodel.Document, error) {
	var (
		doc     docmodel.Document
		created int64
	)
	err := sc.Scan(&doc.ID, &doc.Name, &doc.Title, &doc.Format, &doc.ContentHash,
		&doc.ParagraphCount, &doc.ChunkCount, &doc.AssetCount, &doc.UnassignedImages, &created)
	if err != nil {
		return doc, err
	}
	doc.CreatedAt = time.UnixMilli(created).UTC()
	return doc, nil
}

// Document returns one document or ErrNotFound.
func (s *Store) Document(ctx context.Context, id string) (docmodel.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return doc, ErrNotFound
	}
	if err != nil {
		return doc, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns documents newest first.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]docmodel.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []docmodel.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Chunks returns a document's chunk records in chunk order.
func (s *Store) Chunks(ctx context.Context, docID string) ([]sanitize.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, document_name, text, metadata, images, vector, create_time
		FROM chunks WHERE document_id = ?
		ORDER BY CAST(chunk_id AS INTEGER), chunk_id`, docID)
	if err != nil {
		return nil, fmt.Errorf("list chunks %s: %w", docID, err)
	}
	defer rows.Close()

	records := []sanitize.Record{}
	for rows.Next() {
		var (
			rec  sanitize.Record
			blob []byte
		)
		if err := rows.Scan(&rec.ChunkID, &rec.DocumentID, &rec.DocumentName, &rec.Text,
			&rec.Metadata, &rec.Images, &blob, &rec.CreateTime); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		rec.Vector = decodeVector(blob)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteDocument removes a document and its chunks. It returns ErrNotFound if
// the document does not exist.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	// Pragmas are per connection, so the cascade is not relied on.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("delete chunks %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
