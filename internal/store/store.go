// Package store provides SQLite persistence for the mock collection backend.
//
// Every collection lives in one table as JSON documents keyed by
// (resource, id). Insertion order is kept in an autoincrement column.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when inserting an id that already exists.
var ErrConflict = errors.New("record already exists")

// Doc is one stored record, as decoded JSON.
type Doc map[string]any

// ID returns the document's "id" field.
func (d Doc) ID() string {
	id, _ := d["id"].(string)
	return id
}

// Clone returns a shallow copy of d.
func (d Doc) Clone() Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Store handles SQLite persistence. Safe for concurrent use: writes are
// serialized by mu.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the database at dbPath. ":memory:" or "" gives a
// private in-memory database.
func Open(dbPath string) (*Store, error) {
	memory := dbPath == "" || dbPath == ":memory:"
	connStr := dbPath
	if memory {
		// Each in-memory store gets its own named database so parallel
		// stores in one process stay separate.
		connStr = "file:staffproof-" + uuid.NewString() + "?mode=memory&cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		resource TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(resource, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_resource ON records(resource, seq DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Tx is a read-write transaction over the records table.
type Tx struct {
	tx *sql.Tx
}

// Update runs fn in a transaction, committing if it returns nil.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	return fn(&Tx{tx: tx})
}

// Get returns one record.
func (t *Tx) Get(ctx context.Context, resource, id string) (Doc, error) {
	var body string
	err := t.tx.QueryRowContext(ctx,
		"SELECT body FROM records WHERE resource = ? AND id = ?", resource, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", resource, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", resource, id, err)
	}
	return decode(body)
}

// All returns every record of resource, newest insert first.
func (t *Tx) All(ctx context.Context, resource string) ([]Doc, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT body FROM records WHERE resource = ? ORDER BY seq DESC", resource)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", resource, err)
	}
	defer rows.Close()

	docs := []Doc{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", resource, err)
		}
		doc, err := decode(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Insert stores a new record, assigning an id when doc has none.
func (t *Tx) Insert(ctx context.Context, resource string, doc Doc) (Doc, error) {
	doc = doc.Clone()
	if strings.TrimSpace(doc.ID()) == "" {
		doc["id"] = uuid.NewString()
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", resource, err)
	}

	res, err := t.tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO records (resource, id, body, updated_at) VALUES (?, ?, ?, ?)",
		resource, doc.ID(), string(body), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", resource, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%s/%s: %w", resource, doc.ID(), ErrConflict)
	}
	return doc, nil
}

// Put replaces an existing record. The id inside doc is forced to id.
func (t *Tx) Put(ctx context.Context, resource, id string, doc Doc) (Doc, error) {
	doc = doc.Clone()
	doc["id"] = id
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", resource, err)
	}

	res, err := t.tx.ExecContext(ctx,
		"UPDATE records SET body = ?, updated_at = ? WHERE resource = ? AND id = ?",
		string(body), time.Now().UTC(), resource, id)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", resource, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%s/%s: %w", resource, id, ErrNotFound)
	}
	return doc, nil
}

// Delete removes a record.
func (t *Tx) Delete(ctx context.Context, resource, id string) error {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM records WHERE resource = ? AND id = ?", resource, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", resource, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s/%s: %w", resource, id, ErrNotFound)
	}
	return nil
}

// Count returns the number of records of resource.
func (t *Tx) Count(ctx context.Context, resource string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE resource = ?", resource).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", resource, err)
	}
	return n, nil
}

func decode(body string) (Doc, error) {
	var doc Doc
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return doc, nil
}
