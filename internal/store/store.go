// Package store journals operation records to SQLite so they can be listed
// and replayed later.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/opstream/internal/event"
)

// ErrNotFound is returned when an operation does not exist.
var ErrNotFound = errors.New("not found")

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// Operation is a journaled operation instance.
type Operation struct {
	ID      string
	Label   string
	Source  string // scenario file, "replay", ...
	Began   time.Time
	Ended   time.Time // zero while the stream is open
	Records int       // filled by Operations and Operation
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every connection in the pool sees one database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
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
	CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		began_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS records (
		op_id TEXT NOT NULL REFERENCES operations(id),
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		at DATETIME NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (op_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_operations_began ON operations(began_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// CreateOperation records a new operation. Creating an existing ID is a
// no-op, so a replayed stream can journal under its original ID.
func (s *Store) CreateOperation(op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO operations (id, label, source, began_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, op.ID, op.Label, op.Source, op.Began.UTC())
	if err != nil {
		return fmt.Errorf("create operation %s: %w", op.ID, err)
	}
	return nil
}

// FinishOperation stamps the end of an operation's stream.
func (s *Store) FinishOperation(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE operations SET ended_at = ? WHERE id = ? AND ended_at IS NULL", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("finish operation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := s.db.QueryRow("SELECT 1 FROM operations WHERE id = ?", id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("finish operation %s: %w", id, ErrNotFound)
			}
			return err
		}
	}
	return nil
}

// AppendRecord stores the record at position seq of an operation. Returns
// false if (opID, seq) was already journaled; the stored copy is kept.
func (s *Store) AppendRecord(opID string, seq int, r event.Record) (bool, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("encode record: %w", err)
	}
	at := r.At
	if at.IsZero() {
		at = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO records (op_id, seq, kind, at, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(op_id, seq) DO NOTHING
	`, opID, seq, string(r.Kind), at.UTC(), string(body))
	if err != nil {
		return false, fmt.Errorf("append record %s/%d: %w", opID, seq, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Records returns an operation's records in sequence order.
// Thread-safe: acquires read lock.
func (s *Store) Records(opID string) ([]event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT body FROM records WHERE op_id = ? ORDER BY seq", opID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []event.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		r, err := event.ParseRecord([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("record of %s: %w", opID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

const selectOperations = `
	SELECT o.id, o.label, o.source, o.began_at, o.ended_at,
		(SELECT COUNT(*) FROM records r WHERE r.op_id = o.id)
	FROM operations o
`

// Operations lists journaled operations, newest first.
// Thread-safe: acquires read lock.
func (s *Store) Operations(limit int) ([]Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(selectOperations+" ORDER BY o.began_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Operation returns one journaled operation.
// Thread-safe: acquires read lock.
func (s *Store) Operation(id string) (Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, err := scanOperation(s.db.QueryRow(selectOperations+" WHERE o.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Operation{}, fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	return op, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (Operation, error) {
	var op Operation
	var ended sql.NullTime
	if err := row.Scan(&op.ID, &op.Label, &op.Source, &op.Began, &ended, &op.Records); err != nil {
		return Operation{}, err
	}
	if ended.Valid {
		op.Ended = ended.Time
	}
	return op, nil
}
