// Package memorystore provides a durable, SQLite-backed implementation of
// pkg/memory.Store for deployments that need the persistent record map,
// friction ledger, and changelog to survive process restarts. The
// in-memory default lives alongside the Memory Service itself
// (pkg/memory.InMemoryStore); this package supplies the durable backend
// spec.md §3's ambient persistence-backends section calls for.
package memorystore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// SQLiteStore implements pkg/memory.Store over a SQLite database: one
// table per concern (records, friction ledger, changelog), each row a
// JSON blob keyed by a natural id. Mirrors the teacher's
// ObligationStore/MemoryStore split (pkg/runtime/obligation/engine.go) of
// "one narrow interface, one SQL-backed implementation."
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path and ensures
// its schema exists.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memorystore: open %s: %w", path, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an already-open *sql.DB (e.g. one returned by
// sqlmock in tests), ensuring its schema exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_records (id TEXT PRIMARY KEY, body TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS friction_ledger (id TEXT PRIMARY KEY, body TEXT NOT NULL, seq INTEGER)`,
		`CREATE TABLE IF NOT EXISTS memory_changelog (id INTEGER PRIMARY KEY AUTOINCREMENT, body TEXT NOT NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("memorystore: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Put(rec *contracts.MemoryRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("memorystore: encode record %s: %w", rec.ID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO memory_records (id, body) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body`,
		rec.ID, body)
	if err != nil {
		return fmt.Errorf("memorystore: put record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(id string) (*contracts.MemoryRecord, bool, error) {
	row := s.db.QueryRow(`SELECT body FROM memory_records WHERE id = ?`, id)
	var body string
	if err := row.Scan(&body); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("memorystore: get record %s: %w", id, err)
	}
	var rec contracts.MemoryRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, false, fmt.Errorf("memorystore: decode record %s: %w", id, err)
	}
	return &rec, true, nil
}

func (s *SQLiteStore) All() ([]*contracts.MemoryRecord, error) {
	rows, err := s.db.Query(`SELECT body FROM memory_records`)
	if err != nil {
		return nil, fmt.Errorf("memorystore: list records: %w", err)
	}
	defer rows.Close()

	var out []*contracts.MemoryRecord
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("memorystore: scan record: %w", err)
		}
		var rec contracts.MemoryRecord
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("memorystore: decode record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendFriction(ev contracts.FrictionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("memorystore: encode friction event %s: %w", ev.ID, err)
	}
	_, err = s.db.Exec(`INSERT INTO friction_ledger (id, body) VALUES (?, ?)`, ev.ID, body)
	if err != nil {
		return fmt.Errorf("memorystore: append friction %s: %w", ev.ID, err)
	}
	return nil
}

func (s *SQLiteStore) AppendChangelog(entry contracts.ChangelogEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("memorystore: encode changelog entry: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO memory_changelog (body) VALUES (?)`, body)
	if err != nil {
		return fmt.Errorf("memorystore: append changelog: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Friction() ([]contracts.FrictionEvent, error) {
	rows, err := s.db.Query(`SELECT body FROM friction_ledger ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("memorystore: list friction: %w", err)
	}
	defer rows.Close()

	var out []contracts.FrictionEvent
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("memorystore: scan friction: %w", err)
		}
		var ev contracts.FrictionEvent
		if err := json.Unmarshal([]byte(body), &ev); err != nil {
			return nil, fmt.Errorf("memorystore: decode friction: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Changelog() ([]contracts.ChangelogEntry, error) {
	rows, err := s.db.Query(`SELECT body FROM memory_changelog ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("memorystore: list changelog: %w", err)
	}
	defer rows.Close()

	var out []contracts.ChangelogEntry
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("memorystore: scan changelog: %w", err)
		}
		var entry contracts.ChangelogEntry
		if err := json.Unmarshal([]byte(body), &entry); err != nil {
			return nil, fmt.Errorf("memorystore: decode changelog: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
