// Package storage provides a SQLite-backed journal of refresh cycles.
//
// The default DSN is ":memory:", so the journal lives and dies with the
// process; the dashboard itself keeps no state across sessions.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome classifies a journaled cycle.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeFailed    Outcome = "failed"
	OutcomeDropped   Outcome = "dropped"
	OutcomeDiscarded Outcome = "discarded"
)

// CycleRecord is one row of the journal.
type CycleRecord struct {
	Session         string    `json:"session"`
	Seq             uint64    `json:"seq"`
	IssuedAt        time.Time `json:"issued_at"`
	CompletedAt     time.Time `json:"completed_at"`
	Outcome         Outcome   `json:"outcome"`
	Error           string    `json:"error,omitempty"`
	TotalStock      int       `json:"total_stock"`
	Transactions    int       `json:"transactions"`
	CriticalReorder int       `json:"critical_reorders"`
}

// Storage wraps a SQLite database for the cycle journal.
type Storage struct {
	db        *sql.DB
	maxCycles int
}

// New opens or creates the journal at dsn.
// ":memory:" keeps it in process; any other value is treated as a file path.
func New(maxCycles int, dsn string) (*Storage, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would open a second, empty database
	db.SetMaxOpenConns(1)
	if dsn != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w", err)
		}
	}
	s := &Storage{db: db, maxCycles: maxCycles}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_cycles (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			session          TEXT NOT NULL,
			seq              INTEGER NOT NULL,
			issued_at        INTEGER NOT NULL,
			completed_at     INTEGER NOT NULL,
			outcome          TEXT NOT NULL,
			error            TEXT,
			total_stock      INTEGER NOT NULL DEFAULT 0,
			transactions     INTEGER NOT NULL DEFAULT 0,
			critical_reorder INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_cycles_completed_at ON fetch_cycles(completed_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_fetch_cycles_session_seq ON fetch_cycles(session, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordCycle appends a cycle and trims the journal to maxCycles rows.
func (s *Storage) RecordCycle(rec *CycleRecord) error {
	if rec.Session == "" {
		return fmt.Errorf("invalid cycle: session must not be empty")
	}
	if rec.Seq == 0 {
		return fmt.Errorf("invalid cycle: seq must be positive")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO fetch_cycles
			(session, seq, issued_at, completed_at, outcome, error,
			 total_stock, transactions, critical_reorder)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		rec.Session, int64(rec.Seq), rec.IssuedAt.UnixNano(), rec.CompletedAt.UnixNano(),
		string(rec.Outcome), nullString(rec.Error),
		rec.TotalStock, rec.Transactions, rec.CriticalReorder,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}

	if err := rotate(tx, s.maxCycles); err != nil {
		return err
	}

	return tx.Commit()
}

// RecentCycles returns up to limit cycles, most recently completed first.
func (s *Storage) RecentCycles(limit int) ([]CycleRecord, error) {
	rows, err := s.db.Query(`
		SELECT session, seq, issued_at, completed_at, outcome, error,
		       total_stock, transactions, critical_reorder
		FROM fetch_cycles ORDER BY completed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	records := []CycleRecord{}
	for rows.Next() {
		var r CycleRecord
		var seq, issuedNano, completedNano int64
		var outcome string
		var errText sql.NullString
		if err := rows.Scan(
			&r.Session, &seq, &issuedNano, &completedNano, &outcome, &errText,
			&r.TotalStock, &r.Transactions, &r.CriticalReorder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		r.Seq = uint64(seq)
		r.IssuedAt = time.Unix(0, issuedNano)
		r.CompletedAt = time.Unix(0, completedNano)
		r.Outcome = Outcome(outcome)
		r.Error = errText.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountByOutcome returns the number of journaled cycles per outcome.
func (s *Storage) CountByOutcome() (map[Outcome]int, error) {
	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM fetch_cycles GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count cycles: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

// Rotate keeps at most maxCycles most recently completed rows.
func (s *Storage) Rotate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := rotate(tx, s.maxCycles); err != nil {
		return err
	}
	return tx.Commit()
}

func rotate(tx *sql.Tx, maxCycles int) error {
	if _, err := tx.Exec(`
		DELETE FROM fetch_cycles WHERE id NOT IN (
			SELECT id FROM fetch_cycles ORDER BY completed_at DESC, id DESC LIMIT ?
		)`, maxCycles); err != nil {
		return fmt.Errorf("failed to rotate cycles: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
