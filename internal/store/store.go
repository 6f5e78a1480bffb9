// Package store persists completed audit results to SQLite. One row is
// written per audit; older rows for the same (student, area) pair are
// deactivated rather than deleted so history stays queryable.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// ResultRecord is one completed audit ready for persistence.
type ResultRecord struct {
	RunID      string
	StudentID  string
	AreaCode   string
	Catalog    string
	Status     string
	OK         bool
	Rank       string
	MaxRank    string
	GPA        string
	Iterations int
	DurationMs int64
	ResultJSON string
	ClaimsJSON string
}

// Store wraps the SQLite database holding audit results.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open initializes the results database at the given path, creating the
// schema when absent.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal_mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS result (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL,
			student_id   TEXT NOT NULL,
			area_code    TEXT NOT NULL,
			catalog      TEXT NOT NULL,
			status       TEXT NOT NULL,
			ok           INTEGER NOT NULL,
			rank         TEXT NOT NULL,
			max_rank     TEXT NOT NULL,
			gpa          TEXT NOT NULL,
			iterations   INTEGER NOT NULL,
			duration_ms  INTEGER NOT NULL,
			result       TEXT NOT NULL,
			claimed      TEXT NOT NULL,
			is_active    INTEGER NOT NULL DEFAULT 1,
			ts           TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);
		CREATE INDEX IF NOT EXISTS idx_result_student_area
			ON result (student_id, area_code, is_active);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Save writes one audit result, deactivating any prior active rows for
// the same student and area.
func (s *Store) Save(rec ResultRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE result SET is_active = 0
		WHERE student_id = ? AND area_code = ? AND is_active = 1
	`, rec.StudentID, rec.AreaCode); err != nil {
		return 0, fmt.Errorf("failed to deactivate prior results: %w", err)
	}

	res, err := tx.Exec(`
		INSERT INTO result (
			run_id, student_id, area_code, catalog, status, ok,
			rank, max_rank, gpa, iterations, duration_ms, result, claimed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID, rec.StudentID, rec.AreaCode, rec.Catalog, rec.Status, rec.OK,
		rec.Rank, rec.MaxRank, rec.GPA, rec.Iterations, rec.DurationMs,
		rec.ResultJSON, rec.ClaimsJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit result: %w", err)
	}
	return id, nil
}

// LatestResult loads the active result row for a student and area, or
// nil when none exists.
func (s *Store) LatestResult(studentID, areaCode string) (*ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT run_id, student_id, area_code, catalog, status, ok,
		       rank, max_rank, gpa, iterations, duration_ms, result, claimed
		FROM result
		WHERE student_id = ? AND area_code = ? AND is_active = 1
		ORDER BY id DESC LIMIT 1
	`, studentID, areaCode)

	var rec ResultRecord
	err := row.Scan(
		&rec.RunID, &rec.StudentID, &rec.AreaCode, &rec.Catalog, &rec.Status, &rec.OK,
		&rec.Rank, &rec.MaxRank, &rec.GPA, &rec.Iterations, &rec.DurationMs,
		&rec.ResultJSON, &rec.ClaimsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	return &rec, nil
}

// Close shuts the database down.
func (s *Store) Close() error {
	return s.db.Close()
}
