package storage

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// counterKey is the settings key holding the iteration counter.
const counterKey = "iteration_counter"

// Store manages SQLite database operations
type Store struct {
	db *sql.DB
}

// ErrStoreClosed indicates the underlying database connection is unavailable.
var ErrStoreClosed = errors.New("storage: closed")

// New creates a new store and initializes the database
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single-writer tool, but WAL keeps overlapping scheduled runs from
	// corrupting each other.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// GetCounter returns the persisted iteration counter, zero when unset.
func (s *Store) GetCounter() (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrStoreClosed
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, counterKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	counter, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter value %q: %w", value, err)
	}
	return counter, nil
}

// SetCounter upserts the iteration counter. Last writer wins: nothing
// here coordinates overlapping runs.
func (s *Store) SetCounter(counter int) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, counterKey, strconv.Itoa(counter))
	return err
}

// RunRecord is one archived pipeline invocation. Written once, never
// mutated afterward.
type RunRecord struct {
	ID                string
	StartedAt         time.Time
	FinishedAt        time.Time
	Mode              string
	Model             string
	Temperature       float64
	Counter           int
	ValidationOutcome string // accepted or fallback
	ValidationError   string
	Status            string // success, failure
	Error             string
	PromptTokens      int
	CompletionTokens  int
	CostUSD           float64
	LogPath           string
}

// SaveRun archives a run record.
func (s *Store) SaveRun(rec *RunRecord) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (
			id, started_at, finished_at, mode, model, temperature, counter,
			validation_outcome, validation_error, status, error,
			prompt_tokens, completion_tokens, cost_usd, log_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.Mode, rec.Model,
		rec.Temperature, rec.Counter, rec.ValidationOutcome, rec.ValidationError,
		rec.Status, rec.Error, rec.PromptTokens, rec.CompletionTokens,
		rec.CostUSD, rec.LogPath,
	)
	return err
}

// RecentRuns returns the most recent run records, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, mode, model, temperature, counter,
		       validation_outcome, validation_error, status, error,
		       prompt_tokens, completion_tokens, cost_usd, log_path
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.Mode, &rec.Model,
			&rec.Temperature, &rec.Counter, &rec.ValidationOutcome,
			&rec.ValidationError, &rec.Status, &rec.Error,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.CostUSD, &rec.LogPath,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
