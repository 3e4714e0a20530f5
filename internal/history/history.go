package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBName is the history database file inside the data directory
const DBName = "downsort.db"

// Status of one recorded query
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusFailed:
		return true
	}
	return false
}

// Record is one query execution
type Record struct {
	ID        int64     `json:"id" yaml:"id"`
	Operation string    `json:"operation" yaml:"operation"`
	Root      string    `json:"root" yaml:"root"`
	StartTime time.Time `json:"start_time" yaml:"start_time"`
	EndTime   time.Time `json:"end_time" yaml:"end_time"`
	Status    Status    `json:"status" yaml:"status"`
	Files     int       `json:"files" yaml:"files"`
	Groups    int       `json:"groups" yaml:"groups"`
	Warnings  int       `json:"warnings" yaml:"warnings"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Duration returns how long the query ran
func (r Record) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Store persists query history. It is append-only from the query path;
// scans never read it.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database in dataDir
func Open(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, DBName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Concurrent HTTP requests record in parallel
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation TEXT NOT NULL,
		root TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		files INTEGER DEFAULT 0,
		groups_count INTEGER DEFAULT 0,
		warnings INTEGER DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_queries_time ON queries(start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_queries_root_time ON queries(root, start_time DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record appends a query record
func (s *Store) Record(rec Record) error {
	if !rec.Status.IsValid() {
		return fmt.Errorf("invalid status: %s (must be 'success', 'failed', or 'partial')", rec.Status)
	}
	if rec.Operation == "" {
		return fmt.Errorf("operation cannot be empty")
	}

	query := `
		INSERT INTO queries (operation, root, start_time, end_time, status, files, groups_count, warnings, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		rec.Operation,
		rec.Root,
		rec.StartTime,
		rec.EndTime,
		string(rec.Status),
		rec.Files,
		rec.Groups,
		rec.Warnings,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save query record: %w", err)
	}

	return nil
}

const selectColumns = `
	SELECT id, operation, root, start_time, end_time, status, files, groups_count, warnings, COALESCE(error, '')
	FROM queries
`

// Recent returns the newest records across all roots
func (s *Store) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := s.db.Query(selectColumns+`ORDER BY start_time DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanRecords(rows)
}

// ForRoot returns the newest records for one scanned root
func (s *Store) ForRoot(root string, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := s.db.Query(selectColumns+`WHERE root = ? ORDER BY start_time DESC, id DESC LIMIT ?`, root, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var status string
		err := rows.Scan(
			&rec.ID,
			&rec.Operation,
			&rec.Root,
			&rec.StartTime,
			&rec.EndTime,
			&status,
			&rec.Files,
			&rec.Groups,
			&rec.Warnings,
			&rec.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Status = Status(status)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
