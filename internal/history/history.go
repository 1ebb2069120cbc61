// Package history persists task outcomes in a SQLite database so past runs of
// a day can be compared.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/adrian-goe/gladvent/internal/pipeline"
	"github.com/adrian-goe/gladvent/internal/report"
	"github.com/adrian-goe/gladvent/internal/task"
)

// Status values stored per run.
const (
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

// Run is one recorded task outcome.
type Run struct {
	ID      int64
	BatchID string
	Year    int
	Day     int
	Variant string
	Status  string
	Part1   string
	Part2   string
	Error   string
	RanAt   time.Time
}

// Store records runs in SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBatchID returns a fresh identifier grouping the outcomes of one batch.
func NewBatchID() string {
	return uuid.NewString()
}

// Open opens (creating if needed) the history database at path. ":memory:"
// opens a private in-memory database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	// One connection: an in-memory database exists per connection, and the
	// CLI never writes concurrently.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("History store ready", zap.String("path", path))
	return s, nil
}

func (s *Store) initializeSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		day INTEGER NOT NULL,
		variant TEXT NOT NULL,
		status TEXT NOT NULL,
		part1 TEXT DEFAULT '',
		part2 TEXT DEFAULT '',
		error TEXT DEFAULT '',
		ran_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_task ON runs(year, day, ran_at);
	CREATE INDEX IF NOT EXISTS idx_runs_batch ON runs(batch_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores every outcome of a batch in one transaction.
func (s *Store) Record(ctx context.Context, batchID string, variant task.Variant, outcomes []pipeline.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO runs (batch_id, year, day, variant, status, part1, part2, error, ran_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, o := range outcomes {
		r := runOf(o)
		if _, err := stmt.ExecContext(ctx, batchID, o.ID.Year, o.ID.Day, variant.String(),
			r.Status, r.Part1, r.Part2, r.Error, now); err != nil {
			return fmt.Errorf("failed to record %s: %w", o.ID.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	s.logger.Debug("Recorded batch", zap.String("batch", batchID), zap.Int("outcomes", len(outcomes)))
	return nil
}

func runOf(o pipeline.Outcome) Run {
	if !o.Completed() {
		return Run{Status: StatusAborted, Error: report.Render(o)}
	}
	return Run{Status: StatusCompleted, Part1: report.Part(o.Pt1), Part2: report.Part(o.Pt2)}
}

// Recent returns up to limit runs of id, newest first. limit <= 0 means 10.
func (s *Store) Recent(ctx context.Context, id task.ID, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, year, day, variant, status, part1, part2, error, ran_at
		FROM runs
		WHERE year = ? AND day = ?
		ORDER BY ran_at DESC, id DESC
		LIMIT ?
	`, id.Year, id.Day, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var ranAt int64
		if err := rows.Scan(&r.ID, &r.BatchID, &r.Year, &r.Day, &r.Variant, &r.Status,
			&r.Part1, &r.Part2, &r.Error, &ranAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.RanAt = time.UnixMilli(ranAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
