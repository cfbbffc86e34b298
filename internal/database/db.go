package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Alias1177/cryptovol/internal/model"
	"github.com/lib/pq"
)

// DB represents a database connection
type DB struct {
	*sql.DB
}

// Run describes one pipeline execution
type Run struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	SplitMode  string    `json:"split_mode"`
	Features   int       `json:"features"`
	TrainSize  int       `json:"train_size"`
	TestSize   int       `json:"test_size"`
	SplitIndex int       `json:"split_index"`
}

// New opens a PostgreSQL connection and creates the tables if needed
func New(ctx context.Context, dsn string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db := &DB{sqlDB}
	if err := db.CreateTables(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pipeline_runs (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			split_mode TEXT NOT NULL,
			features INTEGER NOT NULL,
			train_size INTEGER NOT NULL,
			test_size INTEGER NOT NULL,
			split_index INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating pipeline_runs: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS feature_values (
			run_id BIGINT NOT NULL REFERENCES pipeline_runs(id) ON DELETE CASCADE,
			split TEXT NOT NULL,
			name TEXT NOT NULL,
			date DATE,
			feature TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating feature_values: %w", err)
	}

	return nil
}

// CreateRun inserts a run record and returns its id
func (db *DB) CreateRun(ctx context.Context, run Run) (int64, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	var id int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO pipeline_runs (
			created_at, source, target, split_mode, features, train_size, test_size, split_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		run.CreatedAt, run.Source, run.Target, run.SplitMode,
		run.Features, run.TrainSize, run.TestSize, run.SplitIndex,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// LatestRun retrieves the most recent run, or nil if there is none
func (db *DB) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	err := db.QueryRowContext(ctx, `
		SELECT id, created_at, source, target, split_mode, features, train_size, test_size, split_index
		FROM pipeline_runs
		ORDER BY id DESC
		LIMIT 1
	`).Scan(
		&run.ID, &run.CreatedAt, &run.Source, &run.Target, &run.SplitMode,
		&run.Features, &run.TrainSize, &run.TestSize, &run.SplitIndex,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No runs yet
		}
		return nil, err
	}
	return &run, nil
}

// SaveFeatures bulk-loads every non-missing value of f in long format using
// COPY. It returns the number of values written.
func (db *DB) SaveFeatures(ctx context.Context, runID int64, split string, f *model.Frame) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("feature_values", "run_id", "split", "name", "date", "feature", "value"))
	if err != nil {
		return 0, fmt.Errorf("preparing copy: %w", err)
	}

	cols := f.Columns()
	written := 0
	for i := 0; i < f.Len(); i++ {
		date := sql.NullTime{Time: f.Date[i], Valid: !f.Date[i].IsZero()}
		for _, c := range cols {
			v := f.Col(c)[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if _, err := stmt.ExecContext(ctx, runID, split, f.Name[i], date, c, v); err != nil {
				stmt.Close()
				return 0, fmt.Errorf("copying row %d: %w", i, err)
			}
			written++
		}
	}

	// An empty exec flushes the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("flushing copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("closing copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return written, nil
}
