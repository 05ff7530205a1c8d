// Package db provides PostgreSQL database access for batch run and
// artifact storage. Persistence is optional: runs work without a
// database, they just leave no trail.
package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// CreateRun creates a new batch run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, stage, module string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO batch_runs (stage, module, status)
		 VALUES ($1, $2, 'running')
		 RETURNING id`,
		stage, module,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun marks a batch run as completed with its failure count
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string, failures int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE batch_runs SET status = $1, failures = $2, completed_at = NOW() WHERE id = $3`,
		status, failures, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// SaveArtifact stores the accepted JSON payload for one record
func (db *DB) SaveArtifact(ctx context.Context, runID uuid.UUID, recordID string, accepted bool, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("artifact payload for %s is not valid JSON", recordID)
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO artifacts (run_id, record_id, accepted, content)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id, record_id) DO UPDATE SET accepted = $3, content = $4, created_at = NOW()`,
		runID, recordID, accepted, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", recordID, err)
	}
	return nil
}

// SaveFailure records why a record stayed unresolved
func (db *DB) SaveFailure(ctx context.Context, runID uuid.UUID, recordID, reason string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO run_failures (run_id, record_id, reason)
		 VALUES ($1, $2, $3)`,
		runID, recordID, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to save failure for %s: %w", recordID, err)
	}
	return nil
}
