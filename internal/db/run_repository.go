package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnalysisRun records one analysis served by the service
type AnalysisRun struct {
	RunID      uuid.UUID       `json:"run_id"`
	Kind       string          `json:"kind"`
	Subject    string          `json:"subject"`
	Params     json.RawMessage `json:"params"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RunRepository stores the analysis audit trail
type RunRepository struct {
	pool PoolInterface
}

// NewRunRepository creates a new analysis run repository
func NewRunRepository(pool PoolInterface) *RunRepository {
	return &RunRepository{pool: pool}
}

// Record stores a run
func (r *RunRepository) Record(ctx context.Context, run *AnalysisRun) error {
	if r.pool == nil {
		return fmt.Errorf("database connection not available")
	}
	defer observe("run_record", time.Now())

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO analysis_runs (run_id, kind, subject, params, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		run.RunID,
		run.Kind,
		run.Subject,
		[]byte(run.Params),
		run.DurationMs,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record analysis run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]AnalysisRun, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	defer observe("run_recent", time.Now())

	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT run_id, kind, subject, params, duration_ms, created_at
		FROM analysis_runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		var run AnalysisRun
		var params []byte
		if err := rows.Scan(&run.RunID, &run.Kind, &run.Subject, &params, &run.DurationMs, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		run.Params = params
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}
	return runs, nil
}
