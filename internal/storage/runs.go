package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// DefaultRunLimit caps ListRecent when no limit is given
const DefaultRunLimit = 20

// RunStore keeps a history of optimizer runs
type RunStore struct {
	db *DB
}

// NewRunStore creates a new run store
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Record stores a run, assigning its ID and timestamp when unset
func (s *RunStore) Record(ctx context.Context, run *models.OptimizationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	baseline, err := json.Marshal(run.Baseline)
	if err != nil {
		return fmt.Errorf("failed to encode baseline: %w", err)
	}
	var best sql.NullString
	if run.Best != nil {
		raw, err := json.Marshal(run.Best)
		if err != nil {
			return fmt.Errorf("failed to encode best candidate: %w", err)
		}
		best = sql.NullString{String: string(raw), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO optimization_runs (
			id, baseline, slo_p95, utilization_cap, base_cost,
			found, best, best_cost, best_p95,
			feasible_count, evaluated, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(baseline), run.Targets.SLOP95, run.Targets.UtilizationCap, run.BaseCost,
		run.Found, best, run.BestCost, run.BestP95,
		run.FeasibleCount, run.Evaluated, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record optimization run: %w", err)
	}
	return nil
}

const runColumns = `id, baseline, slo_p95, utilization_cap, base_cost, found, best, best_cost, best_p95, feasible_count, evaluated, created_at`

// Get retrieves a run by ID
func (s *RunStore) Get(ctx context.Context, id string) (*models.OptimizationRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM optimization_runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRecent returns up to limit runs, newest first
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]*models.OptimizationRun, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM optimization_runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list optimization runs: %w", err)
	}
	defer rows.Close()

	var out []*models.OptimizationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate optimization runs: %w", err)
	}
	return out, nil
}

func scanRun(row rowScanner) (*models.OptimizationRun, error) {
	var (
		run      models.OptimizationRun
		baseline string
		best     sql.NullString
	)
	err := row.Scan(
		&run.ID, &baseline, &run.Targets.SLOP95, &run.Targets.UtilizationCap, &run.BaseCost,
		&run.Found, &best, &run.BestCost, &run.BestP95,
		&run.FeasibleCount, &run.Evaluated, &run.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan optimization run: %w", err)
	}

	if err := json.Unmarshal([]byte(baseline), &run.Baseline); err != nil {
		return nil, fmt.Errorf("failed to decode baseline: %w", err)
	}
	if best.Valid {
		run.Best = &models.Params{}
		if err := json.Unmarshal([]byte(best.String), run.Best); err != nil {
			return nil, fmt.Errorf("failed to decode best candidate: %w", err)
		}
	}
	return &run, nil
}
