package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// PresetStore persists named Params bundles
type PresetStore struct {
	db *DB
}

// NewPresetStore creates a new preset store
func NewPresetStore(db *DB) *PresetStore {
	return &PresetStore{db: db}
}

// List returns every preset ordered by name
func (s *PresetStore) List(ctx context.Context) ([]*models.Preset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, params, built_in, updated_at FROM presets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	defer rows.Close()

	var out []*models.Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate presets: %w", err)
	}
	return out, nil
}

// Get retrieves a preset by name
func (s *PresetStore) Get(ctx context.Context, name string) (*models.Preset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, params, built_in, updated_at FROM presets WHERE name = ?`, name)
	p, err := scanPreset(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// Save creates or replaces a preset. Overwriting a built-in keeps it marked
// as built-in.
func (s *PresetStore) Save(ctx context.Context, preset *models.Preset) error {
	raw, err := json.Marshal(preset.Params)
	if err != nil {
		return fmt.Errorf("failed to encode preset params: %w", err)
	}
	preset.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO presets (name, params, built_in, updated_at) VALUES (?, ?, 0, ?)
		ON CONFLICT(name) DO UPDATE SET params = excluded.params, updated_at = excluded.updated_at`,
		preset.Name, string(raw), preset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save preset: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT built_in FROM presets WHERE name = ?`, preset.Name).Scan(&preset.BuiltIn); err != nil {
		return fmt.Errorf("failed to read preset: %w", err)
	}
	return nil
}

// Delete removes a user preset. Built-ins return ErrBuiltIn.
func (s *PresetStore) Delete(ctx context.Context, name string) error {
	p, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if p.BuiltIn {
		return ErrBuiltIn
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM presets WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreset(row rowScanner) (*models.Preset, error) {
	var (
		p   models.Preset
		raw string
	)
	if err := row.Scan(&p.Name, &raw, &p.BuiltIn, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan preset: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &p.Params); err != nil {
		return nil, fmt.Errorf("failed to decode preset %s: %w", p.Name, err)
	}
	return &p, nil
}
