package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// ProfileStore persists pricing profiles
type ProfileStore struct {
	db *DB
}

// NewProfileStore creates a new profile store
func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileColumns = `name, price_per_1k_input, price_per_1k_output, prefill_tokens_per_sec, decode_tokens_per_sec, updated_at`

// List returns every profile ordered by name
func (s *ProfileStore) List(ctx context.Context) ([]*models.PricingProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM pricing_profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pricing profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.PricingProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pricing profiles: %w", err)
	}
	return out, nil
}

// Get retrieves a profile by name
func (s *ProfileStore) Get(ctx context.Context, name string) (*models.PricingProfile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM pricing_profiles WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// GetOrDefault returns the named profile, falling back to the stored
// default profile and then to the compiled-in default.
func (s *ProfileStore) GetOrDefault(ctx context.Context, name string) (*models.PricingProfile, error) {
	p, err := s.Get(ctx, name)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return p, err
	}

	p, err = s.Get(ctx, models.DefaultProfileName)
	if errors.Is(err, ErrNotFound) {
		def := models.DefaultPricingProfile()
		return &def, nil
	}
	return p, err
}

// Save creates or replaces a profile
func (s *ProfileStore) Save(ctx context.Context, p *models.PricingProfile) error {
	p.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pricing_profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			price_per_1k_input = excluded.price_per_1k_input,
			price_per_1k_output = excluded.price_per_1k_output,
			prefill_tokens_per_sec = excluded.prefill_tokens_per_sec,
			decode_tokens_per_sec = excluded.decode_tokens_per_sec,
			updated_at = excluded.updated_at`,
		p.Name, p.PricePer1KInput, p.PricePer1KOutput, p.PrefillTokensPerSec, p.DecodeTokensPerSec, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save pricing profile: %w", err)
	}
	return nil
}

// Delete removes a profile. The default profile returns ErrBuiltIn.
func (s *ProfileStore) Delete(ctx context.Context, name string) error {
	if name == models.DefaultProfileName {
		return ErrBuiltIn
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM pricing_profiles WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete pricing profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete pricing profile: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProfile(row rowScanner) (*models.PricingProfile, error) {
	var p models.PricingProfile
	err := row.Scan(&p.Name, &p.PricePer1KInput, &p.PricePer1KOutput, &p.PrefillTokensPerSec, &p.DecodeTokensPerSec, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pricing profile: %w", err)
	}
	return &p, nil
}
