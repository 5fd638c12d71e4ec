package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/genai-cost-planner/genai-cost-planner/internal/presets"
	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL lets the API read history while a run is being recorded
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well
	db.SetMaxIdleConns(1)

	return &DB{db}, nil
}

// Migrate creates the schema and seeds built-in presets and the default
// pricing profile. It is safe to run on every start.
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationPresets,
		migrationPricingProfiles,
		migrationAPIKeys,
		migrationOptimizationRuns,
		migrationIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return db.seed(ctx)
}

// seed inserts built-ins without touching rows a user has overwritten
func (db *DB) seed(ctx context.Context) error {
	now := time.Now().UTC()

	for _, p := range presets.All() {
		raw, err := json.Marshal(p.Params)
		if err != nil {
			return fmt.Errorf("failed to encode preset %s: %w", p.Name, err)
		}
		_, err = db.ExecContext(ctx,
			`INSERT OR IGNORE INTO presets (name, params, built_in, updated_at) VALUES (?, ?, 1, ?)`,
			p.Name, string(raw), now)
		if err != nil {
			return fmt.Errorf("failed to seed preset %s: %w", p.Name, err)
		}
	}

	def := models.DefaultPricingProfile()
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO pricing_profiles
			(name, price_per_1k_input, price_per_1k_output, prefill_tokens_per_sec, decode_tokens_per_sec, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		def.Name, def.PricePer1KInput, def.PricePer1KOutput, def.PrefillTokensPerSec, def.DecodeTokensPerSec, now)
	if err != nil {
		return fmt.Errorf("failed to seed default pricing profile: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

const migrationPresets = `
CREATE TABLE IF NOT EXISTS presets (
	name TEXT PRIMARY KEY,
	params TEXT NOT NULL,
	built_in INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const migrationPricingProfiles = `
CREATE TABLE IF NOT EXISTS pricing_profiles (
	name TEXT PRIMARY KEY,
	price_per_1k_input REAL NOT NULL,
	price_per_1k_output REAL NOT NULL,
	prefill_tokens_per_sec REAL NOT NULL,
	decode_tokens_per_sec REAL NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const migrationAPIKeys = `
CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	prefix TEXT NOT NULL,
	key_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_used_at DATETIME,
	revoked_at DATETIME
);
`

const migrationOptimizationRuns = `
CREATE TABLE IF NOT EXISTS optimization_runs (
	id TEXT PRIMARY KEY,
	baseline TEXT NOT NULL,
	slo_p95 REAL NOT NULL,
	utilization_cap REAL NOT NULL,
	base_cost REAL NOT NULL,
	found INTEGER NOT NULL DEFAULT 0,
	best TEXT,
	best_cost REAL NOT NULL DEFAULT 0,
	best_p95 REAL NOT NULL DEFAULT 0,
	feasible_count INTEGER NOT NULL DEFAULT 0,
	evaluated INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_api_keys_prefix ON api_keys(prefix);
CREATE INDEX IF NOT EXISTS idx_optimization_runs_created_at ON optimization_runs(created_at);
`
