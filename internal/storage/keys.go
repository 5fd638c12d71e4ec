package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/genai-cost-planner/genai-cost-planner/pkg/models"
)

const (
	// KeySecretPrefix marks planner API keys
	KeySecretPrefix = "gcp_"

	// keyLookupLen is how much of the secret is stored in clear for lookup
	keyLookupLen = len(KeySecretPrefix) + 8
)

// KeyStore manages API keys. Only a bcrypt hash of each secret is stored.
type KeyStore struct {
	db   *DB
	cost int
	now  func() time.Time
}

// KeyStoreOption configures a KeyStore
type KeyStoreOption func(*KeyStore)

// WithHashCost overrides the bcrypt cost
func WithHashCost(cost int) KeyStoreOption {
	return func(s *KeyStore) {
		s.cost = cost
	}
}

// NewKeyStore creates a new key store
func NewKeyStore(db *DB, opts ...KeyStoreOption) *KeyStore {
	s := &KeyStore{
		db:   db,
		cost: bcrypt.DefaultCost,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new key. The returned secret is shown once and cannot be
// recovered later.
func (s *KeyStore) Create(ctx context.Context, name string) (*models.APIKey, string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, "", errors.New("key name is required")
	}

	secret := KeySecretPrefix + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash key: %w", err)
	}

	key := &models.APIKey{
		ID:        uuid.NewString(),
		Name:      name,
		Prefix:    secret[:keyLookupLen],
		CreatedAt: s.now(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, prefix, key_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		key.ID, key.Name, key.Prefix, string(hash), key.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create key: %w", err)
	}
	return key, secret, nil
}

// Verify checks a presented secret and records its use. Unknown or
// mismatched secrets return ErrInvalidKey; revoked ones ErrKeyRevoked.
func (s *KeyStore) Verify(ctx context.Context, secret string) (*models.APIKey, error) {
	if !strings.HasPrefix(secret, KeySecretPrefix) || len(secret) <= keyLookupLen {
		return nil, ErrInvalidKey
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, prefix, key_hash, created_at, last_used_at, revoked_at FROM api_keys WHERE prefix = ?`,
		secret[:keyLookupLen])
	if err != nil {
		return nil, fmt.Errorf("failed to look up key: %w", err)
	}

	var match *models.APIKey
	for rows.Next() {
		key, hash, err := scanKey(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil {
			match = key
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to look up key: %w", err)
	}

	if match == nil {
		return nil, ErrInvalidKey
	}
	if match.RevokedAt != nil {
		return nil, ErrKeyRevoked
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, now, match.ID); err != nil {
		return nil, fmt.Errorf("failed to record key use: %w", err)
	}
	match.LastUsedAt = &now
	return match, nil
}

// List returns all keys, newest first
func (s *KeyStore) List(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, prefix, key_hash, created_at, last_used_at, revoked_at FROM api_keys ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var out []*models.APIKey
	for rows.Next() {
		key, _, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate keys: %w", err)
	}
	return out, nil
}

// Revoke disables a key. Revoking an already revoked key is a no-op.
func (s *KeyStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of active keys
func (s *KeyStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys WHERE revoked_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return n, nil
}

func scanKey(row rowScanner) (*models.APIKey, string, error) {
	var (
		key       models.APIKey
		hash      string
		lastUsed  sql.NullTime
		revokedAt sql.NullTime
	)
	if err := row.Scan(&key.ID, &key.Name, &key.Prefix, &hash, &key.CreatedAt, &lastUsed, &revokedAt); err != nil {
		return nil, "", fmt.Errorf("failed to scan key: %w", err)
	}
	key.LastUsedAt = timePtr(lastUsed)
	key.RevokedAt = timePtr(revokedAt)
	return &key, hash, nil
}
