// Package webhook lets upstream lead sources push lead events with a
// per-source API key instead of a user session.
package webhook

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const keyNotFoundMsg = "source API key not found"

// SourceKey is an API key issued to one upstream lead source.
type SourceKey struct {
	ID        uuid.UUID
	Source    string
	Name      string
	KeyHash   string
	KeyPrefix string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// KeyStore persists source keys. Only key hashes are stored.
type KeyStore interface {
	Create(ctx context.Context, key SourceKey) error
	GetByHash(ctx context.Context, keyHash string) (SourceKey, error)
	List(ctx context.Context) ([]SourceKey, error)
	Revoke(ctx context.Context, id uuid.UUID, now time.Time) error
}

// Repository is the Postgres KeyStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new webhook repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GenerateAPIKey creates a new random API key and returns the plaintext key
// and its hash. The plaintext key is returned only once.
func GenerateAPIKey() (plaintext string, hash string, prefix string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", "", err
	}
	plaintext = "lrk_" + hex.EncodeToString(bytes)
	prefix = plaintext[:12] // "lrk_" + 8 hex chars
	return plaintext, HashKey(plaintext), prefix, nil
}

// HashKey hashes a plaintext API key for lookup.
func HashKey(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

const keyColumns = `id, source, name, key_hash, key_prefix, is_active, created_at, updated_at`

func scanKey(row pgx.Row) (SourceKey, error) {
	var key SourceKey
	err := row.Scan(&key.ID, &key.Source, &key.Name, &key.KeyHash, &key.KeyPrefix, &key.IsActive, &key.CreatedAt, &key.UpdatedAt)
	return key, err
}

func (r *Repository) Create(ctx context.Context, key SourceKey) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO source_api_keys (id, source, name, key_hash, key_prefix, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		key.ID, key.Source, key.Name, key.KeyHash, key.KeyPrefix, key.IsActive, key.CreatedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "create source key", err)
	}
	return nil
}

// GetByHash retrieves an active key by its hash.
func (r *Repository) GetByHash(ctx context.Context, keyHash string) (SourceKey, error) {
	key, err := scanKey(r.pool.QueryRow(ctx, `
		SELECT `+keyColumns+`
		FROM source_api_keys
		WHERE key_hash = $1 AND is_active = true`, keyHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return SourceKey{}, apperr.NotFound(keyNotFoundMsg)
	}
	if err != nil {
		return SourceKey{}, apperr.Wrap(apperr.KindInternal, "get source key", err)
	}
	return key, nil
}

func (r *Repository) List(ctx context.Context) ([]SourceKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+keyColumns+`
		FROM source_api_keys
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list source keys", err)
	}
	defer rows.Close()

	keys := make([]SourceKey, 0)
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan source key", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list source keys", err)
	}
	return keys, nil
}

// Revoke deactivates a key. Revoking an already revoked key is a no-op.
func (r *Repository) Revoke(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE source_api_keys SET is_active = false, updated_at = $2
		WHERE id = $1`, id, now)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "revoke source key", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(keyNotFoundMsg)
	}
	return nil
}

var _ KeyStore = (*Repository)(nil)
