// Package apikey implements verification and rate limiting for
// machine-caller API keys: a hash+prefix lookup store, and a
// ulule/limiter/v3-backed per-key request limiter wired as chi
// middleware. Key issuance is out of scope; this package only verifies.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/models"
)

var ErrInvalidKey = errors.New("apikey: invalid or inactive key")

// Store verifies presented API key secrets against their stored hash.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// HashSecret is the storage-side hash applied to a raw secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Verify looks up the key by its prefix and confirms secret hashes match
// in constant time, returning the key row if active and unexpired.
func (s *Store) Verify(ctx context.Context, prefix, secret string) (models.ApiKey, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, secret_hash, prefix, permitted_resources, active, expiry, last_used_at
		   FROM api_keys WHERE prefix=$1`, prefix)

	var (
		k          models.ApiKey
		resources  string
	)
	err := row.Scan(&k.ID, &k.OwnerID, &k.SecretHash, &k.Prefix, &resources, &k.Active, &k.Expiry, &k.LastUsedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.ApiKey{}, ErrInvalidKey
		}
		return models.ApiKey{}, apperr.New(apperr.KindStoreError, fmt.Errorf("apikey: verify: %w", err))
	}
	if resources != "" {
		k.PermittedResources = splitCSV(resources)
	}

	if !k.Active {
		return models.ApiKey{}, ErrInvalidKey
	}
	if k.Expiry != nil && time.Now().After(*k.Expiry) {
		return models.ApiKey{}, ErrInvalidKey
	}
	want := HashSecret(secret)
	if subtle.ConstantTimeCompare([]byte(want), []byte(k.SecretHash)) != 1 {
		return models.ApiKey{}, ErrInvalidKey
	}

	if _, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id=$1`, k.ID); err != nil {
		return models.ApiKey{}, apperr.New(apperr.KindStoreError, fmt.Errorf("apikey: touch last_used_at: %w", err))
	}
	return k, nil
}

// Permits reports whether key is scoped to resource (an empty
// PermittedResources list permits everything).
func Permits(key models.ApiKey, resource string) bool {
	if len(key.PermittedResources) == 0 {
		return true
	}
	for _, r := range key.PermittedResources {
		if r == resource {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
