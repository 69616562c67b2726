// Package avatarstore provides read-through access to avatar rows,
// using an RWMutex-guarded map as the cache layer in front of Postgres.
package avatarstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/models"
)

// Store is a read-through, unbounded cache of avatar rows. Avatars are
// effectively immutable from the generation/mediation pipeline's point of
// view, so entries are never evicted on their own; only Invalidate drops
// one.
type Store struct {
	pool *pgxpool.Pool

	mu    sync.RWMutex
	cache map[string]models.Avatar
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, cache: make(map[string]models.Avatar)}
}

// Get returns the avatar by id, serving from cache when present.
func (s *Store) Get(ctx context.Context, avatarID string) (models.Avatar, error) {
	s.mu.RLock()
	if a, ok := s.cache[avatarID]; ok {
		s.mu.RUnlock()
		return a, nil
	}
	s.mu.RUnlock()

	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, display_name, image_url, voice_sample_url, persona_prompt, language, public
		   FROM avatars WHERE id=$1`, avatarID)

	var (
		a                                  models.Avatar
		imageURL, voiceSampleURL, persona  *string
		language                           *string
	)
	err := row.Scan(&a.ID, &a.OwnerID, &a.DisplayName, &imageURL, &voiceSampleURL, &persona, &language, &a.Public)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.Avatar{}, apperr.New(apperr.KindAvatarNotFound, nil)
		}
		return models.Avatar{}, apperr.New(apperr.KindStoreError, fmt.Errorf("avatarstore: get: %w", err))
	}
	if imageURL != nil {
		a.ImageURL = *imageURL
	}
	if voiceSampleURL != nil {
		a.VoiceSampleURL = *voiceSampleURL
	}
	if persona != nil {
		a.PersonaPrompt = *persona
	}
	if language != nil {
		a.Language = *language
	}

	s.mu.Lock()
	s.cache[avatarID] = a
	s.mu.Unlock()
	return a, nil
}

// Invalidate drops avatarID from the cache, for the (rare) case an
// avatar's assets are replaced after creation.
func (s *Store) Invalidate(avatarID string) {
	s.mu.Lock()
	delete(s.cache, avatarID)
	s.mu.Unlock()
}
