// Package sessionstore persists live-session rows and their transcripts:
// a turn-record store backed by Postgres, keyed by session id, plus the
// session row itself.
package sessionstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/models"
)

// Store persists session rows and their transcript turns.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// OpenSession inserts a new session row in status=connecting.
func (s *Store) OpenSession(ctx context.Context, id, ownerID, avatarID string, kind models.SessionKind, language string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, owner_id, avatar_id, kind, language, status, started_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, ownerID, avatarID, string(kind), language, string(models.SessionStatusConnecting), time.Now().UTC())
	if err != nil {
		return apperr.New(apperr.KindStoreError, fmt.Errorf("sessionstore: open: %w", err))
	}
	return nil
}

// SetStatus updates a session's coarse status.
func (s *Store) SetStatus(ctx context.Context, id string, status models.SessionStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return apperr.New(apperr.KindStoreError, fmt.Errorf("sessionstore: set status: %w", err))
	}
	return nil
}

// CloseSession marks a session ended.
func (s *Store) CloseSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status=$2, ended_at=$3 WHERE id=$1`,
		id, string(models.SessionStatusEnded), time.Now().UTC())
	if err != nil {
		return apperr.New(apperr.KindStoreError, fmt.Errorf("sessionstore: close: %w", err))
	}
	return nil
}

// AppendTurn persists one transcript turn for a session, seq assigned by
// the caller (the turn's index in the mediator's in-memory transcript) so ordering survives
// even if multiple turns land in the same millisecond.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, seq int, turn models.TranscriptTurn) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_transcript_turns (session_id, seq, role, text) VALUES ($1,$2,$3,$4)`,
		sessionID, seq, turn.Role, turn.Text)
	if err != nil {
		return apperr.New(apperr.KindStoreError, fmt.Errorf("sessionstore: append turn: %w", err))
	}
	return nil
}

// Transcript returns a session's turns in recorded order.
func (s *Store) Transcript(ctx context.Context, sessionID string) ([]models.TranscriptTurn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, text FROM session_transcript_turns WHERE session_id=$1 ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, apperr.New(apperr.KindStoreError, fmt.Errorf("sessionstore: transcript: %w", err))
	}
	defer rows.Close()

	var turns []models.TranscriptTurn
	for rows.Next() {
		var t models.TranscriptTurn
		if err := rows.Scan(&t.Role, &t.Text); err != nil {
			return nil, apperr.New(apperr.KindStoreError, fmt.Errorf("sessionstore: scan turn: %w", err))
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
