// Package jobstore persists GenerationJob rows and enforces the job
// lifecycle's state-transition validation: a Postgres-backed store using
// connect-once, prepared SQL, a plain INSERT for new rows and a
// field-selective UPDATE by id.
package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/models"
)

var (
	ErrNotFound          = errors.New("jobstore: job not found")
	ErrInvalidTransition = errors.New("jobstore: invalid status transition")
)

// Store persists GenerationJob rows.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert persists a new job in status=queued, assigning an id if unset.
func (s *Store) Insert(ctx context.Context, job models.GenerationJob) (models.GenerationJob, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO generation_jobs (
			id, owner_id, avatar_id, kind, input_mode, script_text, source_audio_url, audio_url,
			quality, language, upstream_task_id, result_url, status, progress, error_message,
			created_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		job.ID, job.OwnerID, job.AvatarID, string(job.Kind), string(job.InputMode),
		nullable(job.ScriptText), nullable(job.SourceAudioURL), nullable(job.AudioURL),
		string(job.Quality), job.Language, nullable(job.UpstreamTaskID), nullable(job.ResultURL),
		string(job.Status), job.Progress, nullable(job.ErrorMessage), job.CreatedAt, job.CompletedAt,
	)
	if err != nil {
		return models.GenerationJob{}, apperr.New(apperr.KindStoreError, fmt.Errorf("insert: %w", err))
	}
	return job, nil
}

// Patch is a field-selective update: nil fields are left untouched.
type Patch struct {
	AudioURL       *string
	UpstreamTaskID *string
	ResultURL      *string
	Status         *models.JobStatus
	Progress       *int
	ErrorMessage   *string
	CompletedAt    *time.Time
}

// Update applies patch to the job, validating the status transition (if
// Status is set) before writing. Returns ErrInvalidTransition without
// writing anything if the transition is disallowed.
func (s *Store) Update(ctx context.Context, jobID string, patch Patch) (models.GenerationJob, error) {
	current, err := s.Get(ctx, jobID)
	if err != nil {
		return models.GenerationJob{}, err
	}

	next := current
	if patch.AudioURL != nil {
		next.AudioURL = *patch.AudioURL
	}
	if patch.UpstreamTaskID != nil {
		next.UpstreamTaskID = *patch.UpstreamTaskID
	}
	if patch.ResultURL != nil {
		next.ResultURL = *patch.ResultURL
	}
	if patch.Progress != nil {
		next.Progress = *patch.Progress
	}
	if patch.ErrorMessage != nil {
		next.ErrorMessage = *patch.ErrorMessage
	}
	if patch.CompletedAt != nil {
		next.CompletedAt = patch.CompletedAt
	}
	if patch.Status != nil {
		if !validTransition(current.Status, *patch.Status) {
			return models.GenerationJob{}, ErrInvalidTransition
		}
		next.Status = *patch.Status
	}
	if err := next.Validate(); err != nil {
		return models.GenerationJob{}, apperr.Validation("job", err.Error())
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE generation_jobs SET
			audio_url=$2, upstream_task_id=$3, result_url=$4, status=$5, progress=$6,
			error_message=$7, completed_at=$8
		 WHERE id=$1`,
		jobID, nullable(next.AudioURL), nullable(next.UpstreamTaskID), nullable(next.ResultURL),
		string(next.Status), next.Progress, nullable(next.ErrorMessage), next.CompletedAt,
	)
	if err != nil {
		return models.GenerationJob{}, apperr.New(apperr.KindStoreError, fmt.Errorf("update: %w", err))
	}
	return next, nil
}

// Get fetches one job by id.
func (s *Store) Get(ctx context.Context, jobID string) (models.GenerationJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, avatar_id, kind, input_mode, script_text, source_audio_url, audio_url,
		        quality, language, upstream_task_id, result_url, status, progress, error_message,
		        created_at, completed_at
		   FROM generation_jobs WHERE id=$1`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GenerationJob{}, ErrNotFound
		}
		return models.GenerationJob{}, apperr.New(apperr.KindStoreError, fmt.Errorf("get: %w", err))
	}
	return job, nil
}

// ListByOwner lists an owner's jobs, most recent first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.GenerationJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, avatar_id, kind, input_mode, script_text, source_audio_url, audio_url,
		        quality, language, upstream_task_id, result_url, status, progress, error_message,
		        created_at, completed_at
		   FROM generation_jobs WHERE owner_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("jobstore: list: %w", err)
	}
	defer rows.Close()

	var out []models.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("jobstore: scan: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// DeleteByOwner deletes one job row owned by ownerID; re-deleting an
// already-deleted (or never-existing) row is a no-op success.
func (s *Store) DeleteByOwner(ctx context.Context, ownerID, jobID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM generation_jobs WHERE id=$1 AND owner_id=$2`, jobID, ownerID)
	if err != nil {
		return fmt.Errorf("jobstore: delete: %w", err)
	}
	return nil
}

// ListOrphanedProcessing returns processing rows older than cutoff, for
// the reaper to reclaim as timed-out.
func (s *Store) ListOrphanedProcessing(ctx context.Context, cutoff time.Time) ([]models.GenerationJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, avatar_id, kind, input_mode, script_text, source_audio_url, audio_url,
		        quality, language, upstream_task_id, result_url, status, progress, error_message,
		        created_at, completed_at
		   FROM generation_jobs WHERE status=$1 AND created_at < $2`,
		string(models.JobStatusProcessing), cutoff)
	if err != nil {
		return nil, fmt.Errorf("jobstore: list orphaned: %w", err)
	}
	defer rows.Close()

	var out []models.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("jobstore: scan: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (models.GenerationJob, error) {
	var (
		j                                                       models.GenerationJob
		kind, inputMode, quality, status                        string
		scriptText, sourceAudioURL, audioURL, upstreamTaskID    *string
		resultURL, errorMessage                                 *string
	)
	err := row.Scan(
		&j.ID, &j.OwnerID, &j.AvatarID, &kind, &inputMode, &scriptText, &sourceAudioURL, &audioURL,
		&quality, &j.Language, &upstreamTaskID, &resultURL, &status, &j.Progress, &errorMessage,
		&j.CreatedAt, &j.CompletedAt,
	)
	if err != nil {
		return models.GenerationJob{}, err
	}
	j.Kind = models.JobKind(kind)
	j.InputMode = models.InputMode(inputMode)
	j.Quality = models.Quality(quality)
	j.Status = models.JobStatus(status)
	j.ScriptText = deref(scriptText)
	j.SourceAudioURL = deref(sourceAudioURL)
	j.AudioURL = deref(audioURL)
	j.UpstreamTaskID = deref(upstreamTaskID)
	j.ResultURL = deref(resultURL)
	j.ErrorMessage = deref(errorMessage)
	return j, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
