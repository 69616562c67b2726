// Package reaper reclaims generation jobs stuck in processing past their
// quality-specific timeout, grounded on heathcetide-HibiscusIM's use of
// robfig/cron/v3 for scheduled maintenance jobs.
package reaper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/jobstore"
	"github.com/avatarplatform/mediator/internal/models"
	"github.com/avatarplatform/mediator/internal/observability"
)

// Store is the subset of *jobstore.Store the reaper needs.
type Store interface {
	ListOrphanedProcessing(ctx context.Context, cutoff time.Time) ([]models.GenerationJob, error)
	Update(ctx context.Context, jobID string, patch jobstore.Patch) (models.GenerationJob, error)
}

// Reaper periodically scans for orphaned processing rows and transitions
// them to timed-out.
type Reaper struct {
	jobs    Store
	log     *zap.Logger
	metrics *observability.Metrics
	timeout map[models.Quality]time.Duration
	cron    *cron.Cron
}

// New builds a Reaper. timeoutFast/timeoutHigh are the per-quality
// processing windows past which a row is considered orphaned (mirroring
// VideoJobRunner's poll windows, but applied independently so the reaper
// also catches jobs abandoned by a crashed callback-mode deployment).
// metrics may be nil.
func New(jobs Store, log *zap.Logger, metrics *observability.Metrics, timeoutFast, timeoutHigh time.Duration) *Reaper {
	return &Reaper{
		jobs:    jobs,
		log:     log,
		metrics: metrics,
		timeout: map[models.Quality]time.Duration{
			models.QualityFast:     timeoutFast,
			models.QualityHigh:     timeoutHigh,
			models.QualityStandard: timeoutFast,
		},
		cron: cron.New(),
	}
}

// Start schedules the sweep on spec, e.g. "@every 1m", and begins
// running it in the background. Call Stop to end it.
func (r *Reaper) Start(ctx context.Context, spec string) error {
	_, err := r.cron.AddFunc(spec, func() { r.sweep(ctx) })
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *Reaper) Stop() {
	r.cron.Stop()
}

// sweep finds processing rows older than the shortest configured timeout
// and reaps any individually past their own quality's window (an unknown
// quality gets the longest window).
func (r *Reaper) sweep(ctx context.Context) {
	oldest := r.timeout[models.QualityFast]
	shortest := oldest
	for _, d := range r.timeout {
		if d > oldest {
			oldest = d
		}
		if d < shortest {
			shortest = d
		}
	}
	cutoff := time.Now().Add(-shortest)

	candidates, err := r.jobs.ListOrphanedProcessing(ctx, cutoff)
	if err != nil {
		r.log.Error("reaper: list orphaned failed", zap.Error(err))
		return
	}

	for _, job := range candidates {
		timeout, ok := r.timeout[job.Quality]
		if !ok {
			timeout = oldest
		}
		if time.Since(job.CreatedAt) < timeout {
			continue
		}
		r.reap(ctx, job)
	}
}

func (r *Reaper) reap(ctx context.Context, job models.GenerationJob) {
	timedOut := models.JobStatusTimedOut
	msg := "reaped: exceeded processing timeout"
	now := time.Now().UTC()
	if _, err := r.jobs.Update(ctx, job.ID, jobstore.Patch{
		Status: &timedOut, ErrorMessage: &msg, CompletedAt: &now,
	}); err != nil {
		r.log.Error("reaper: failed to reap job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	r.log.Warn("reaper: reaped orphaned job", zap.String("job_id", job.ID), zap.String("quality", string(job.Quality)))
	if r.metrics != nil {
		r.metrics.ReapedJobs.WithLabelValues(string(job.Quality)).Inc()
	}
}
