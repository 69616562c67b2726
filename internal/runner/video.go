package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/avatarstore"
	"github.com/avatarplatform/mediator/internal/clients"
	"github.com/avatarplatform/mediator/internal/config"
	"github.com/avatarplatform/mediator/internal/jobstore"
	"github.com/avatarplatform/mediator/internal/models"
	"github.com/avatarplatform/mediator/internal/observability"
	"github.com/avatarplatform/mediator/internal/usage"
)

// VideoJobRunner executes the video generation pipeline: optionally synth
// audio from a script, enqueue on video-svc, drive completion via poll or
// await a worker callback, commit usage, complete.
type VideoJobRunner struct {
	Jobs          *jobstore.Store
	Avatars       *avatarstore.Store
	Voice         *clients.VoiceClient
	Video         *clients.VideoClient
	Blob          *clients.BlobStore
	Usage         *usage.Accountant
	Log           *zap.Logger
	Metrics       *observability.Metrics
	Mode          config.CompletionMode
	ObjectBaseURL string
}

// Run executes one video job. In CompletionModeCallback, Run returns
// after enqueueing and leaves the job in processing; WorkerCallback
// drives it the rest of the way.
func (r *VideoJobRunner) Run(ctx context.Context, jobID string) error {
	job, err := r.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	avatar, err := r.Avatars.Get(ctx, job.AvatarID)
	if err != nil {
		return r.fail(ctx, job, err)
	}
	if !avatar.HasImage() {
		return r.fail(ctx, job, apperr.AvatarIncomplete("image"))
	}

	tempAudioKey := ""
	audioURL := job.SourceAudioURL

	if job.InputMode == models.InputModeScript {
		if !avatar.HasVoice() {
			return r.fail(ctx, job, apperr.AvatarIncomplete("voice"))
		}
		audio, err := r.Voice.Synthesize(ctx, avatar.ID, avatar.VoiceSampleURL, job.ScriptText, job.Language)
		if err != nil {
			return r.fail(ctx, job, apperr.VoiceSynthFailed(-1, err.Error()))
		}
		tempAudioKey = fmt.Sprintf("temp_audio/%s/%s-%d.wav", job.OwnerID, job.ID, time.Now().UnixMilli())
		if err := r.Blob.Put(ctx, tempAudioKey, audio, "audio/wav"); err != nil {
			return r.fail(ctx, job, err)
		}
		defer r.Blob.Delete(context.Background(), tempAudioKey)

		audioURL = r.Blob.PublicURL(r.ObjectBaseURL, tempAudioKey)
		audioURLCopy := audioURL
		if _, err := r.Jobs.Update(ctx, job.ID, jobstore.Patch{AudioURL: &audioURLCopy}); err != nil {
			return r.fail(ctx, job, err)
		}
		r.progress(ctx, job.ID, 50)
	}

	taskID, err := r.Video.Enqueue(ctx, avatar.ImageURL, audioURL, string(job.Quality))
	if err != nil {
		return r.fail(ctx, job, err)
	}
	taskIDCopy := taskID
	if _, err := r.Jobs.Update(ctx, job.ID, jobstore.Patch{UpstreamTaskID: &taskIDCopy}); err != nil {
		return r.fail(ctx, job, err)
	}
	r.progress(ctx, job.ID, 70)

	if r.Mode == config.CompletionModeCallback {
		// Job stays in processing; WorkerCallback drives the remaining
		// transitions (including the usage commit below, mirrored there).
		return nil
	}
	return r.poll(ctx, job, taskID)
}

func (r *VideoJobRunner) poll(ctx context.Context, job models.GenerationJob, taskID string) error {
	interval := 3 * time.Second
	maxAttempts := 120
	if job.Quality == models.QualityHigh {
		interval = 5 * time.Second
		maxAttempts = 240
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return r.fail(ctx, job, ctx.Err())
		case <-time.After(interval):
		}

		result, err := r.Video.Status(ctx, taskID)
		if err != nil {
			lastErr = err
			if attempt == maxAttempts-1 {
				return r.fail(ctx, job, apperr.New(apperr.KindPollTimeout, err))
			}
			continue
		}
		if result.Ready && len(result.Body) > 0 {
			return r.complete(ctx, job, result.Body)
		}
		if result.Status == "failed" {
			return r.fail(ctx, job, apperr.UpstreamRejected("video-svc", result.Error))
		}
		// any other status (queued/processing/...) keeps polling
	}
	if lastErr != nil {
		return r.fail(ctx, job, apperr.New(apperr.KindPollTimeout, lastErr))
	}
	return r.fail(ctx, job, apperr.New(apperr.KindPollTimeout, fmt.Errorf("exceeded %d poll attempts", maxAttempts)))
}

// complete uploads the finished artifact, commits usage, and transitions
// the job to completed. Exported for WorkerCallback to reuse on the
// inbound-push completion path.
func (r *VideoJobRunner) complete(ctx context.Context, job models.GenerationJob, artifact []byte) error {
	key := fmt.Sprintf("generated_videos/%s/%s-%d.mp4", job.ID, string(job.Quality), time.Now().UnixMilli())
	if err := r.Blob.Put(ctx, key, artifact, "video/mp4"); err != nil {
		return r.fail(ctx, job, err)
	}
	resultURL := r.Blob.PublicURL(r.ObjectBaseURL, key)

	minutes := estimateVideoMinutes(job.ScriptText)
	r.Usage.Commit(ctx, job.OwnerID, models.ResourceVideoMinutes, minutes)

	completed := models.JobStatusCompleted
	full := 100
	now := time.Now().UTC()
	_, err := r.Jobs.Update(ctx, job.ID, jobstore.Patch{
		Status: &completed, Progress: &full, ResultURL: &resultURL, CompletedAt: &now,
	})
	if err == nil && r.Metrics != nil {
		r.Metrics.JobsCompleted.WithLabelValues(string(job.Kind), string(completed)).Inc()
	}
	return err
}

func (r *VideoJobRunner) progress(ctx context.Context, jobID string, pct int) {
	p := pct
	if _, err := r.Jobs.Update(ctx, jobID, jobstore.Patch{Progress: &p}); err != nil {
		r.Log.Warn("runner: progress update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (r *VideoJobRunner) fail(ctx context.Context, job models.GenerationJob, cause error) error {
	if ctx.Err() != nil {
		cause = apperr.New(apperr.KindShutdownAborted, ctx.Err())
	}
	failed := models.JobStatusFailed
	zero := 0
	msg := cause.Error()
	now := time.Now().UTC()
	writeCtx, cancel := terminalWriteContext(ctx)
	defer cancel()
	if _, err := r.Jobs.Update(writeCtx, job.ID, jobstore.Patch{
		Status: &failed, Progress: &zero, ErrorMessage: &msg, CompletedAt: &now,
	}); err != nil {
		r.Log.Error("runner: failed to record job failure", zap.String("job_id", job.ID), zap.Error(err))
	} else if r.Metrics != nil {
		r.Metrics.JobsCompleted.WithLabelValues(string(job.Kind), string(failed)).Inc()
	}
	return cause
}

// estimateVideoMinutes is the duration formula: max(0.5, len(text)*0.01).
func estimateVideoMinutes(text string) float64 {
	minutes := float64(len(text)) * 0.01
	if minutes < 0.5 {
		return 0.5
	}
	return minutes
}

// Complete exposes complete for WorkerCallback.
func (r *VideoJobRunner) Complete(ctx context.Context, job models.GenerationJob, artifact []byte) error {
	return r.complete(ctx, job, artifact)
}

// Fail exposes fail for WorkerCallback.
func (r *VideoJobRunner) Fail(ctx context.Context, job models.GenerationJob, cause error) error {
	return r.fail(ctx, job, cause)
}
