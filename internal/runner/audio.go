// Package runner implements the per-job pipelines the scheduler invokes
// once a job transitions to processing: AudioJobRunner and VideoJobRunner,
// a load-input/call-upstream/persist/report-progress pipeline shape
// shared across both job kinds.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/audioasm"
	"github.com/avatarplatform/mediator/internal/avatarstore"
	"github.com/avatarplatform/mediator/internal/chunker"
	"github.com/avatarplatform/mediator/internal/clients"
	"github.com/avatarplatform/mediator/internal/jobstore"
	"github.com/avatarplatform/mediator/internal/models"
	"github.com/avatarplatform/mediator/internal/observability"
	"github.com/avatarplatform/mediator/internal/usage"
)

// AudioJobRunner executes the audio generation pipeline: chunk, synth per
// chunk, concatenate, upload, commit usage, complete.
type AudioJobRunner struct {
	Jobs          *jobstore.Store
	Avatars       *avatarstore.Store
	Voice         *clients.VoiceClient
	Blob          *clients.BlobStore
	Usage         *usage.Accountant
	Log           *zap.Logger
	Metrics       *observability.Metrics
	ChunkCap      int
	ChunkPause    time.Duration
	ObjectBaseURL string
}

// Run executes one audio job end to end. The scheduler has already moved
// the job to processing; Run owns all further progress/status writes.
func (r *AudioJobRunner) Run(ctx context.Context, jobID string) error {
	job, err := r.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	avatar, err := r.Avatars.Get(ctx, job.AvatarID)
	if err != nil {
		return r.fail(ctx, job, err)
	}
	if !avatar.HasVoice() {
		return r.fail(ctx, job, apperr.AvatarIncomplete("voice"))
	}
	r.progress(ctx, job.ID, 10)

	plan := chunker.PlanText(job.ScriptText, r.ChunkCapOrDefault())
	r.progress(ctx, job.ID, 20)

	chunks := make([][]byte, 0, len(plan.Chunks))
	for i, c := range plan.Chunks {
		audio, err := r.Voice.Synthesize(ctx, avatar.ID, avatar.VoiceSampleURL, c.Text, job.Language)
		if err != nil {
			return r.fail(ctx, job, apperr.VoiceSynthFailed(i, err.Error()))
		}
		chunks = append(chunks, audio)

		pct := 20 + int(50*float64(i+1)/float64(len(plan.Chunks)))
		r.progress(ctx, job.ID, pct)

		if i < len(plan.Chunks)-1 && r.ChunkPause > 0 {
			select {
			case <-time.After(r.ChunkPause):
			case <-ctx.Done():
				return r.fail(ctx, job, ctx.Err())
			}
		}
	}

	merged, err := audioasm.Concat(chunks)
	if err != nil {
		return r.fail(ctx, job, apperr.New(apperr.KindAssembleFailed, err))
	}
	r.progress(ctx, job.ID, 80)

	key := fmt.Sprintf("generated_audio/%s/%s-%d.wav", job.OwnerID, job.ID, time.Now().UnixMilli())
	if err := r.Blob.Put(ctx, key, merged, "audio/wav"); err != nil {
		return r.fail(ctx, job, err)
	}
	resultURL := r.Blob.PublicURL(r.ObjectBaseURL, key)
	r.progress(ctx, job.ID, 90)

	minutes := estimateAudioMinutes(job.ScriptText)
	r.Usage.Commit(ctx, job.OwnerID, models.ResourceAudioMinutes, minutes)
	r.progress(ctx, job.ID, 95)

	completed := models.JobStatusCompleted
	full := 100
	now := time.Now().UTC()
	_, err = r.Jobs.Update(ctx, job.ID, jobstore.Patch{
		Status: &completed, Progress: &full, ResultURL: &resultURL, CompletedAt: &now,
	})
	if err == nil && r.Metrics != nil {
		r.Metrics.JobsCompleted.WithLabelValues(string(job.Kind), string(completed)).Inc()
	}
	return err
}

func (r *AudioJobRunner) ChunkCapOrDefault() int {
	if r.ChunkCap <= 0 {
		return chunker.DefaultCap
	}
	return r.ChunkCap
}

func (r *AudioJobRunner) progress(ctx context.Context, jobID string, pct int) {
	p := pct
	if _, err := r.Jobs.Update(ctx, jobID, jobstore.Patch{Progress: &p}); err != nil {
		r.Log.Warn("runner: progress update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (r *AudioJobRunner) fail(ctx context.Context, job models.GenerationJob, cause error) error {
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

// estimateAudioMinutes is the duration formula: max(0.5, words/150).
func estimateAudioMinutes(text string) float64 {
	words := len(strings.Fields(text))
	minutes := float64(words) / 150.0
	if minutes < 0.5 {
		return 0.5
	}
	return minutes
}
