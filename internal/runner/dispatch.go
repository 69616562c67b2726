package runner

import (
	"context"
	"fmt"

	"github.com/avatarplatform/mediator/internal/jobstore"
	"github.com/avatarplatform/mediator/internal/models"
)

// DispatchRunner adapts AudioJobRunner and VideoJobRunner to a single
// scheduler.Runner so one Scheduler (one queue, one worker pool, one
// MaxConcurrentJobs knob) drains both job kinds rather than running two
// independent pools. The job row itself carries Kind, so dispatch needs
// no extra bookkeeping beyond the id the scheduler already hands it.
type DispatchRunner struct {
	Jobs  *jobstore.Store
	Audio *AudioJobRunner
	Video *VideoJobRunner
}

func (d *DispatchRunner) Run(ctx context.Context, jobID string) error {
	job, err := d.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	switch job.Kind {
	case models.JobKindAudio:
		return d.Audio.Run(ctx, jobID)
	case models.JobKindVideo:
		return d.Video.Run(ctx, jobID)
	default:
		return fmt.Errorf("runner: unknown job kind %q", job.Kind)
	}
}
