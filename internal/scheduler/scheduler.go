// Package scheduler implements the bounded-concurrency worker pool that
// drains queued generation jobs: a goroutine-plus-channel worker pool
// generalized to run any job kind through the Runner interface below.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/jobstore"
	"github.com/avatarplatform/mediator/internal/models"
)

// ErrQueueFull is returned by Submit when the queue's soft bound has been
// reached. The bound is enforced: a submit that gets this error is not
// queued.
var ErrQueueFull = errors.New("scheduler: queue soft bound exceeded")

// Runner executes one job's pipeline to a terminal state. Implementations
// (AudioJobRunner, VideoJobRunner) are responsible for their own progress
// reporting and terminal transitions; the scheduler only moves the job
// from queued to processing and releases the slot when Run returns.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// JobMover is the subset of *jobstore.Store the scheduler needs to flip a
// job from queued to processing before invoking the runner, and to record
// a synthetic failure if the runner panics.
type JobMover interface {
	Update(ctx context.Context, jobID string, patch jobstore.Patch) (models.GenerationJob, error)
}

// Scheduler is a FIFO queue paired with W workers.
type Scheduler struct {
	runner Runner
	mover  JobMover
	log    *zap.Logger

	jobs   chan string
	wg     sync.WaitGroup
	cancel map[string]context.CancelFunc
	mu     sync.Mutex

	draining bool
	workers  int
}

// New builds a Scheduler with workers worker goroutines and a soft queue
// bound of softBound (0 or less uses a buffer of 1<<20 entries, so Submit
// only fails with ErrQueueFull past that backlog). Call Start to launch
// the worker goroutines.
func New(runner Runner, mover JobMover, log *zap.Logger, workers, softBound int) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	bufSize := softBound
	if bufSize <= 0 {
		bufSize = 1 << 20
	}
	return &Scheduler{
		runner:  runner,
		mover:   mover,
		log:     log,
		jobs:    make(chan string, bufSize),
		cancel:  make(map[string]context.CancelFunc),
		workers: workers,
	}
}

// Start launches the worker pool. It must be called once before Submit.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
}

// Submit enqueues jobID for processing. jobID's row must already be
// persisted in status=queued. Non-blocking: returns ErrQueueFull instead
// of blocking if the soft bound is exceeded, and a draining error if the
// scheduler is shutting down.
func (s *Scheduler) Submit(jobID string) error {
	s.mu.Lock()
	draining := s.draining
	s.mu.Unlock()
	if draining {
		return errors.New("scheduler: draining, refusing new submits")
	}

	select {
	case s.jobs <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth reports the number of jobs currently buffered awaiting a
// worker, for the health/metrics surface.
func (s *Scheduler) QueueDepth() int {
	return len(s.jobs)
}

// Drain stops accepting new submits, waits for in-flight jobs to finish,
// and cancels every job's context so in-progress runners unwind.
func (s *Scheduler) Drain() {
	s.mu.Lock()
	s.draining = true
	for _, cancel := range s.cancel {
		cancel()
	}
	s.mu.Unlock()

	close(s.jobs)
	s.wg.Wait()
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for jobID := range s.jobs {
		s.runOne(ctx, jobID)
	}
}

func (s *Scheduler) runOne(parent context.Context, jobID string) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.cancel[jobID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancel, jobID)
		s.mu.Unlock()
		cancel()
	}()

	processing := models.JobStatusProcessing
	startProgress := 20
	if _, err := s.mover.Update(ctx, jobID, jobstore.Patch{Status: &processing, Progress: &startProgress}); err != nil {
		s.log.Error("scheduler: failed to mark job processing", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler: runner panicked", zap.String("job_id", jobID), zap.Any("recover", r))
			failed := models.JobStatusFailed
			zeroProgress := 0
			msg := "internal error: worker panicked"
			if _, err := s.mover.Update(ctx, jobID, jobstore.Patch{
				Status: &failed, Progress: &zeroProgress, ErrorMessage: &msg,
			}); err != nil {
				s.log.Error("scheduler: failed to record panic failure", zap.String("job_id", jobID), zap.Error(err))
			}
		}
	}()

	if err := s.runner.Run(ctx, jobID); err != nil {
		s.log.Warn("scheduler: job run returned error", zap.String("job_id", jobID), zap.Error(err))
	}
}
