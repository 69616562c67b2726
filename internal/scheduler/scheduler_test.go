package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/jobstore"
	"github.com/avatarplatform/mediator/internal/models"
)

type fakeMover struct {
	mu      sync.Mutex
	updates []jobstore.Patch
}

func (f *fakeMover) Update(_ context.Context, _ string, patch jobstore.Patch) (models.GenerationJob, error) {
	f.mu.Lock()
	f.updates = append(f.updates, patch)
	f.mu.Unlock()
	return models.GenerationJob{}, nil
}

type countingRunner struct {
	calls   atomic.Int32
	panicOn string
	done    chan struct{}
	n       int32
}

func (r *countingRunner) Run(_ context.Context, jobID string) error {
	if jobID == r.panicOn {
		panic("boom")
	}
	if r.calls.Add(1) == r.n {
		close(r.done)
	}
	return nil
}

func TestScheduler_RunsSubmittedJobs(t *testing.T) {
	runner := &countingRunner{done: make(chan struct{}), n: 3}
	mover := &fakeMover{}
	s := New(runner, mover, zap.NewNop(), 2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Submit(id); err != nil {
			t.Fatalf("submit(%s): %v", id, err)
		}
	}

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs to run")
	}
	s.Drain()
}

func TestScheduler_PanicRecoveredAndMarkedFailed(t *testing.T) {
	runner := &countingRunner{done: make(chan struct{}), n: 1, panicOn: "bad"}
	mover := &fakeMover{}
	s := New(runner, mover, zap.NewNop(), 1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	if err := s.Submit("bad"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := s.Submit("ok"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out: panic must not block subsequent jobs")
	}
	s.Drain()

	mover.mu.Lock()
	defer mover.mu.Unlock()
	var sawFailed bool
	for _, u := range mover.updates {
		if u.Status != nil && *u.Status == models.JobStatusFailed {
			sawFailed = true
		}
	}
	if !sawFailed {
		t.Error("expected a failed status update after panic recovery")
	}
}

func TestScheduler_SubmitRejectsWhenDraining(t *testing.T) {
	runner := &countingRunner{done: make(chan struct{}), n: 100}
	mover := &fakeMover{}
	s := New(runner, mover, zap.NewNop(), 1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Drain()

	if err := s.Submit("late"); err == nil {
		t.Error("expected Submit to fail after Drain")
	}
}
