package jobstore

import (
	"testing"

	"github.com/avatarplatform/mediator/internal/models"
)

func TestValidTransition_HappyPaths(t *testing.T) {
	cases := []struct {
		from, to models.JobStatus
		want     bool
	}{
		{models.JobStatusQueued, models.JobStatusProcessing, true},
		{models.JobStatusProcessing, models.JobStatusCompleted, true},
		{models.JobStatusProcessing, models.JobStatusFailed, true},
		{models.JobStatusQueued, models.JobStatusFailed, true},
		{models.JobStatusProcessing, models.JobStatusTimedOut, true},
	}
	for _, c := range cases {
		if got := validTransition(c.from, c.to); got != c.want {
			t.Errorf("validTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestValidTransition_TerminalStatesNeverReTransition(t *testing.T) {
	terminal := []models.JobStatus{models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusTimedOut}
	for _, from := range terminal {
		if validTransition(from, models.JobStatusProcessing) {
			t.Errorf("expected terminal state %s to reject re-transition", from)
		}
	}
}

func TestValidTransition_RejectsSkippingQueued(t *testing.T) {
	if validTransition(models.JobStatusQueued, models.JobStatusCompleted) {
		t.Errorf("expected queued->completed to be rejected (must pass through processing)")
	}
}
