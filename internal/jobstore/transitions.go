package jobstore

import "github.com/avatarplatform/mediator/internal/models"

// validTransition validates the state machine described in the data
// model: queued->processing->completed, queued->processing->failed,
// queued->failed, processing->timed-out. Any exit from a terminal state
// is invalid.
func validTransition(from, to models.JobStatus) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	switch from {
	case models.JobStatusQueued:
		switch to {
		case models.JobStatusProcessing, models.JobStatusFailed:
			return true
		}
	case models.JobStatusProcessing:
		switch to {
		case models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusTimedOut:
			return true
		}
	}
	return false
}
