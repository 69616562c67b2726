package session

import "time"

// Snapshot is the read-only view of a Session returned to callers
// (health checks, status endpoints) that should not see or mutate the
// live registry entry directly.
type Snapshot struct {
	SessionID         string    `json:"session_id"`
	OwnerID           string    `json:"owner_id"`
	AvatarID          string    `json:"avatar_id"`
	State             State     `json:"state"`
	InterruptionCount int       `json:"interruption_count"`
	StartedAt         time.Time `json:"started_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
}

// ToSnapshot projects a live Session into its wire-safe view.
func ToSnapshot(s *Session) Snapshot {
	return Snapshot{
		SessionID:         s.ID,
		OwnerID:           s.OwnerID,
		AvatarID:          s.AvatarID,
		State:             s.State,
		InterruptionCount: s.InterruptionCount,
		StartedAt:         s.StartedAt,
		LastActivityAt:    s.LastActivityAt,
	}
}
