package session

import (
	"context"
	"testing"
	"time"

	"github.com/avatarplatform/mediator/internal/models"
)

func TestManagerCreateGetDrain(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("owner-1", "avatar-1", models.SessionKindVoice)
	if s.ID == "" {
		t.Fatal("session ID should not be empty")
	}
	if s.State != StateConnecting {
		t.Fatalf("initial state = %q, want %q", s.State, StateConnecting)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.OwnerID != "owner-1" || got.AvatarID != "avatar-1" {
		t.Fatalf("unexpected session state: %+v", got)
	}

	drained, err := m.Drain(s.ID)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if drained.State != StateDraining {
		t.Fatalf("state = %q, want %q", drained.State, StateDraining)
	}
}

func TestManager_VoiceOnlyReadyOnVoiceSignal(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("owner-1", "avatar-1", models.SessionKindVoice)

	state, err := m.MarkVoiceReady(s.ID)
	if err != nil {
		t.Fatalf("MarkVoiceReady() error = %v", err)
	}
	if state != StateReady {
		t.Fatalf("state = %q, want %q", state, StateReady)
	}
}

func TestManager_VideoSessionRequiresBothReadySignals(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("owner-1", "avatar-1", models.SessionKindVideo)

	state, err := m.MarkVoiceReady(s.ID)
	if err != nil {
		t.Fatalf("MarkVoiceReady() error = %v", err)
	}
	if state != StateConnecting {
		t.Fatalf("state after voice-only ready = %q, want still %q", state, StateConnecting)
	}

	state, err = m.MarkVideoReady(s.ID)
	if err != nil {
		t.Fatalf("MarkVideoReady() error = %v", err)
	}
	if state != StateReady {
		t.Fatalf("state after both ready = %q, want %q", state, StateReady)
	}
}

func TestManager_InterruptIncrementsCount(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("owner-1", "avatar-1", models.SessionKindVoice)
	m.MarkVoiceReady(s.ID)
	m.MarkActive(s.ID)

	if err := m.Interrupt(s.ID); err != nil {
		t.Fatalf("Interrupt() error = %v", err)
	}
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.InterruptionCount != 1 {
		t.Fatalf("InterruptionCount = %d, want 1", got.InterruptionCount)
	}
	if got.State != StateActive {
		t.Fatalf("state = %q, want %q (interrupt must not change state)", got.State, StateActive)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("owner-1", "avatar-1", models.SessionKindVoice)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateDraining {
		t.Fatalf("state = %q, want %q", got.State, StateDraining)
	}
}
