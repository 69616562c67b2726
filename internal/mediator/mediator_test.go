package mediator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/models"
	"github.com/avatarplatform/mediator/internal/session"
	"github.com/avatarplatform/mediator/internal/usage"
)

// fakeVoiceStream is a driveable voice-svc stream: the test pushes frames
// via inbox and reads what the mediator sent via the sent* slices.
type fakeVoiceStream struct {
	mu        sync.Mutex
	inbox     chan fakeFrame
	closed    bool
	sentText  []string
	sentStops int
	initCalls int
}

type fakeFrame struct {
	binary bool
	data   []byte
}

func newFakeVoiceStream() *fakeVoiceStream {
	return &fakeVoiceStream{inbox: make(chan fakeFrame, 16)}
}

func (f *fakeVoiceStream) SendInit(userID, avatarID, voiceCloneURL, language string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return nil
}

func (f *fakeVoiceStream) SendTextToSpeak(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentText = append(f.sentText, text)
	return nil
}

func (f *fakeVoiceStream) SendStopSpeaking() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentStops++
	return nil
}

func (f *fakeVoiceStream) SendAudio(chunk []byte) error { return nil }

func (f *fakeVoiceStream) ReadMessage() (bool, []byte, error) {
	frame, ok := <-f.inbox
	if !ok {
		return false, nil, errors.New("closed")
	}
	return frame.binary, frame.data, nil
}

func (f *fakeVoiceStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbox)
	}
	return nil
}

type fakeVoiceUpstream struct{ stream *fakeVoiceStream }

func (u *fakeVoiceUpstream) DialStream(ctx context.Context, sessionID string) (VoiceStream, error) {
	return u.stream, nil
}

type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Generate(ctx context.Context, sessionID, userText, systemPrompt, language string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

func (f *fakeLLM) DropSession(sessionID string) {}

func newTestMediator(t *testing.T, voice *fakeVoiceStream, llm *fakeLLM) (*Mediator, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(time.Minute)
	sess := sessions.Create("owner-1", "avatar-1", models.SessionKindVoice)

	deps := Deps{
		Sessions:              sessions,
		Usage:                 usage.New(nil, zap.NewNop()),
		Voice:                 &fakeVoiceUpstream{stream: voice},
		LLM:                   llm,
		Log:                   zap.NewNop(),
		SystemPrompt:          "you are a test avatar",
		ReadinessTimeoutVoice: time.Second,
		ReadinessTimeoutVideo: time.Second,
	}
	params := Params{OwnerID: "owner-1", AvatarID: "avatar-1", Kind: models.SessionKindVoice}
	m := New(deps, params, nil, sess)
	m.voice = voice
	return m, sessions
}

func TestOnUserText_QueuesWhileTurnInFlight(t *testing.T) {
	voice := newFakeVoiceStream()
	llm := &fakeLLM{reply: "hi there"}
	m, _ := newTestMediator(t, voice, llm)
	ctx := context.Background()

	m.onUserText(ctx, "first")
	if !m.turnInFlight {
		t.Fatal("expected turn to be in flight after first user_text")
	}
	m.onUserText(ctx, "second")
	if len(m.pendingTurns) != 1 || m.pendingTurns[0] != "second" {
		t.Fatalf("pendingTurns = %v, want [\"second\"]", m.pendingTurns)
	}

	ev := <-m.events
	res, ok := ev.(llmResultEvent)
	if !ok {
		t.Fatalf("event = %T, want llmResultEvent", ev)
	}
	m.onLLMResult(ctx, res)
	if !m.turnInFlight {
		t.Fatal("expected second queued turn to now be in flight")
	}
	if len(m.pendingTurns) != 0 {
		t.Fatalf("pendingTurns after drain = %v, want empty", m.pendingTurns)
	}
}

func TestOnLLMResult_FallsBackOnError(t *testing.T) {
	voice := newFakeVoiceStream()
	llm := &fakeLLM{err: errors.New("boom")}
	m, _ := newTestMediator(t, voice, llm)
	ctx := context.Background()

	m.onUserText(ctx, "hello")
	ev := (<-m.events).(llmResultEvent)
	m.onLLMResult(ctx, ev)

	if len(voice.sentText) != 1 || voice.sentText[0] != fallbackResponse {
		t.Fatalf("voice.sentText = %v, want [%q]", voice.sentText, fallbackResponse)
	}
	if m.transcript[len(m.transcript)-1].Text != fallbackResponse {
		t.Fatalf("last transcript turn = %+v, want fallback text", m.transcript[len(m.transcript)-1])
	}
}

func TestOnStopSpeaking_ForwardsAndRepliesImmediately(t *testing.T) {
	voice := newFakeVoiceStream()
	llm := &fakeLLM{}
	m, sessions := newTestMediator(t, voice, llm)

	sessions.MarkVoiceReady(m.sess.ID)
	m.onStopSpeaking()

	if voice.sentStops != 1 {
		t.Fatalf("voice.sentStops = %d, want 1", voice.sentStops)
	}
	got, err := sessions.Get(m.sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.InterruptionCount != 1 {
		t.Fatalf("InterruptionCount = %d, want 1", got.InterruptionCount)
	}
}

func TestHandleVoiceJSON_ReadyUnlocksVoiceOnlySession(t *testing.T) {
	voice := newFakeVoiceStream()
	llm := &fakeLLM{}
	m, _ := newTestMediator(t, voice, llm)

	watchdog := time.NewTimer(time.Hour)
	defer watchdog.Stop()

	done, _, _ := m.handleVoiceJSON(context.Background(), voiceJSONEvent{raw: []byte(`{"type":"ready"}`)}, watchdog)
	if done {
		t.Fatal("ready should not terminate the session")
	}
	if m.state != session.StateReady {
		t.Fatalf("state = %q, want %q", m.state, session.StateReady)
	}
}

func TestHandleVoiceJSON_ErrorFailsSession(t *testing.T) {
	voice := newFakeVoiceStream()
	llm := &fakeLLM{}
	m, _ := newTestMediator(t, voice, llm)

	watchdog := time.NewTimer(time.Hour)
	defer watchdog.Stop()

	done, code, _ := m.handleVoiceJSON(context.Background(), voiceJSONEvent{raw: []byte(`{"type":"error","error":"synth down"}`)}, watchdog)
	if !done {
		t.Fatal("voice-svc error should terminate the session")
	}
	if code == 0 {
		t.Fatal("expected a non-zero close code")
	}
	if m.state != session.StateFailed {
		t.Fatalf("state = %q, want %q", m.state, session.StateFailed)
	}
}
