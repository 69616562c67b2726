// Package mediator bridges one browser WebSocket to voice-svc, optionally
// video-svc, and the LLM, coalescing every upstream into a single framed
// stream back to the client. Mediator.Run is a single event-loop
// goroutine that is the only writer of session state, fed by independent
// reader tasks over one channel, with the client/voice/video sockets and
// the LLM call treated as suspension points the loop never blocks on
// directly.
package mediator

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/models"
	"github.com/avatarplatform/mediator/internal/observability"
	"github.com/avatarplatform/mediator/internal/protocol"
	"github.com/avatarplatform/mediator/internal/session"
	"github.com/avatarplatform/mediator/internal/sessionstore"
	"github.com/avatarplatform/mediator/internal/usage"
)

// minBillableMinutes is the wall-clock floor below which a session's
// duration is not committed to the conversation-minutes counter.
const minBillableMinutes = 0.1

// eventBufferSize bounds how many undelivered events a reader task may
// queue before it blocks; the loop always drains promptly so this only
// needs to absorb bursts, not sustain backpressure.
const eventBufferSize = 64

// Deps are the Mediator's collaborators, built once per process and
// shared across sessions.
type Deps struct {
	Sessions *session.Manager
	Store    *sessionstore.Store
	Usage    *usage.Accountant
	Voice    VoiceUpstream
	Video    VideoUpstream
	LLM      LLM
	Log      *zap.Logger
	Metrics  *observability.Metrics

	SystemPrompt          string
	ReadinessTimeoutVoice time.Duration
	ReadinessTimeoutVideo time.Duration
}

// Params identify one session's upstream targets, resolved by the caller
// (the WS handler) from the query string and the loaded avatar.
type Params struct {
	OwnerID       string
	AvatarID      string
	Kind          models.SessionKind
	Language      string
	VoiceCloneURL string
	ImageURL      string // required for Kind == SessionKindVideo
}

// Mediator drives one client WebSocket's session lifecycle. One instance
// per connection; never shared across goroutines except for its single
// event loop.
type Mediator struct {
	deps   Deps
	params Params

	client *websocket.Conn
	sess   *session.Session
	// state mirrors the Manager's view of this session; the Manager hands
	// back snapshots (copies) rather than a live pointer, so the loop
	// tracks the current state itself from each call's return value
	// instead of re-reading a stale sess.State.
	state session.State

	voice VoiceStream
	video VideoStream

	events    chan event
	startedAt time.Time

	transcript   []models.TranscriptTurn
	turnSeq      int
	turnInFlight bool
	pendingTurns []string

	firstAudioSent bool
	closeOnce      bool
}

// New constructs a Mediator for a freshly-upgraded client socket. The
// caller owns registering the session in deps.Sessions before calling Run
// so status endpoints can see it immediately.
func New(deps Deps, params Params, client *websocket.Conn, sess *session.Session) *Mediator {
	return &Mediator{
		deps:   deps,
		params: params,
		client: client,
		sess:   sess,
		state:  session.StateConnecting,
		events: make(chan event, eventBufferSize),
	}
}

// Run drives the session to completion: dial upstreams, pump the event
// loop, and tear down on every exit path including panic. It returns once
// the session is fully closed.
func (m *Mediator) Run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	m.startedAt = time.Now().UTC()
	closeCode := websocket.CloseNormalClosure
	closeReason := "session ended"

	defer func() {
		if r := recover(); r != nil {
			m.deps.Log.Error("mediator: recovered panic", zap.Any("recovered", r), zap.String("session_id", m.sess.ID))
			closeCode = websocket.CloseInternalServerErr
			closeReason = "internal error"
		}
		m.teardown(closeCode, closeReason)
	}()

	watchdogDur := m.deps.ReadinessTimeoutVoice
	if m.params.Kind == models.SessionKindVideo {
		watchdogDur = m.deps.ReadinessTimeoutVideo
	}
	watchdog := time.NewTimer(watchdogDur)
	defer watchdog.Stop()

	if err := m.openVoice(ctx); err != nil {
		closeCode, closeReason = m.failFromError(ctx, err)
		return
	}
	go m.readVoice(ctx)

	if m.params.Kind == models.SessionKindVideo {
		if err := m.openVideo(ctx); err != nil {
			closeCode, closeReason = m.failFromError(ctx, err)
			return
		}
		go m.readVideo(ctx)

		// The video-svc protocol exposes no JSON ready signal of its own;
		// a successfully provisioned and dialed stream is the readiness
		// evidence for this upstream.
		if state, err := m.deps.Sessions.MarkVideoReady(m.sess.ID); err == nil {
			m.state = state
			if state == session.StateReady {
				watchdog.Stop()
				m.sendJSON(protocol.NewReady())
			}
		}
	}

	go m.readClient(ctx)

	m.sendJSON(protocol.NewConnecting())

	for {
		select {
		case <-ctx.Done():
			closeCode, closeReason = websocket.CloseNormalClosure, "context cancelled"
			return
		case <-watchdog.C:
			if m.state == session.StateConnecting {
				closeCode, closeReason = m.failFromError(ctx, apperr.New(apperr.KindReadinessTimeout, errors.New("upstream readiness timed out")))
				return
			}
		case ev := <-m.events:
			if done, code, reason := m.handleEvent(ctx, ev, watchdog); done {
				closeCode, closeReason = code, reason
				return
			}
		}
	}
}

// failFromError transitions the session to Failed, tells the client once,
// and returns the close code/reason the teardown should use.
func (m *Mediator) failFromError(ctx context.Context, err error) (int, string) {
	m.deps.Sessions.Fail(m.sess.ID)
	m.state = session.StateFailed
	kind := apperr.KindOf(err)
	m.sendJSON(protocol.NewErrorFrame(string(kind)))
	m.deps.Log.Warn("mediator: session failed", zap.String("session_id", m.sess.ID), zap.Error(err))
	return websocket.CloseInternalServerErr, string(kind)
}

func (m *Mediator) sendJSON(v any) {
	if m.client == nil {
		return
	}
	if m.deps.Metrics != nil {
		m.deps.Metrics.WSMessages.WithLabelValues("outbound").Inc()
	}
	if err := m.client.WriteJSON(v); err != nil {
		m.deps.Log.Debug("mediator: client write failed", zap.String("session_id", m.sess.ID), zap.Error(err))
	}
}

func (m *Mediator) sendBinary(kind protocol.BinaryFrameKind, data []byte) {
	if m.client == nil {
		return
	}
	if m.deps.Metrics != nil {
		m.deps.Metrics.WSMessages.WithLabelValues("outbound").Inc()
		if kind == protocol.FrameAudio && !m.firstAudioSent {
			m.firstAudioSent = true
			m.deps.Metrics.ObserveFirstAudioLatency(time.Since(m.startedAt))
		}
	}
	if err := m.client.WriteMessage(websocket.BinaryMessage, protocol.Frame(kind, data)); err != nil {
		m.deps.Log.Debug("mediator: client binary write failed", zap.String("session_id", m.sess.ID), zap.Error(err))
	}
}

// teardown runs the unconditional cleanup sequence from the terminal-path
// contract: clear the watchdog (already deferred by the caller), close
// both upstream sockets, end the video stream session, commit billable
// minutes, persist the transcript, and close the client socket.
func (m *Mediator) teardown(closeCode int, closeReason string) {
	ctx := context.Background()

	if m.voice != nil {
		_ = m.voice.Close()
	}
	if m.video != nil {
		_ = m.video.Close()
	}
	if m.params.Kind == models.SessionKindVideo {
		if err := m.deps.Video.EndStream(ctx, m.sess.ID); err != nil {
			if m.deps.Metrics != nil {
				m.deps.Metrics.ProviderErrors.WithLabelValues("video-svc").Inc()
			}
			m.deps.Log.Warn("mediator: end-stream failed", zap.String("session_id", m.sess.ID), zap.Error(err))
		}
	}

	m.deps.LLM.DropSession(m.sess.ID)

	duration := time.Since(m.startedAt)
	if duration.Minutes() > minBillableMinutes {
		m.deps.Usage.Commit(ctx, m.params.OwnerID, models.ResourceConversationMinutes, duration.Minutes())
	}

	if len(m.transcript) > 0 {
		for i, turn := range m.transcript {
			if err := m.deps.Store.AppendTurn(ctx, m.sess.ID, i, turn); err != nil {
				m.deps.Log.Warn("mediator: persist transcript turn failed", zap.String("session_id", m.sess.ID), zap.Error(err))
				break
			}
		}
	}
	if err := m.deps.Store.CloseSession(ctx, m.sess.ID); err != nil {
		m.deps.Log.Warn("mediator: close session row failed", zap.String("session_id", m.sess.ID), zap.Error(err))
	}
	m.deps.Sessions.Remove(m.sess.ID)

	if m.client != nil && !m.closeOnce {
		m.closeOnce = true
		msg := websocket.FormatCloseMessage(closeCode, closeReason)
		_ = m.client.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = m.client.Close()
	}
}

func appendTranscript(turns []models.TranscriptTurn, role, text string) []models.TranscriptTurn {
	return append(turns, models.TranscriptTurn{Role: role, Text: text})
}
