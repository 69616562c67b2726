package mediator

import (
	"context"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/models"
	"github.com/avatarplatform/mediator/internal/protocol"
	"github.com/avatarplatform/mediator/internal/session"
)

// fallbackResponse is sent in place of a model reply when the LLM call
// fails or returns an empty completion, so a turn always produces
// something the voice upstream can speak.
const fallbackResponse = "Sorry, I didn't catch that. Could you say it again?"

// handleEvent is the event loop's single dispatch point. It returns
// done=true once the session has reached a terminal path, along with the
// close code/reason Run should use for the client socket.
func (m *Mediator) handleEvent(ctx context.Context, ev event, watchdog *time.Timer) (bool, int, string) {
	switch e := ev.(type) {

	case voiceJSONEvent:
		return m.handleVoiceJSON(ctx, e, watchdog)

	case voiceBinaryEvent:
		m.sendBinary(protocol.FrameAudio, e.data)
		if m.params.Kind == models.SessionKindVideo && m.video != nil {
			if err := m.video.SendAudio(e.data); err != nil {
				m.deps.Log.Debug("mediator: forward audio to video-svc failed", zap.String("session_id", m.sess.ID), zap.Error(err))
			}
		}
		return false, 0, ""

	case videoBinaryEvent:
		m.sendBinary(protocol.FrameVideo, e.data)
		return false, 0, ""

	case voiceCloseEvent:
		m.deps.Sessions.Drain(m.sess.ID)
		return true, drainCloseCode(e.err), "voice upstream closed"

	case videoCloseEvent:
		m.deps.Sessions.Drain(m.sess.ID)
		return true, drainCloseCode(e.err), "video upstream closed"

	case clientTextEvent:
		m.onUserText(ctx, e.text)
		return false, 0, ""

	case clientStopEvent:
		m.onStopSpeaking()
		return false, 0, ""

	case clientCloseEvent:
		m.deps.Sessions.Drain(m.sess.ID)
		return true, websocket.CloseNormalClosure, "client closed"

	case llmResultEvent:
		m.onLLMResult(ctx, e)
		return false, 0, ""
	}
	return false, 0, ""
}

func (m *Mediator) handleVoiceJSON(ctx context.Context, e voiceJSONEvent, watchdog *time.Timer) (bool, int, string) {
	msg, err := parseVoiceUpstreamMessage(e.raw)
	if err != nil {
		return false, 0, ""
	}
	switch msg.Type {
	case "ready":
		state, err := m.deps.Sessions.MarkVoiceReady(m.sess.ID)
		if err != nil {
			return false, 0, ""
		}
		m.state = state
		if state == session.StateReady {
			watchdog.Stop()
			m.sendJSON(protocol.NewReady())
		}
	case "error":
		if m.deps.Metrics != nil {
			m.deps.Metrics.ProviderErrors.WithLabelValues("voice-svc").Inc()
		}
		code, reason := m.failFromError(ctx, apperr.UpstreamRejected("voice-svc", msg.Error))
		return true, code, reason
	case "speech_start":
		m.sendJSON(protocol.NewSpeechStart())
	case "speech_end":
		m.sendJSON(protocol.NewSpeechEnd())
	}
	return false, 0, ""
}

// onUserText implements the turn loop. Turns are strictly serialized: a
// second user_text arriving while one is in flight queues behind it
// rather than racing a second LLM call.
func (m *Mediator) onUserText(ctx context.Context, text string) {
	_ = m.deps.Sessions.Touch(m.sess.ID)
	m.deps.Sessions.MarkActive(m.sess.ID)

	if m.turnInFlight {
		m.pendingTurns = append(m.pendingTurns, text)
		return
	}
	m.startTurn(ctx, text)
}

func (m *Mediator) startTurn(ctx context.Context, text string) {
	m.transcript = appendTranscript(m.transcript, "user", text)
	m.turnSeq++
	seq := m.turnSeq
	m.turnInFlight = true

	go func() {
		reply, err := m.deps.LLM.Generate(ctx, m.sess.ID, text, m.deps.SystemPrompt, m.params.Language)
		m.post(ctx, llmResultEvent{seq: seq, text: reply, err: err})
	}()
}

func (m *Mediator) onLLMResult(ctx context.Context, e llmResultEvent) {
	if e.seq != m.turnSeq {
		return // superseded by a later turn; should not happen given serialization, but guard anyway
	}

	text := strings.TrimSpace(e.text)
	if e.err != nil || text == "" {
		text = fallbackResponse
		if e.err != nil {
			if m.deps.Metrics != nil {
				m.deps.Metrics.ProviderErrors.WithLabelValues("llm").Inc()
			}
			m.deps.Log.Warn("mediator: llm turn failed, using fallback", zap.String("session_id", m.sess.ID), zap.Error(e.err))
		}
	}

	m.transcript = appendTranscript(m.transcript, "model", text)
	m.sendJSON(protocol.NewLLMResponseText(text))
	if m.voice != nil {
		if err := m.voice.SendTextToSpeak(text); err != nil {
			m.deps.Log.Debug("mediator: send text_to_speak failed", zap.String("session_id", m.sess.ID), zap.Error(err))
		}
	}

	m.turnInFlight = false
	if len(m.pendingTurns) > 0 {
		next := m.pendingTurns[0]
		m.pendingTurns = m.pendingTurns[1:]
		m.startTurn(ctx, next)
	}
}

// onStopSpeaking is the barge-in path: both upstreams are told to stop,
// and the client is told the speech ended immediately rather than waiting
// on an upstream acknowledgement it may never send promptly.
func (m *Mediator) onStopSpeaking() {
	_ = m.deps.Sessions.Interrupt(m.sess.ID)
	if m.voice != nil {
		_ = m.voice.SendStopSpeaking()
	}
	if m.video != nil {
		_ = m.video.SendStopSpeaking()
	}
	m.sendJSON(protocol.NewSpeechEnd())
}

// drainCloseCode picks a client close code for an upstream-initiated
// close: a clean EOF closes normally, anything else is reported as a
// server error so the client can distinguish "call ended" from "broke".
func drainCloseCode(err error) int {
	if err == nil {
		return websocket.CloseNormalClosure
	}
	if _, ok := err.(*websocket.CloseError); ok {
		return websocket.CloseNormalClosure
	}
	return websocket.CloseInternalServerErr
}
