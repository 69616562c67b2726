package mediator

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/avatarplatform/mediator/internal/protocol"
)

// openVoice dials voice-svc and sends the init control message. The
// ready signal itself arrives asynchronously on readVoice's event
// stream, per the voice upstream protocol.
func (m *Mediator) openVoice(ctx context.Context) error {
	stream, err := m.deps.Voice.DialStream(ctx, m.sess.ID)
	if err != nil {
		return err
	}
	if err := stream.SendInit(m.params.OwnerID, m.params.AvatarID, m.params.VoiceCloneURL, m.params.Language); err != nil {
		_ = stream.Close()
		return err
	}
	m.voice = stream
	return nil
}

// openVideo provisions a video-svc stream session via REST, then dials
// its WS. Called only for SessionKindVideo.
func (m *Mediator) openVideo(ctx context.Context) error {
	if err := m.deps.Video.InitStream(ctx, m.sess.ID, m.params.ImageURL); err != nil {
		return err
	}
	stream, err := m.deps.Video.DialStream(ctx, m.sess.ID)
	if err != nil {
		return err
	}
	m.video = stream
	return nil
}

// readVoice pumps voice-svc frames into the event channel until the
// stream closes or ctx is cancelled. It never touches Mediator state
// directly; the event loop does.
func (m *Mediator) readVoice(ctx context.Context) {
	for {
		isBinary, data, err := m.voice.ReadMessage()
		if err != nil {
			m.post(ctx, voiceCloseEvent{err: err})
			return
		}
		if isBinary {
			m.post(ctx, voiceBinaryEvent{data: data})
		} else {
			m.post(ctx, voiceJSONEvent{raw: data})
		}
	}
}

// readVideo pumps video-svc binary frames into the event channel.
func (m *Mediator) readVideo(ctx context.Context) {
	for {
		_, data, err := m.video.ReadMessage()
		if err != nil {
			m.post(ctx, videoCloseEvent{err: err})
			return
		}
		m.post(ctx, videoBinaryEvent{data: data})
	}
}

// readClient pumps the browser socket's JSON control frames into the
// event channel. Binary frames from the client are not part of the
// protocol and are ignored.
func (m *Mediator) readClient(ctx context.Context) {
	for {
		mt, data, err := m.client.ReadMessage()
		if err != nil {
			m.post(ctx, clientCloseEvent{err: err})
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			continue
		}
		if m.deps.Metrics != nil {
			m.deps.Metrics.WSMessages.WithLabelValues("inbound").Inc()
		}
		switch v := msg.(type) {
		case protocol.UserText:
			m.post(ctx, clientTextEvent{text: v.Text})
		case protocol.StopSpeaking:
			m.post(ctx, clientStopEvent{})
		}
	}
}

// post delivers an event to the loop, giving up silently if the session
// has already torn down (ctx cancelled) so reader goroutines never block
// past session end.
func (m *Mediator) post(ctx context.Context, ev event) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}
