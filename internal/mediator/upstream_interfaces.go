package mediator

import (
	"context"

	"github.com/avatarplatform/mediator/internal/clients"
)

// The interfaces below are the mediator's consumer-side view of the
// voice-svc/video-svc/LLM clients — narrow enough that tests can supply
// fakes without a real socket or HTTP server, following the same pattern
// as scheduler.JobMover and reaper.Store. The concrete *clients.* types
// satisfy these once wrapped by the adapters below (DialStream's return
// type otherwise differs by exact concrete type, which Go's interface
// satisfaction does not look through).

type VoiceStream interface {
	SendInit(userID, avatarID, voiceCloneURL, language string) error
	SendTextToSpeak(text string) error
	SendStopSpeaking() error
	SendAudio(chunk []byte) error
	ReadMessage() (bool, []byte, error)
	Close() error
}

type VideoStream interface {
	SendAudio(chunk []byte) error
	SendStopSpeaking() error
	ReadMessage() (bool, []byte, error)
	Close() error
}

type VoiceUpstream interface {
	DialStream(ctx context.Context, sessionID string) (VoiceStream, error)
}

type VideoUpstream interface {
	InitStream(ctx context.Context, sessionID, imageURL string) error
	DialStream(ctx context.Context, sessionID string) (VideoStream, error)
	EndStream(ctx context.Context, sessionID string) error
}

// LLM is satisfied directly by *clients.LLMClient; no adapter needed
// since its method set already matches exactly.
type LLM interface {
	Generate(ctx context.Context, sessionID, userText, systemPrompt, language string) (string, error)
	DropSession(sessionID string)
}

type voiceClientAdapter struct{ c *clients.VoiceClient }

// WrapVoiceClient adapts a concrete voice-svc client to VoiceUpstream.
func WrapVoiceClient(c *clients.VoiceClient) VoiceUpstream { return voiceClientAdapter{c} }

func (a voiceClientAdapter) DialStream(ctx context.Context, sessionID string) (VoiceStream, error) {
	s, err := a.c.DialStream(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type videoClientAdapter struct{ c *clients.VideoClient }

// WrapVideoClient adapts a concrete video-svc client to VideoUpstream.
func WrapVideoClient(c *clients.VideoClient) VideoUpstream { return videoClientAdapter{c} }

func (a videoClientAdapter) InitStream(ctx context.Context, sessionID, imageURL string) error {
	return a.c.InitStream(ctx, sessionID, imageURL)
}

func (a videoClientAdapter) DialStream(ctx context.Context, sessionID string) (VideoStream, error) {
	s, err := a.c.DialStream(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (a videoClientAdapter) EndStream(ctx context.Context, sessionID string) error {
	return a.c.EndStream(ctx, sessionID)
}
