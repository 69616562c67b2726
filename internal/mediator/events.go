package mediator

import "encoding/json"

// event is the sum type posted into Mediator.events by the three reader
// tasks (client, voice, video). The event loop is the only goroutine that
// ever reads this channel, so handleEvent needs no locking.
type event interface{}

type clientTextEvent struct{ text string }

type clientStopEvent struct{}

type clientCloseEvent struct{ err error }

type voiceJSONEvent struct{ raw []byte }

type voiceBinaryEvent struct{ data []byte }

type voiceCloseEvent struct{ err error }

type videoBinaryEvent struct{ data []byte }

type videoCloseEvent struct{ err error }

type llmResultEvent struct {
	seq  int
	text string
	err  error
}

// voiceUpstreamMessage mirrors the small JSON vocabulary voice-svc sends
// back: ready/error/speech_start/speech_end.
type voiceUpstreamMessage struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

func parseVoiceUpstreamMessage(raw []byte) (voiceUpstreamMessage, error) {
	var msg voiceUpstreamMessage
	err := json.Unmarshal(raw, &msg)
	return msg, err
}
