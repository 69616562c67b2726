// Package protocol defines the mediator's wire framing to the browser
// client: a one-byte binary discriminator for media frames, and a small
// envelope-typed JSON message set for everything else.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// BinaryFrameKind discriminates the client-bound binary frame prefix.
type BinaryFrameKind byte

const (
	FrameAudio BinaryFrameKind = 0x01
	FrameVideo BinaryFrameKind = 0x02
)

// Frame prefixes data with its discriminator byte for the client socket.
func Frame(kind BinaryFrameKind, data []byte) []byte {
	out := make([]byte, 1+len(data))
	out[0] = byte(kind)
	copy(out[1:], data)
	return out
}

// MessageType identifies a JSON text-frame variant, client- or
// server-bound.
type MessageType string

const (
	TypeConnecting      MessageType = "connecting"
	TypeReady           MessageType = "ready"
	TypeLLMResponseText MessageType = "llm_response_text"
	TypeSpeechStart     MessageType = "speech_start"
	TypeSpeechEnd       MessageType = "speech_end"
	TypeError           MessageType = "error"
	TypeSystem          MessageType = "system"

	TypeUserText     MessageType = "user_text"
	TypeStopSpeaking MessageType = "stop_speaking"
)

var ErrUnsupportedType = errors.New("protocol: unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// Connecting is the server->client frame sent on session open.
type Connecting struct {
	Type MessageType `json:"type"`
}

// Ready is the server->client frame sent once all required upstreams are
// ready.
type Ready struct {
	Type MessageType `json:"type"`
}

// LLMResponseText carries the model's turn response to the client.
type LLMResponseText struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// SpeechStart and SpeechEnd mirror the voice upstream's speaking
// boundary events to the client.
type SpeechStart struct {
	Type MessageType `json:"type"`
}

type SpeechEnd struct {
	Type MessageType `json:"type"`
}

// ErrorFrame is the single terminal error notification sent before the
// mediator closes the socket on a Failed transition.
type ErrorFrame struct {
	Type   MessageType `json:"type"`
	Reason string      `json:"reason"`
}

// SystemFrame carries informational, non-fatal status.
type SystemFrame struct {
	Type   MessageType `json:"type"`
	Detail string      `json:"detail,omitempty"`
}

// UserText is the client->server turn submission.
type UserText struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// StopSpeaking is the client->server barge-in signal.
type StopSpeaking struct {
	Type MessageType `json:"type"`
}

func NewConnecting() Connecting { return Connecting{Type: TypeConnecting} }
func NewReady() Ready           { return Ready{Type: TypeReady} }

func NewLLMResponseText(text string) LLMResponseText {
	return LLMResponseText{Type: TypeLLMResponseText, Text: text}
}

func NewSpeechStart() SpeechStart { return SpeechStart{Type: TypeSpeechStart} }
func NewSpeechEnd() SpeechEnd     { return SpeechEnd{Type: TypeSpeechEnd} }

func NewErrorFrame(reason string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Reason: reason}
}

func NewSystemFrame(detail string) SystemFrame {
	return SystemFrame{Type: TypeSystem, Detail: detail}
}

// ParseClientMessage decodes an inbound JSON text frame into UserText or
// StopSpeaking, or returns ErrUnsupportedType for anything else.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("protocol: invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeUserText:
		var msg UserText
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("protocol: invalid user_text: empty text")
		}
		return msg, nil
	case TypeStopSpeaking:
		return StopSpeaking{Type: TypeStopSpeaking}, nil
	default:
		return nil, ErrUnsupportedType
	}
}
