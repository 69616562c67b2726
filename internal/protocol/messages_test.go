package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrame_PrependsDiscriminatorByte(t *testing.T) {
	got := Frame(FrameAudio, []byte{1, 2, 3})
	want := []byte{0x01, 1, 2, 3}
	if !bytes.Equal(got, want) {
		t.Errorf("Frame(audio, ...) = %v, want %v", got, want)
	}
	got = Frame(FrameVideo, nil)
	if !bytes.Equal(got, []byte{0x02}) {
		t.Errorf("Frame(video, nil) = %v, want [0x02]", got)
	}
}

func TestParseClientMessage_UserText(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"user_text","text":"hello there"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	ut, ok := msg.(UserText)
	if !ok {
		t.Fatalf("message type = %T, want UserText", msg)
	}
	if ut.Text != "hello there" {
		t.Errorf("Text = %q, want %q", ut.Text, "hello there")
	}
}

func TestParseClientMessage_StopSpeaking(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"stop_speaking"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if _, ok := msg.(StopSpeaking); !ok {
		t.Fatalf("message type = %T, want StopSpeaking", msg)
	}
}

func TestParseClientMessage_RejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessage_RejectsEmptyUserText(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"user_text","text":""}`))
	if err == nil {
		t.Fatal("expected validation error for empty user_text")
	}
}

func TestParseClientMessage_RejectsMalformedJSON(t *testing.T) {
	_, err := ParseClientMessage([]byte(`not json`))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
