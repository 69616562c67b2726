package audioasm

import "testing"

func TestConcat_SingleChunkPassthrough(t *testing.T) {
	pcm, _ := EncodeWAVPCM16LE([]byte{1, 2, 3, 4}, 16000)
	out, err := Concat([][]byte{pcm})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != string(pcm) {
		t.Fatalf("expected passthrough for single chunk")
	}
}

func TestConcat_DurationSumsAcrossChunks(t *testing.T) {
	a, _ := EncodeWAVPCM16LE(make([]byte, 1000), 16000)
	b, _ := EncodeWAVPCM16LE(make([]byte, 2000), 16000)
	out, err := Concat([][]byte{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, data, err := parseWAV(out)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(data) != 3000 {
		t.Fatalf("expected 3000 bytes of pcm data, got %d", len(data))
	}
	if f.SampleRate != 16000 {
		t.Fatalf("unexpected sample rate: %d", f.SampleRate)
	}
}

func TestConcat_MismatchedFormatFails(t *testing.T) {
	a, _ := EncodeWAVPCM16LE(make([]byte, 100), 16000)
	b, _ := EncodeWAVPCM16LE(make([]byte, 100), 22050)
	_, err := Concat([][]byte{a, b})
	if err != ErrMismatchedFormat {
		t.Fatalf("expected ErrMismatchedFormat, got %v", err)
	}
}

func TestConcat_EmptyInput(t *testing.T) {
	_, err := Concat(nil)
	if err == nil {
		t.Fatalf("expected error for empty input")
	}
}
