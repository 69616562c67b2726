// Package audioasm concatenates WAV byte-streams produced by the same
// synth model/sample-rate into a single WAV payload, per spec's
// AudioAssembler component. It is adapted from the WAV encoder the
// voice pipeline used for a single PCM buffer, generalized to parse an
// arbitrary input WAV's fmt chunk and re-encode the concatenated data.
package audioasm

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Format is the subset of a WAV fmt chunk AudioAssembler cares about.
type Format struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
}

func (f Format) byteRate() uint32 {
	return f.SampleRate * uint32(f.NumChannels) * uint32(f.BitsPerSample) / 8
}

func (f Format) blockAlign() uint16 {
	return f.NumChannels * f.BitsPerSample / 8
}

// ErrMismatchedFormat is returned when inputs were not produced by the
// same model/sample-rate, per the component's documented contract.
var ErrMismatchedFormat = fmt.Errorf("audioasm: mismatched wav format across chunks")

// Concat concatenates the given WAV byte-streams into one WAV payload
// whose duration equals the sum of inputs' durations. A single input is
// passed through unchanged (no-op). All inputs must share the same fmt
// chunk; an AssembleFailed-class error (ErrMismatchedFormat) is returned
// otherwise.
func Concat(chunks [][]byte) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("audioasm: no chunks to concatenate")
	}
	if len(chunks) == 1 {
		return chunks[0], nil
	}

	var format Format
	var data bytes.Buffer
	for i, chunk := range chunks {
		f, pcm, err := parseWAV(chunk)
		if err != nil {
			return nil, fmt.Errorf("audioasm: chunk %d: %w", i, err)
		}
		if i == 0 {
			format = f
		} else if f != format {
			return nil, ErrMismatchedFormat
		}
		data.Write(pcm)
	}

	var out bytes.Buffer
	if err := writeWAV(&out, format, data.Bytes()); err != nil {
		return nil, fmt.Errorf("audioasm: encode: %w", err)
	}
	return out.Bytes(), nil
}

// parseWAV extracts the fmt chunk and the raw data payload from a WAV
// byte stream, skipping any chunks other than "fmt " and "data".
func parseWAV(b []byte) (Format, []byte, error) {
	r := bytes.NewReader(b)
	var riff [4]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil || string(riff[:]) != "RIFF" {
		return Format{}, nil, fmt.Errorf("not a RIFF stream")
	}
	var sz uint32
	if err := binary.Read(r, binary.LittleEndian, &sz); err != nil {
		return Format{}, nil, err
	}
	var wave [4]byte
	if _, err := io.ReadFull(r, wave[:]); err != nil || string(wave[:]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("not a WAVE stream")
	}

	var format Format
	var data []byte
	haveFmt := false
	haveData := false

	for {
		var id [4]byte
		if _, err := io.ReadFull(r, id[:]); err != nil {
			break
		}
		var chunkSize uint32
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return Format{}, nil, err
		}
		body := make([]byte, chunkSize)
		if _, err := io.ReadFull(r, body); err != nil {
			return Format{}, nil, err
		}
		if chunkSize%2 == 1 {
			// chunks are word-aligned; skip the pad byte if present
			var pad [1]byte
			_, _ = r.Read(pad[:])
		}

		switch string(id[:]) {
		case "fmt ":
			if len(body) < 16 {
				return Format{}, nil, fmt.Errorf("fmt chunk too short")
			}
			format = Format{
				AudioFormat:   binary.LittleEndian.Uint16(body[0:2]),
				NumChannels:   binary.LittleEndian.Uint16(body[2:4]),
				SampleRate:    binary.LittleEndian.Uint32(body[4:8]),
				BitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
			}
			haveFmt = true
		case "data":
			data = body
			haveData = true
		}
	}

	if !haveFmt || !haveData {
		return Format{}, nil, fmt.Errorf("missing fmt or data chunk")
	}
	return format, data, nil
}

// writeWAV re-encodes a PCM payload under the given format as a WAV
// stream, mirroring the header layout the voice pipeline's single-chunk
// encoder writes.
func writeWAV(out io.Writer, f Format, pcm []byte) error {
	dataSize := uint32(len(pcm))
	w := bufio.NewWriter(out)

	if _, err := w.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36)+dataSize); err != nil {
		return err
	}
	if _, err := w.WriteString("WAVE"); err != nil {
		return err
	}

	if _, err := w.WriteString("fmt "); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, f.AudioFormat); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, f.NumChannels); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, f.SampleRate); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, f.byteRate()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, f.blockAlign()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, f.BitsPerSample); err != nil {
		return err
	}

	if _, err := w.WriteString("data"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}

// EncodeWAVPCM16LE wraps raw PCM16LE mono audio bytes in a WAV container.
// Kept for callers (mocks, tests) that synthesize raw PCM directly rather
// than already-wrapped WAV bytes.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	var buf bytes.Buffer
	f := Format{AudioFormat: 1, NumChannels: 1, SampleRate: uint32(sampleRate), BitsPerSample: 16}
	if err := writeWAV(&buf, f, pcm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
