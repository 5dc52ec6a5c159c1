package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"evidentia/internal/services"
)

// WAVExtractor re-encodes sources whose audio is already 16-bit PCM WAV.
// It runs fully in-process: the payload is downmixed to mono, resampled to
// the target rate, and written back out. Sources in any other container are
// rejected so the caller can fall back to the ffmpeg backend.
type WAVExtractor struct{}

// NewWAVExtractor builds the in-process extractor.
func NewWAVExtractor() *WAVExtractor {
	return &WAVExtractor{}
}

// Name identifies the backend.
func (e *WAVExtractor) Name() string { return "wav" }

// Extract parses source as RIFF/WAVE and writes a mono 16kHz artifact to
// dest. A failed run removes any partial output before returning.
func (e *WAVExtractor) Extract(ctx context.Context, source, dest string) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "wav", "", err)
	}

	payload, err := os.ReadFile(source)
	if err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "read source", "", err)
	}

	samples, sampleRate, channels, err := decodeWAV(payload)
	if err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "wav", "", err)
	}

	mono := downmixMono(samples, channels)
	mono = resampleLinear(mono, sampleRate, TargetSampleRate)

	if err := writeWAV(dest, mono, TargetSampleRate); err != nil {
		_ = os.Remove(dest)
		return services.Wrap(services.ErrExtraction, "extract", "write artifact", "", err)
	}
	return nil
}

const pcmFormatCode = 1

// decodeWAV walks the RIFF chunk list and returns the interleaved 16-bit
// samples with their sample rate and channel count.
func decodeWAV(payload []byte) ([]int16, int, int, error) {
	if len(payload) < 12 || !bytes.Equal(payload[0:4], []byte("RIFF")) || !bytes.Equal(payload[8:12], []byte("WAVE")) {
		return nil, 0, 0, errors.New("source is not a RIFF/WAVE file")
	}

	var (
		sampleRate int
		channels   int
		bitDepth   int
		data       []byte
		haveFormat bool
	)

	offset := 12
	for offset+8 <= len(payload) {
		chunkID := string(payload[offset : offset+4])
		chunkLen := int(binary.LittleEndian.Uint32(payload[offset+4 : offset+8]))
		body := payload[offset+8:]
		if chunkLen > len(body) {
			return nil, 0, 0, fmt.Errorf("truncated %q chunk", chunkID)
		}
		body = body[:chunkLen]

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, 0, 0, errors.New("malformed fmt chunk")
			}
			format := int(binary.LittleEndian.Uint16(body[0:2]))
			if format != pcmFormatCode {
				return nil, 0, 0, fmt.Errorf("unsupported audio format code %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitDepth = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFormat = true
		case "data":
			data = body
		}

		// Chunks are word aligned.
		offset += 8 + chunkLen
		if chunkLen%2 == 1 {
			offset++
		}
	}

	if !haveFormat {
		return nil, 0, 0, errors.New("missing fmt chunk")
	}
	if data == nil {
		return nil, 0, 0, errors.New("missing data chunk")
	}
	if bitDepth != 16 {
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if channels < 1 || sampleRate <= 0 {
		return nil, 0, 0, errors.New("malformed fmt chunk")
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples, sampleRate, channels, nil
}

func downmixMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}

func resampleLinear(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}
	outLen := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	if outLen == 0 {
		outLen = 1
	}
	out := make([]int16, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(samples[idx])
		b := float64(samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

func writeWAV(path string, samples []int16, sampleRate int) error {
	dataLen := len(samples) * 2
	byteRate := sampleRate * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen)) //nolint:errcheck
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))           //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint16(pcmFormatCode)) //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint16(1))             //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))    //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))      //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint16(2))             //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint16(16))            //nolint:errcheck
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen)) //nolint:errcheck
	for _, sample := range samples {
		binary.Write(&buf, binary.LittleEndian, sample) //nolint:errcheck
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}
