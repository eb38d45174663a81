package modelhost

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"
	"unsafe"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"fennec/internal/config"
)

// SpeechToText runs in-process whisper.cpp inference over a scene's audio
// range. It is the one Model Host that is not an HTTP adapter: whisper.cpp
// has no server component in the stack, so the lazy-loaded model lives in
// this process.
type SpeechToText struct {
	cfg config.SpeechConfig

	mu    sync.Mutex
	model whisper.Model
}

// NewSpeechToText constructs a lazy-loading speech-to-text adapter.
func NewSpeechToText(cfg config.SpeechConfig) *SpeechToText {
	return &SpeechToText{cfg: cfg}
}

func (s *SpeechToText) Name() string { return s.cfg.ModelPath }

func (s *SpeechToText) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model != nil
}

// Load loads the ggml model file into memory. Safe to call repeatedly.
func (s *SpeechToText) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != nil {
		return nil
	}
	model, err := whisper.New(s.cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("load whisper model %s: %w", s.cfg.ModelPath, err)
	}
	s.model = model
	return nil
}

// Transcribe runs speech-to-text over a WAV-encoded audio range and
// returns the concatenated segment text. A scene with zero-length or
// silent audio returns empty text and no error, per the boundary
// requirement that the transcript stage must not fail on empty audio.
func (s *SpeechToText) Transcribe(ctx context.Context, wavBytes []byte) (string, error) {
	s.mu.Lock()
	model := s.model
	s.mu.Unlock()
	if model == nil {
		return "", fmt.Errorf("speech model not loaded")
	}

	samples, err := decodeWAV(wavBytes)
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}
	if len(samples) == 0 {
		return "", nil
	}

	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create whisper context: %w", err)
	}
	if s.cfg.Language != "" {
		_ = wctx.SetLanguage(s.cfg.Language)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process audio: %w", err)
	}

	var sb strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			break
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.TrimSpace(segment.Text))
	}
	return sb.String(), nil
}

// wavHeader is the canonical 44-byte PCM WAV header layout.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// decodeWAV parses a WAV byte buffer into mono float32 samples in
// [-1.0, 1.0], downmixing stereo by averaging channels. Reads from an
// in-memory buffer rather than a file path since the Pipeline extracts
// per-scene audio ranges directly into memory.
func decodeWAV(data []byte) ([]float32, error) {
	r := bytes.NewReader(data)

	var header wavHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read wav header: %w", err)
	}
	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("invalid wav data")
	}

	audioData := make([]byte, header.Subchunk2Size)
	if _, err := io.ReadFull(r, audioData); err != nil {
		return nil, fmt.Errorf("read audio data: %w", err)
	}

	var samples []float32
	switch header.BitsPerSample {
	case 16:
		for i := 0; i+1 < len(audioData); i += 2 {
			sample := int16(binary.LittleEndian.Uint16(audioData[i : i+2]))
			samples = append(samples, float32(sample)/32768.0)
		}
	case 32:
		for i := 0; i+3 < len(audioData); i += 4 {
			bits := binary.LittleEndian.Uint32(audioData[i : i+4])
			samples = append(samples, *(*float32)(unsafe.Pointer(&bits)))
		}
	default:
		return nil, fmt.Errorf("unsupported bits per sample: %d", header.BitsPerSample)
	}

	if header.NumChannels == 2 {
		mono := make([]float32, len(samples)/2)
		for i := range mono {
			mono[i] = (samples[i*2] + samples[i*2+1]) / 2.0
		}
		samples = mono
	}

	return samples, nil
}
