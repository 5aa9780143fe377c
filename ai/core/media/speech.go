package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// maxSpeechBytes caps the audio body read from the provider.
const maxSpeechBytes = 25 << 20

// SpeechService synthesizes narrated audio.
type SpeechService struct {
	client *openai.Client
	model  string
	voice  string
}

// NewSpeechService creates a new SpeechService.
func NewSpeechService(cfg *Config) *SpeechService {
	cfg = cfg.withDefaults()
	return &SpeechService{
		client: newClient(cfg),
		model:  cfg.SpeechModel,
		voice:  cfg.SpeechVoice,
	}
}

// GenerateSpeech returns MP3 audio for text. An empty voice uses the
// configured default.
func (s *SpeechService) GenerateSpeech(ctx context.Context, text, voice string) (*Asset, error) {
	if voice == "" {
		voice = s.voice
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech generation failed: %w", err)
	}
	defer func() { _ = resp.Close() }() //nolint:errcheck // cleanup

	data, err := io.ReadAll(io.LimitReader(resp, maxSpeechBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read speech audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("speech generation returned no audio")
	}

	slog.Debug("Media: speech generated", "model", s.model, "voice", voice, "bytes", len(data))
	return &Asset{Kind: KindAudio, MimeType: "audio/mpeg", Data: data}, nil
}
