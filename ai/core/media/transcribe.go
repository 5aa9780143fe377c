package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// TranscriptionService converts recorded speech into text.
type TranscriptionService struct {
	client *openai.Client
	model  string
}

// NewTranscriptionService creates a new TranscriptionService.
func NewTranscriptionService(cfg *Config) *TranscriptionService {
	cfg = cfg.withDefaults()
	return &TranscriptionService{client: newClient(cfg), model: cfg.WhisperModel}
}

// Transcribe uploads audio under filename and returns the recognized text.
// language and prompt are optional hints.
func (s *TranscriptionService) Transcribe(ctx context.Context, audio io.Reader, filename, language, prompt string) (string, error) {
	if filename == "" {
		filename = "recording.webm"
	}

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.model,
		FilePath: filename,
		Reader:   audio,
		Language: language,
		Prompt:   prompt,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
