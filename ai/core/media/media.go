// Package media generates cover-style illustrations, narrated summaries and
// voice transcriptions through OpenAI-compatible endpoints.
package media

import (
	"encoding/base64"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/smartlibrarian/ai/core/llm"
)

// Kind is the top-level media type of an Asset.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// Asset is a generated binary payload.
type Asset struct {
	Kind     Kind
	MimeType string // image/png, audio/mpeg
	Data     []byte
}

// Base64 returns the standard base64 encoding of the payload.
func (a *Asset) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// Config represents media services configuration.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string

	ImageModel   string // dall-e-3
	ImageSize    string // 1024x1024
	ImageMaxSide int    // generated images are downscaled to fit, 0 keeps original size
	SpeechModel  string // tts-1
	SpeechVoice  string // alloy
	WhisperModel string // whisper-1
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.ImageModel == "" {
		out.ImageModel = openai.CreateImageModelDallE3
	}
	if out.ImageSize == "" {
		out.ImageSize = openai.CreateImageSize1024x1024
	}
	if out.SpeechModel == "" {
		out.SpeechModel = string(openai.TTSModel1)
	}
	if out.SpeechVoice == "" {
		out.SpeechVoice = string(openai.VoiceAlloy)
	}
	if out.WhisperModel == "" {
		out.WhisperModel = openai.Whisper1
	}
	return &out
}

func newClient(cfg *Config) *openai.Client {
	return openai.NewClientWithConfig(llm.NewClientConfig(cfg.Provider, cfg.APIKey, cfg.BaseURL))
}
