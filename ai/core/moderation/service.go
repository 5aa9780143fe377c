// Package moderation screens inbound reader messages before anything is
// stored or sent to the chat model.
package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/smartlibrarian/ai/core/llm"
)

// Service classifies text as allowed or flagged.
type Service interface {
	// Moderate reports whether text was flagged.
	Moderate(ctx context.Context, text string) (bool, error)
}

// Config represents moderation service configuration.
type Config struct {
	Provider string
	Model    string // omni-moderation-latest
	APIKey   string
	BaseURL  string
}

type service struct {
	client *openai.Client
	model  string
}

// NewService creates a new moderation Service.
func NewService(cfg *Config) Service {
	model := cfg.Model
	if model == "" {
		model = openai.ModerationOmniLatest
	}
	return &service{
		client: openai.NewClientWithConfig(llm.NewClientConfig(cfg.Provider, cfg.APIKey, cfg.BaseURL)),
		model:  model,
	}
}

func (s *service) Moderate(ctx context.Context, text string) (bool, error) {
	resp, err := s.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: s.model,
	})
	if err != nil {
		return false, fmt.Errorf("moderation request failed: %w", err)
	}

	for _, r := range resp.Results {
		if r.Flagged {
			slog.Info("Moderation: input flagged", "model", s.model, "categories", flaggedCategories(r.Categories))
			return true, nil
		}
	}
	return false, nil
}

func flaggedCategories(c openai.ResultCategories) []string {
	var out []string
	add := func(name string, on bool) {
		if on {
			out = append(out, name)
		}
	}
	add("hate", c.Hate || c.HateThreatening)
	add("harassment", c.Harassment || c.HarassmentThreatening)
	add("self-harm", c.SelfHarm || c.SelfHarmIntent || c.SelfHarmInstructions)
	add("sexual", c.Sexual || c.SexualMinors)
	add("violence", c.Violence || c.ViolenceGraphic)
	return out
}
