// Package prompt builds the grounded message list sent to the chat model.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/hrygo/smartlibrarian/ai/configloader"
	"github.com/hrygo/smartlibrarian/ai/core/llm"
	"github.com/hrygo/smartlibrarian/ai/core/retrieval"
)

// ConfigFile is the persona file name looked up in the prompt directory.
const ConfigFile = "librarian.yaml"

//go:embed librarian.yaml
var defaults embed.FS

// Config is the persona and rule set of the librarian.
type Config struct {
	Name              string   `yaml:"name"`
	Version           string   `yaml:"version"`
	Persona           string   `yaml:"persona"`
	CandidatesHeader  string   `yaml:"candidates_header"`
	NoCandidates      string   `yaml:"no_candidates"`
	Rules             []string `yaml:"rules"`
	CandidateTemplate string   `yaml:"candidate_template"`
}

// LoadConfig reads librarian.yaml from dir, falling back to the built-in copy.
func LoadConfig(dir string) (*Config, error) {
	var cfg Config
	if err := configloader.NewLoader(dir, defaults).Load(ConfigFile, &cfg); err != nil {
		return nil, fmt.Errorf("load prompt config: %w", err)
	}
	return &cfg, nil
}

// Input is everything one prompt is built from. History must already be
// sanitized and must not include Query.
type Input struct {
	Candidates []retrieval.Candidate
	History    []llm.Message
	Query      string
}

// Composer renders Inputs into chat messages.
type Composer struct {
	cfg       *Config
	rules     []string
	candidate *template.Template
}

// NewComposer parses the templates in cfg. toolName is substituted into the
// rules wherever they reference {{.ToolName}}.
func NewComposer(cfg *Config, toolName string) (*Composer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("prompt config is required")
	}
	candidate, err := template.New("candidate").Parse(cfg.CandidateTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse candidate template: %w", err)
	}
	// Surface bad field references at startup instead of on the first turn.
	if err := candidate.Execute(&bytes.Buffer{}, retrieval.Candidate{}); err != nil {
		return nil, fmt.Errorf("execute candidate template: %w", err)
	}

	rules := make([]string, 0, len(cfg.Rules))
	for i, raw := range cfg.Rules {
		tmpl, err := template.New(fmt.Sprintf("rule%d", i)).Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse rule %d: %w", i, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, struct{ ToolName string }{toolName}); err != nil {
			return nil, fmt.Errorf("execute rule %d: %w", i, err)
		}
		rules = append(rules, strings.TrimSpace(buf.String()))
	}

	return &Composer{cfg: cfg, rules: rules, candidate: candidate}, nil
}

// Compose returns the system instruction, the history turns and the new
// user turn, in that order.
func (c *Composer) Compose(in Input) ([]llm.Message, error) {
	system, err := c.systemPrompt(in.Candidates)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(in.History)+2)
	messages = append(messages, llm.SystemPrompt(system))
	messages = append(messages, in.History...)
	messages = append(messages, llm.UserMessage(in.Query))
	return messages, nil
}

func (c *Composer) systemPrompt(candidates []retrieval.Candidate) (string, error) {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.cfg.Persona))
	b.WriteString("\n\n")

	if len(candidates) == 0 {
		b.WriteString(strings.TrimSpace(c.cfg.NoCandidates))
	} else {
		b.WriteString(c.cfg.CandidatesHeader)
		for _, cand := range candidates {
			b.WriteString("\n\n")
			if err := c.candidate.Execute(&b, cand); err != nil {
				return "", fmt.Errorf("render candidate %q: %w", cand.Title, err)
			}
		}
	}

	if len(c.rules) > 0 {
		b.WriteString("\n\nRules:")
		for _, r := range c.rules {
			b.WriteString("\n- ")
			b.WriteString(r)
		}
	}
	return b.String(), nil
}
