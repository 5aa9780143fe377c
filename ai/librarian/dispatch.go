package librarian

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hrygo/smartlibrarian/ai/core/llm"
	"github.com/hrygo/smartlibrarian/ai/corpus"
	"github.com/hrygo/smartlibrarian/ai/metrics"
)

// SummaryToolName is the only tool offered to the model.
const SummaryToolName = "get_summary_by_title"

// Tool call statuses recorded in metrics.
const (
	toolStatusResolved = "resolved"
	toolStatusMiss     = "miss"
	toolStatusRejected = "rejected"
	toolStatusIgnored  = "ignored"
)

// Dispatch is the outcome of one model round-trip.
type Dispatch struct {
	// Content is the model's text; Reply is Content plus the resolved summary.
	Content string
	Reply   string
	// Title and Summary are the canonical entry resolved through the tool,
	// empty when the model made no valid call or the lookup missed.
	Title   string
	Summary string
}

// Dispatcher runs a single tool-calling round-trip against the chat model.
// At most one tool call per turn is honored and its argument must name one
// of the turn's candidates.
type Dispatcher struct {
	llm       llm.Service
	lookup    CanonicalLookup
	metrics   *metrics.PrometheusExporter
	modelName string
}

// NewDispatcher creates a new Dispatcher. exporter may be nil; modelName
// only labels metrics.
func NewDispatcher(model llm.Service, modelName string, lookup CanonicalLookup, exporter *metrics.PrometheusExporter) *Dispatcher {
	return &Dispatcher{llm: model, lookup: lookup, metrics: exporter, modelName: modelName}
}

// SummaryTool describes get_summary_by_title with its title restricted to
// the candidate titles. No tool is offered without candidates.
func SummaryTool(candidates []Candidate) []llm.ToolDescriptor {
	if len(candidates) == 0 {
		return nil
	}
	titles := make([]string, 0, len(candidates))
	for _, c := range candidates {
		titles = append(titles, c.Title)
	}
	schema := &llm.JSONSchema{
		Type: "object",
		Properties: map[string]*llm.JSONSchema{
			"title": {
				Type:        "string",
				Description: "Exact title of one of the candidate books.",
				Enum:        titles,
			},
		},
		Required: []string{"title"},
	}
	return []llm.ToolDescriptor{{
		Name:        SummaryToolName,
		Description: "Return the full summary of a candidate book by its exact title.",
		Parameters:  schema.String(),
	}}
}

// Run sends messages with the summary tool and resolves the first tool call.
func (d *Dispatcher) Run(ctx context.Context, messages []llm.Message, candidates []Candidate) (*Dispatch, error) {
	resp, stats, err := d.llm.ChatWithTools(ctx, messages, SummaryTool(candidates))
	if err != nil {
		return nil, fmt.Errorf("failed to call chat model: %w", err)
	}
	if d.metrics != nil && stats != nil {
		d.metrics.RecordLLMCall(d.modelName, stats.PromptTokens, stats.CompletionTokens, msDuration(stats.TotalDurationMs))
	}

	out := &Dispatch{Content: resp.Content, Reply: resp.Content}
	if len(resp.ToolCalls) == 0 {
		return out, nil
	}
	for _, extra := range resp.ToolCalls[1:] {
		d.recordTool(extra.Function.Name, toolStatusIgnored)
	}

	call := resp.ToolCalls[0]
	if call.Function.Name != SummaryToolName {
		slog.Warn("Librarian: unknown tool requested", "tool", call.Function.Name)
		d.recordTool(call.Function.Name, toolStatusRejected)
		return out, nil
	}

	title, ok := matchCandidate(call.Function.Arguments, candidates)
	if !ok {
		slog.Warn("Librarian: tool title outside candidate set", "arguments", call.Function.Arguments)
		d.recordTool(SummaryToolName, toolStatusRejected)
		return out, nil
	}

	summary, err := d.lookup.Lookup(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %q: %w", title, err)
	}
	if summary == "" {
		d.recordTool(SummaryToolName, toolStatusMiss)
		return out, nil
	}

	d.recordTool(SummaryToolName, toolStatusResolved)
	out.Title = title
	out.Summary = summary
	out.Reply += "\n\n### Full summary: " + title + "\n\n" + summary
	return out, nil
}

// matchCandidate parses {"title": ...} and returns the candidate whose title
// normalizes to the same key.
func matchCandidate(arguments string, candidates []Candidate) (string, bool) {
	var args struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", false
	}
	key := corpus.NormalizeTitle(args.Title)
	if key == "" {
		return "", false
	}
	for _, c := range candidates {
		if corpus.NormalizeTitle(c.Title) == key {
			return c.Title, true
		}
	}
	return "", false
}

func (d *Dispatcher) recordTool(name, status string) {
	if d.metrics != nil {
		d.metrics.RecordToolCall(name, status)
	}
}
