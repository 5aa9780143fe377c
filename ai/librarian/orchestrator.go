// Package librarian orchestrates one conversational turn of the book
// recommendation assistant: moderation, retrieval, prompt composition, a
// single tool-calling model round-trip, optional media, and the transcript.
package librarian

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/hrygo/smartlibrarian/ai/cache"
	"github.com/hrygo/smartlibrarian/ai/core/llm"
	"github.com/hrygo/smartlibrarian/ai/internal/strutil"
	"github.com/hrygo/smartlibrarian/ai/metrics"
	"github.com/hrygo/smartlibrarian/ai/observability/logging"
	"github.com/hrygo/smartlibrarian/ai/prompt"
	"github.com/hrygo/smartlibrarian/store"
)

// Config holds the tunables of the orchestrator.
type Config struct {
	ModelName   string
	SpeechVoice string

	RetrievalK       int // 3
	TitleRunes       int // 60
	SpeechRunes      int // 1800
	ImagePromptRunes int // 800

	// DegradeSpeechFailure turns a failed speech generation into a notice
	// on the reply instead of failing the turn.
	DegradeSpeechFailure bool
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() Config {
	return Config{
		RetrievalK:       3,
		TitleRunes:       60,
		SpeechRunes:      1800,
		ImagePromptRunes: 800,
	}
}

// Ports are the collaborators of a Librarian. Images, Speech, Transcriber,
// Cache and Metrics are optional.
type Ports struct {
	Store       ConversationStore
	Retriever   Retriever
	Moderator   Moderator
	Lookup      CanonicalLookup
	LLM         llm.Service
	Images      ImageGenerator
	Speech      SpeechGenerator
	Transcriber Transcriber
	Cache       *cache.ResponseCache
	Metrics     *metrics.PrometheusExporter
}

// Librarian runs conversational turns and the conversation pass-throughs.
type Librarian struct {
	ports      Ports
	composer   *prompt.Composer
	dispatcher *Dispatcher
	cfg        Config
}

// New creates a new Librarian.
func New(ports Ports, composer *prompt.Composer, cfg Config) (*Librarian, error) {
	switch {
	case ports.Store == nil:
		return nil, errors.New("conversation store is required")
	case ports.Retriever == nil:
		return nil, errors.New("retriever is required")
	case ports.Moderator == nil:
		return nil, errors.New("moderator is required")
	case ports.Lookup == nil:
		return nil, errors.New("canonical lookup is required")
	case ports.LLM == nil:
		return nil, errors.New("llm service is required")
	case composer == nil:
		return nil, errors.New("prompt composer is required")
	}

	def := DefaultConfig()
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = def.RetrievalK
	}
	if cfg.TitleRunes <= 0 {
		cfg.TitleRunes = def.TitleRunes
	}
	if cfg.SpeechRunes <= 0 {
		cfg.SpeechRunes = def.SpeechRunes
	}
	if cfg.ImagePromptRunes <= 0 {
		cfg.ImagePromptRunes = def.ImagePromptRunes
	}

	return &Librarian{
		ports:      ports,
		composer:   composer,
		dispatcher: NewDispatcher(ports.LLM, cfg.ModelName, ports.Lookup, ports.Metrics),
		cfg:        cfg,
	}, nil
}

// TurnRequest is one inbound user message. ConversationID 0 starts a new
// conversation.
type TurnRequest struct {
	Owner          string
	Text           string
	ConversationID int32
	GenerateImage  bool
	GenerateSpeech bool
}

// Warning is a non-fatal condition reported alongside a result.
type Warning struct {
	Message string
	Kind    Kind
}

// MediaPayload describes a generated asset attached to the reply.
type MediaPayload struct {
	Kind     string `json:"kind"`
	MimeType string `json:"mime_type"`
	Base64   string `json:"base64"`
	Size     int    `json:"size"`
}

// TurnResult is the state after a turn.
type TurnResult struct {
	Conversation *store.Conversation
	Messages     []*store.ConversationMessage
	Warning      *Warning
	Reply        string
	// Echo is the blocked text when moderation flagged the message. It is
	// never stored.
	Echo   string
	Media  []MediaPayload
	Reused bool
}

// ProcessTurn handles one user message end to end. On success exactly one
// user and one assistant message are appended. On failure at most the user
// message is.
func (l *Librarian) ProcessTurn(ctx context.Context, req TurnRequest) (result *TurnResult, err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = KindOf(err).String()
		}
		l.recordTurn("turn", outcome, time.Since(start))
	}()

	if req.Owner == "" {
		return nil, newError(KindUnauthorized, "sign in to chat")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, newError(KindEmptyInput, "message is empty")
	}

	conv, err := l.resolveConversation(ctx, req.Owner, req.ConversationID)
	if err != nil {
		return nil, err
	}
	ctx = logging.With(ctx, "owner", req.Owner, "conversation_id", conv.ID)
	logger := logging.FromContext(ctx)

	messages, err := l.ports.Store.Messages(ctx, conv.ID)
	if err != nil {
		return nil, upstream(err, "failed to read conversation")
	}

	flagged, err := l.ports.Moderator.Moderate(ctx, req.Text)
	if err != nil {
		return nil, upstream(err, "moderation unavailable")
	}
	if flagged {
		outcome = "blocked"
		if l.ports.Metrics != nil {
			l.ports.Metrics.RecordModerationBlock()
		}
		logger.Info("Librarian: message blocked by moderation")
		return &TurnResult{
			Conversation: conv,
			Messages:     messages,
			Echo:         req.Text,
			Warning: &Warning{
				Kind:    KindModerationBlocked,
				Message: "This message was blocked by the content policy and was not saved.",
			},
		}, nil
	}

	if err := l.ports.Store.AppendMessage(ctx, conv.ID, store.RoleUser, text); err != nil {
		return nil, upstream(err, "failed to store message")
	}

	// The title comes from a stored first message only.
	if len(messages) == 0 {
		title := strutil.Prefix(text, l.cfg.TitleRunes)
		if _, err := l.ports.Store.SetTitle(ctx, conv.ID, title); err != nil {
			return nil, upstream(err, "failed to set conversation title")
		}
	}

	candidates, err := l.ports.Retriever.Retrieve(ctx, text, l.cfg.RetrievalK)
	if err != nil {
		return nil, upstream(err, "retrieval failed")
	}

	messages, err = l.ports.Store.Messages(ctx, conv.ID)
	if err != nil {
		return nil, upstream(err, "failed to read conversation")
	}

	result = &TurnResult{}
	var content string
	if reply, ok := reusableReply(messages, text); ok {
		l.recordCache(metrics.CacheReuse, true)
		logger.Debug("Librarian: reusing previous reply")
		result.Reply = StripMarkers(reply)
		result.Reused = true
		content = reply
	} else {
		l.recordCache(metrics.CacheReuse, false)
		content, err = l.generate(ctx, req, text, candidates, messages, result)
		if err != nil {
			return nil, err
		}
	}

	if err := l.ports.Store.AppendMessage(ctx, conv.ID, store.RoleAssistant, content); err != nil {
		return nil, upstream(err, "failed to store reply")
	}

	result.Conversation = conv
	if fresh, getErr := l.ports.Store.Get(ctx, req.Owner, conv.ID); getErr == nil && fresh != nil {
		result.Conversation = fresh
	}
	result.Messages, err = l.ports.Store.Messages(ctx, conv.ID)
	if err != nil {
		return nil, upstream(err, "failed to read conversation")
	}
	logger.Info("Librarian: turn complete",
		"candidates", len(candidates),
		"reused", result.Reused,
		"media", len(result.Media),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// generate runs the model and the requested media, fills result.Reply and
// result.Media, and returns the assistant content to store.
func (l *Librarian) generate(ctx context.Context, req TurnRequest, text string, candidates []Candidate, messages []*store.ConversationMessage, result *TurnResult) (string, error) {
	history := messages
	if n := len(history); n > 0 && history[n-1].Role == store.RoleUser {
		history = history[:n-1]
	}
	msgs, err := l.composer.Compose(prompt.Input{
		Candidates: candidates,
		History:    SanitizeHistory(history),
		Query:      text,
	})
	if err != nil {
		return "", upstream(err, "failed to compose prompt")
	}

	d, err := l.dispatcher.Run(ctx, msgs, candidates)
	if err != nil {
		return "", upstream(err, "the model is unavailable")
	}
	reply := d.Reply
	var markers []string

	if req.GenerateImage && d.Reply != "" && d.Summary != "" {
		m, err := l.generateImage(ctx, d)
		if err != nil {
			logging.FromContext(ctx).Warn("Librarian: image generation failed", "error", err)
			reply += "\n\n(Image generation failed: " + err.Error() + ")"
		} else {
			markers = append(markers, Marker(m))
			result.Media = append(result.Media, payloadOf(m))
		}
	}

	if source := speechSource(d); req.GenerateSpeech && source != "" {
		m, err := l.generateSpeech(ctx, strutil.Prefix(source, l.cfg.SpeechRunes))
		switch {
		case err == nil:
			markers = append(markers, Marker(m))
			result.Media = append(result.Media, payloadOf(m))
		case l.cfg.DegradeSpeechFailure:
			logging.FromContext(ctx).Warn("Librarian: speech generation failed", "error", err)
			reply += "\n\n(Speech generation failed: " + err.Error() + ")"
		default:
			return "", upstream(err, "speech generation failed")
		}
	}

	result.Reply = reply
	content := reply
	for _, m := range markers {
		content += "\n\n" + m
	}
	return content, nil
}

func (l *Librarian) generateImage(ctx context.Context, d *Dispatch) (*Media, error) {
	if l.ports.Images == nil {
		return nil, errors.New("image generation is not configured")
	}
	p := "An illustration for the book \"" + d.Title + "\", inspired by this recommendation: " +
		strutil.Prefix(strings.TrimSpace(d.Reply), l.cfg.ImagePromptRunes)
	m, err := l.ports.Images.GenerateImage(ctx, p)
	l.recordMedia("image", err == nil)
	return m, err
}

func (l *Librarian) generateSpeech(ctx context.Context, text string) (*Media, error) {
	if l.ports.Speech == nil {
		return nil, errors.New("speech generation is not configured")
	}
	m, err := l.ports.Speech.GenerateSpeech(ctx, text, l.cfg.SpeechVoice)
	l.recordMedia("audio", err == nil)
	return m, err
}

// speechSource prefers the canonical summary over the reply.
func speechSource(d *Dispatch) string {
	if d.Summary != "" {
		return d.Summary
	}
	return d.Reply
}

func (l *Librarian) resolveConversation(ctx context.Context, owner string, id int32) (*store.Conversation, error) {
	if id != 0 {
		conv, err := l.ports.Store.Get(ctx, owner, id)
		if err != nil {
			return nil, upstream(err, "failed to load conversation")
		}
		if conv != nil {
			return conv, nil
		}
		logging.FromContext(ctx).Info("Librarian: unknown conversation, starting a new one", "owner", owner, "requested_id", id)
	}
	conv, err := l.ports.Store.Create(ctx, owner)
	if err != nil {
		return nil, upstream(err, "failed to create conversation")
	}
	return conv, nil
}

// RecommendResult is the reply to a one-shot query.
type RecommendResult struct {
	Warning    *Warning
	Reply      string
	Candidates []Candidate
	Cached     bool
}

// Recommend answers a standalone query without conversation history. Replies
// are cached globally by the exact query string.
func (l *Librarian) Recommend(ctx context.Context, query string) (result *RecommendResult, err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = KindOf(err).String()
		}
		l.recordTurn("recommend", outcome, time.Since(start))
	}()

	if strings.TrimSpace(query) == "" {
		return nil, newError(KindEmptyInput, "query is empty")
	}

	if l.ports.Cache != nil {
		if reply, ok := l.ports.Cache.Get(query); ok {
			l.recordCache(metrics.CacheResponse, true)
			outcome = "cached"
			return &RecommendResult{Reply: reply, Cached: true}, nil
		}
		l.recordCache(metrics.CacheResponse, false)
	}

	flagged, err := l.ports.Moderator.Moderate(ctx, query)
	if err != nil {
		return nil, upstream(err, "moderation unavailable")
	}
	if flagged {
		outcome = "blocked"
		if l.ports.Metrics != nil {
			l.ports.Metrics.RecordModerationBlock()
		}
		return &RecommendResult{Warning: &Warning{
			Kind:    KindModerationBlocked,
			Message: "This query was blocked by the content policy.",
		}}, nil
	}

	text := strings.TrimSpace(query)
	candidates, err := l.ports.Retriever.Retrieve(ctx, text, l.cfg.RetrievalK)
	if err != nil {
		return nil, upstream(err, "retrieval failed")
	}
	msgs, err := l.composer.Compose(prompt.Input{Candidates: candidates, Query: text})
	if err != nil {
		return nil, upstream(err, "failed to compose prompt")
	}
	d, err := l.dispatcher.Run(ctx, msgs, candidates)
	if err != nil {
		return nil, upstream(err, "the model is unavailable")
	}

	reply := d.Reply
	if l.ports.Cache != nil {
		reply = l.ports.Cache.Put(ctx, query, reply)
	}
	return &RecommendResult{Reply: reply, Candidates: candidates}, nil
}

// ListConversations returns the owner's conversations, most recently
// updated first.
func (l *Librarian) ListConversations(ctx context.Context, owner string) ([]*store.Conversation, error) {
	if owner == "" {
		return nil, newError(KindUnauthorized, "sign in to list conversations")
	}
	list, err := l.ports.Store.List(ctx, owner)
	if err != nil {
		return nil, upstream(err, "failed to list conversations")
	}
	return list, nil
}

// OpenConversation returns a conversation and its transcript.
func (l *Librarian) OpenConversation(ctx context.Context, owner string, id int32) (*store.Conversation, []*store.ConversationMessage, error) {
	if owner == "" {
		return nil, nil, newError(KindUnauthorized, "sign in to open conversations")
	}
	conv, err := l.ports.Store.Get(ctx, owner, id)
	if err != nil {
		return nil, nil, upstream(err, "failed to load conversation")
	}
	if conv == nil {
		return nil, nil, newError(KindNotFound, "conversation not found")
	}
	messages, err := l.ports.Store.Messages(ctx, id)
	if err != nil {
		return nil, nil, upstream(err, "failed to read conversation")
	}
	return conv, messages, nil
}

// NewConversation creates an empty conversation titled "New chat".
func (l *Librarian) NewConversation(ctx context.Context, owner string) (*store.Conversation, error) {
	if owner == "" {
		return nil, newError(KindUnauthorized, "sign in to start a conversation")
	}
	conv, err := l.ports.Store.Create(ctx, owner)
	if err != nil {
		return nil, upstream(err, "failed to create conversation")
	}
	return conv, nil
}

// DeleteConversation removes a conversation and its messages for owner.
func (l *Librarian) DeleteConversation(ctx context.Context, owner string, id int32) error {
	if owner == "" {
		return newError(KindUnauthorized, "sign in to delete conversations")
	}
	err := l.ports.Store.Delete(ctx, owner, id)
	if errors.Is(err, store.ErrNotFound) {
		return newError(KindNotFound, "conversation not found")
	}
	if err != nil {
		return upstream(err, "failed to delete conversation")
	}
	return nil
}

// Transcribe turns recorded speech into text for the message box.
func (l *Librarian) Transcribe(ctx context.Context, owner string, audio io.Reader, filename, language, hint string) (string, error) {
	if owner == "" {
		return "", newError(KindUnauthorized, "sign in to use voice input")
	}
	if l.ports.Transcriber == nil {
		return "", newError(KindUpstreamFailure, "transcription is not configured")
	}
	text, err := l.ports.Transcriber.Transcribe(ctx, audio, filename, language, hint)
	if err != nil {
		return "", upstream(err, "transcription failed")
	}
	return text, nil
}

func payloadOf(m *Media) MediaPayload {
	return MediaPayload{
		Kind:     m.Kind,
		MimeType: m.MimeType,
		Base64:   base64.StdEncoding.EncodeToString(m.Data),
		Size:     len(m.Data),
	}
}

func (l *Librarian) recordTurn(operation, outcome string, latency time.Duration) {
	if l.ports.Metrics != nil {
		l.ports.Metrics.RecordTurn(operation, outcome, latency)
	}
}

func (l *Librarian) recordCache(cacheType string, hit bool) {
	if l.ports.Metrics == nil {
		return
	}
	if hit {
		l.ports.Metrics.RecordCacheHit(cacheType)
	} else {
		l.ports.Metrics.RecordCacheMiss(cacheType)
	}
}

func (l *Librarian) recordMedia(kind string, success bool) {
	if l.ports.Metrics != nil {
		l.ports.Metrics.RecordMediaGeneration(kind, success)
	}
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
