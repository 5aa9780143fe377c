package librarian

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/smartlibrarian/ai/core/llm"
	"github.com/hrygo/smartlibrarian/ai/prompt"
	"github.com/hrygo/smartlibrarian/store"
)

// memStore is an in-memory ConversationStore.
type memStore struct {
	mu        sync.Mutex
	convs     map[int32]*store.Conversation
	messages  map[int32][]*store.ConversationMessage
	nextID    int32
	nextMsgID int64
	appendErr map[store.MessageRole]error
}

func newMemStore() *memStore {
	return &memStore{
		convs:     map[int32]*store.Conversation{},
		messages:  map[int32][]*store.ConversationMessage{},
		appendErr: map[store.MessageRole]error{},
	}
}

func (s *memStore) Create(_ context.Context, owner string) (*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c := &store.Conversation{ID: s.nextID, OwnerID: owner, Title: store.DefaultConversationTitle, TitleSource: store.TitleSourceDefault}
	s.convs[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *memStore) Get(_ context.Context, owner string, id int32) (*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok || c.OwnerID != owner {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) SetTitle(_ context.Context, id int32, title string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok || c.TitleSource != store.TitleSourceDefault {
		return false, nil
	}
	c.Title = title
	c.TitleSource = store.TitleSourceFirstMessage
	return true, nil
}

func (s *memStore) AppendMessage(_ context.Context, id int32, role store.MessageRole, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendErr[role]; err != nil {
		return err
	}
	s.nextMsgID++
	s.messages[id] = append(s.messages[id], &store.ConversationMessage{ID: s.nextMsgID, ConversationID: id, Role: role, Content: content})
	return nil
}

func (s *memStore) Messages(_ context.Context, id int32) ([]*store.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.ConversationMessage, 0, len(s.messages[id]))
	for _, m := range s.messages[id] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) List(_ context.Context, owner string) ([]*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Conversation
	for id := int32(1); id <= s.nextID; id++ {
		if c, ok := s.convs[id]; ok && c.OwnerID == owner {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, owner string, id int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok || c.OwnerID != owner {
		return store.ErrNotFound
	}
	delete(s.convs, id)
	delete(s.messages, id)
	return nil
}

func (s *memStore) count(id int32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[id])
}

// fakeLLM returns scripted responses and records the prompts it saw.
type fakeLLM struct {
	mu        sync.Mutex
	responses []*llm.ChatResponse
	err       error
	calls     [][]llm.Message
	tools     [][]llm.ToolDescriptor
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message) (string, *llm.CallStats, error) {
	resp, stats, err := f.ChatWithTools(ctx, messages, nil)
	if err != nil {
		return "", nil, err
	}
	return resp.Content, stats, nil
}

func (f *fakeLLM) ChatWithTools(_ context.Context, messages []llm.Message, tools []llm.ToolDescriptor) (*llm.ChatResponse, *llm.CallStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	f.tools = append(f.tools, tools)
	if f.err != nil {
		return nil, nil, f.err
	}
	if len(f.responses) == 0 {
		return &llm.ChatResponse{Content: "default reply"}, &llm.CallStats{}, nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, &llm.CallStats{PromptTokens: 10, CompletionTokens: 5}, nil
}

func (f *fakeLLM) Warmup(context.Context) {}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRetriever struct {
	candidates []Candidate
	err        error
	queries    []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, k int) ([]Candidate, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.candidates) > k {
		return f.candidates[:k], nil
	}
	return f.candidates, nil
}

type fakeModerator struct {
	flagged map[string]bool
	err     error
}

func (f *fakeModerator) Moderate(_ context.Context, text string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.flagged[text], nil
}

type fakeLookup struct {
	summaries map[string]string
	asked     []string
}

func (f *fakeLookup) Lookup(_ context.Context, title string) (string, error) {
	f.asked = append(f.asked, title)
	return f.summaries[title], nil
}

type fakeImages struct {
	err     error
	prompts []string
}

func (f *fakeImages) GenerateImage(_ context.Context, p string) (*Media, error) {
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return nil, f.err
	}
	return &Media{Kind: "image", MimeType: "image/png", Data: []byte("png-bytes")}, nil
}

type fakeSpeech struct {
	err   error
	texts []string
}

func (f *fakeSpeech) GenerateSpeech(_ context.Context, text, _ string) (*Media, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return &Media{Kind: "audio", MimeType: "audio/mpeg", Data: []byte("mp3-bytes")}, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, _, _, _ string) (string, error) {
	if _, err := io.ReadAll(audio); err != nil {
		return "", err
	}
	return f.text, f.err
}

var errUpstream = errors.New("upstream down")

type harness struct {
	lib       *Librarian
	store     *memStore
	llm       *fakeLLM
	retriever *fakeRetriever
	moderator *fakeModerator
	lookup    *fakeLookup
	images    *fakeImages
	speech    *fakeSpeech
}

func newHarness(t *testing.T, mutate ...func(*Ports, *Config)) *harness {
	t.Helper()
	h := &harness{
		store: newMemStore(),
		llm:   &fakeLLM{},
		retriever: &fakeRetriever{candidates: []Candidate{
			{Title: "The Hobbit", Body: "Bilbo goes there and back again.", Score: 0.9},
			{Title: "1984", Body: "Big Brother is watching.", Score: 0.7},
			{Title: "Dune", Body: "Spice and sand.", Score: 0.5},
		}},
		moderator: &fakeModerator{flagged: map[string]bool{}},
		lookup: &fakeLookup{summaries: map[string]string{
			"The Hobbit": "Bilbo Baggins joins thirteen dwarves on a quest.",
			"1984":       "Winston Smith rebels against the Party.",
		}},
		images: &fakeImages{},
		speech: &fakeSpeech{},
	}

	ports := Ports{
		Store:     h.store,
		Retriever: h.retriever,
		Moderator: h.moderator,
		Lookup:    h.lookup,
		LLM:       h.llm,
		Images:    h.images,
		Speech:    h.speech,
	}
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&ports, &cfg)
	}

	promptCfg, err := prompt.LoadConfig("")
	require.NoError(t, err)
	composer, err := prompt.NewComposer(promptCfg, SummaryToolName)
	require.NoError(t, err)

	h.lib, err = New(ports, composer, cfg)
	require.NoError(t, err)
	return h
}

func toolCall(name, arguments string) llm.ToolCall {
	return llm.ToolCall{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: name, Arguments: arguments}}
}
