package librarian

import (
	"context"
	"errors"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/smartlibrarian/ai/core/media"
	"github.com/hrygo/smartlibrarian/ai/corpus"
	"github.com/hrygo/smartlibrarian/store"
)

// StoreAdapter implements ConversationStore over store.Store.
type StoreAdapter struct {
	store *store.Store
	now   func() time.Time
}

// NewStoreAdapter creates a new StoreAdapter.
func NewStoreAdapter(s *store.Store) *StoreAdapter {
	return &StoreAdapter{store: s, now: time.Now}
}

func (a *StoreAdapter) Create(ctx context.Context, owner string) (*store.Conversation, error) {
	ts := a.now().Unix()
	return a.store.CreateConversation(ctx, &store.Conversation{
		UID:         shortuuid.New(),
		OwnerID:     owner,
		Title:       store.DefaultConversationTitle,
		TitleSource: store.TitleSourceDefault,
		CreatedTs:   ts,
		UpdatedTs:   ts,
	})
}

func (a *StoreAdapter) Get(ctx context.Context, owner string, id int32) (*store.Conversation, error) {
	return a.store.GetConversation(ctx, &store.FindConversation{ID: &id, OwnerID: &owner})
}

func (a *StoreAdapter) SetTitle(ctx context.Context, id int32, title string) (bool, error) {
	source := store.TitleSourceFirstMessage
	guard := store.TitleSourceDefault
	_, err := a.store.UpdateConversation(ctx, &store.UpdateConversation{
		ID:                id,
		Title:             &title,
		TitleSource:       &source,
		OnlyIfTitleSource: &guard,
	})
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (a *StoreAdapter) AppendMessage(ctx context.Context, id int32, role store.MessageRole, content string) error {
	_, err := a.store.CreateConversationMessage(ctx, &store.ConversationMessage{
		ConversationID: id,
		Role:           role,
		Content:        content,
		CreatedTs:      a.now().Unix(),
	})
	return err
}

func (a *StoreAdapter) Messages(ctx context.Context, id int32) ([]*store.ConversationMessage, error) {
	return a.store.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationID: id})
}

func (a *StoreAdapter) List(ctx context.Context, owner string) ([]*store.Conversation, error) {
	return a.store.ListConversations(ctx, &store.FindConversation{OwnerID: &owner})
}

func (a *StoreAdapter) Delete(ctx context.Context, owner string, id int32) error {
	return a.store.DeleteConversation(ctx, &store.DeleteConversation{OwnerID: owner, ID: id})
}

// QueryCacheBackend persists the response cache in the query_cache table.
type QueryCacheBackend struct {
	store *store.Store
}

// NewQueryCacheBackend creates a new QueryCacheBackend.
func NewQueryCacheBackend(s *store.Store) *QueryCacheBackend {
	return &QueryCacheBackend{store: s}
}

func (b *QueryCacheBackend) Put(ctx context.Context, query, reply string) (string, error) {
	entry, err := b.store.CreateQueryCacheEntry(ctx, &store.QueryCacheEntry{
		Query:     query,
		Reply:     reply,
		CreatedTs: time.Now().Unix(),
	})
	if err != nil {
		return "", err
	}
	return entry.Reply, nil
}

func (b *QueryCacheBackend) All(ctx context.Context) (map[string]string, error) {
	entries, err := b.store.ListQueryCacheEntries(ctx, &store.FindQueryCacheEntry{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Query] = e.Reply
	}
	return out, nil
}

// LibraryLookup serves canonical summaries from the loaded corpus.
type LibraryLookup struct {
	library *corpus.Library
}

// NewLibraryLookup creates a new LibraryLookup.
func NewLibraryLookup(library *corpus.Library) *LibraryLookup {
	return &LibraryLookup{library: library}
}

func (l *LibraryLookup) Lookup(ctx context.Context, title string) (string, error) {
	book, err := l.library.Lookup(ctx, title)
	if err != nil || book == nil {
		return "", err
	}
	return book.Summary, nil
}

// ImageAdapter exposes media.ImageService as an ImageGenerator.
type ImageAdapter struct {
	svc *media.ImageService
}

func NewImageAdapter(svc *media.ImageService) *ImageAdapter {
	return &ImageAdapter{svc: svc}
}

func (a *ImageAdapter) GenerateImage(ctx context.Context, prompt string) (*Media, error) {
	asset, err := a.svc.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return fromAsset(asset), nil
}

// SpeechAdapter exposes media.SpeechService as a SpeechGenerator.
type SpeechAdapter struct {
	svc *media.SpeechService
}

func NewSpeechAdapter(svc *media.SpeechService) *SpeechAdapter {
	return &SpeechAdapter{svc: svc}
}

func (a *SpeechAdapter) GenerateSpeech(ctx context.Context, text, voice string) (*Media, error) {
	asset, err := a.svc.GenerateSpeech(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	return fromAsset(asset), nil
}

func fromAsset(a *media.Asset) *Media {
	return &Media{Kind: string(a.Kind), MimeType: a.MimeType, Data: a.Data}
}
