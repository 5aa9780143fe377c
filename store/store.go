package store

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/smartlibrarian/internal/profile"
	"github.com/hrygo/smartlibrarian/internal/version"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate brings the schema up to version.SchemaVersion. A database written
// by a newer binary is refused.
func (s *Store) Migrate(ctx context.Context) error {
	previous, err := s.driver.Migrate(ctx, version.SchemaVersion)
	if err != nil {
		return errors.Wrap(err, "failed to migrate")
	}
	if previous != "" && version.IsVersionGreaterThan(previous, version.SchemaVersion) {
		return errors.Errorf("database schema %s is newer than this binary supports (%s)", previous, version.SchemaVersion)
	}
	slog.Info("Store: schema ready", "driver", s.profile.Driver, "previous", previous, "current", version.SchemaVersion)
	return nil
}

func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	return s.driver.CreateConversation(ctx, create)
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

// GetConversation returns the single matching conversation, or nil.
func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	list, err := s.driver.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error) {
	return s.driver.UpdateConversation(ctx, update)
}

func (s *Store) DeleteConversation(ctx context.Context, delete *DeleteConversation) error {
	return s.driver.DeleteConversation(ctx, delete)
}

func (s *Store) CreateConversationMessage(ctx context.Context, create *ConversationMessage) (*ConversationMessage, error) {
	return s.driver.CreateConversationMessage(ctx, create)
}

func (s *Store) ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error) {
	return s.driver.ListConversationMessages(ctx, find)
}

func (s *Store) UpsertBookEmbedding(ctx context.Context, embedding *BookEmbedding) (*BookEmbedding, error) {
	return s.driver.UpsertBookEmbedding(ctx, embedding)
}

func (s *Store) ListBookEmbeddings(ctx context.Context, find *FindBookEmbedding) ([]*BookEmbedding, error) {
	return s.driver.ListBookEmbeddings(ctx, find)
}

func (s *Store) BookVectorSearch(ctx context.Context, opts *BookVectorSearchOptions) ([]*BookWithScore, error) {
	return s.driver.BookVectorSearch(ctx, opts)
}

func (s *Store) CreateQueryCacheEntry(ctx context.Context, create *QueryCacheEntry) (*QueryCacheEntry, error) {
	return s.driver.CreateQueryCacheEntry(ctx, create)
}

func (s *Store) ListQueryCacheEntries(ctx context.Context, find *FindQueryCacheEntry) ([]*QueryCacheEntry, error) {
	return s.driver.ListQueryCacheEntries(ctx, find)
}
