package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates or upgrades the schema and returns the schema version
	// recorded before the upgrade ("" for a fresh database).
	Migrate(ctx context.Context, schemaVersion string) (string, error)

	// Conversation model related methods.
	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error)
	DeleteConversation(ctx context.Context, delete *DeleteConversation) error

	// ConversationMessage model related methods.
	CreateConversationMessage(ctx context.Context, create *ConversationMessage) (*ConversationMessage, error)
	ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error)

	// BookEmbedding model related methods.
	UpsertBookEmbedding(ctx context.Context, embedding *BookEmbedding) (*BookEmbedding, error)
	ListBookEmbeddings(ctx context.Context, find *FindBookEmbedding) ([]*BookEmbedding, error)
	BookVectorSearch(ctx context.Context, opts *BookVectorSearchOptions) ([]*BookWithScore, error)

	// QueryCache model related methods.
	CreateQueryCacheEntry(ctx context.Context, create *QueryCacheEntry) (*QueryCacheEntry, error)
	ListQueryCacheEntries(ctx context.Context, find *FindQueryCacheEntry) ([]*QueryCacheEntry, error)
}
