package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/smartlibrarian/internal/profile"
	"github.com/hrygo/smartlibrarian/store"
	"github.com/hrygo/smartlibrarian/store/db/sqlite"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{Mode: "dev", Driver: "sqlite", DSN: ":memory:"}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)

	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newConversation(t *testing.T, s *store.Store, owner, uid string, ts int64) *store.Conversation {
	t.Helper()
	c, err := s.CreateConversation(context.Background(), &store.Conversation{
		UID: uid, OwnerID: owner, Title: store.DefaultConversationTitle, CreatedTs: ts, UpdatedTs: ts,
	})
	require.NoError(t, err)
	return c
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Running twice is a no-op.
	require.NoError(t, s.Migrate(ctx))

	// A database stamped by a newer binary is refused.
	_, err := s.GetDriver().GetDB().ExecContext(ctx, `UPDATE system_setting SET value = '99.0.0' WHERE name = 'schema_version'`)
	require.NoError(t, err)
	assert.ErrorContains(t, s.Migrate(ctx), "newer")
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice := "alice"
	bob := "bob"
	first := newConversation(t, s, alice, "c1", 100)
	second := newConversation(t, s, alice, "c2", 200)
	newConversation(t, s, bob, "c3", 300)

	list, err := s.ListConversations(ctx, &store.FindConversation{OwnerID: &alice})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "most recently updated first")

	// Appending bumps updated_ts and reorders the listing.
	_, err = s.CreateConversationMessage(ctx, &store.ConversationMessage{
		ConversationID: first.ID, Role: store.RoleUser, Content: "hello", CreatedTs: 500,
	})
	require.NoError(t, err)
	_, err = s.CreateConversationMessage(ctx, &store.ConversationMessage{
		ConversationID: first.ID, Role: store.RoleAssistant, Content: "hi there", CreatedTs: 501,
	})
	require.NoError(t, err)

	list, err = s.ListConversations(ctx, &store.FindConversation{OwnerID: &alice})
	require.NoError(t, err)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, int64(501), list[0].UpdatedTs)
	assert.Equal(t, int32(2), list[0].MessageCount)

	messages, err := s.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationID: first.ID})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, store.RoleUser, messages[0].Role)
	assert.Equal(t, "hi there", messages[1].Content)

	// Another owner cannot delete it.
	err = s.DeleteConversation(ctx, &store.DeleteConversation{ID: first.ID, OwnerID: bob})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	require.NoError(t, s.DeleteConversation(ctx, &store.DeleteConversation{ID: first.ID, OwnerID: alice}))
	got, err := s.GetConversation(ctx, &store.FindConversation{ID: &first.ID})
	require.NoError(t, err)
	assert.Nil(t, got)

	messages, err = s.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationID: first.ID})
	require.NoError(t, err)
	assert.Empty(t, messages, "messages cascade with their conversation")

	_, err = s.CreateConversationMessage(ctx, &store.ConversationMessage{
		ConversationID: first.ID, Role: store.RoleUser, Content: "late", CreatedTs: 600,
	})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestUpdateConversation_TitleOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := newConversation(t, s, "alice", "c1", 100)

	title := "Recommend me something like Dune"
	source := store.TitleSourceFirstMessage
	guard := store.TitleSourceDefault

	updated, err := s.UpdateConversation(ctx, &store.UpdateConversation{
		ID: c.ID, Title: &title, TitleSource: &source, OnlyIfTitleSource: &guard,
	})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	other := "something else"
	_, err = s.UpdateConversation(ctx, &store.UpdateConversation{
		ID: c.ID, Title: &other, TitleSource: &source, OnlyIfTitleSource: &guard,
	})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	got, err := s.GetConversation(ctx, &store.FindConversation{ID: &c.ID})
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)

	_, err = s.UpdateConversation(ctx, &store.UpdateConversation{ID: c.ID})
	assert.Error(t, err)
}

func TestBookVectorSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	books := []struct {
		title string
		vec   []float32
	}{
		{"Dune", []float32{1, 0, 0}},
		{"Emma", []float32{0, 1, 0}},
		{"Foundation", []float32{0.9, 0.1, 0}},
		{"Dune Messiah", []float32{1, 0, 0}},
	}
	for _, b := range books {
		_, err := s.UpsertBookEmbedding(ctx, &store.BookEmbedding{
			Title: b.title, Summary: b.title + " summary", Model: "m1", Embedding: b.vec, CreatedTs: 1, UpdatedTs: 1,
		})
		require.NoError(t, err)
	}
	// A second model is invisible to m1 searches.
	_, err := s.UpsertBookEmbedding(ctx, &store.BookEmbedding{
		Title: "Dune", Summary: "x", Model: "m2", Embedding: []float32{1, 0, 0}, CreatedTs: 1, UpdatedTs: 1,
	})
	require.NoError(t, err)

	results, err := s.BookVectorSearch(ctx, &store.BookVectorSearchOptions{Model: "m1", Vector: []float32{1, 0, 0}, Limit: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Dune", results[0].Book.Title, "ties keep insertion order")
	assert.Equal(t, "Dune Messiah", results[1].Book.Title)
	assert.Equal(t, "Foundation", results[2].Book.Title)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	// Upsert replaces the vector for the same (title, model).
	_, err = s.UpsertBookEmbedding(ctx, &store.BookEmbedding{
		Title: "Emma", Summary: "Emma summary v2", Model: "m1", Embedding: []float32{1, 0, 0}, CreatedTs: 2, UpdatedTs: 2,
	})
	require.NoError(t, err)

	model := "m1"
	all, err := s.ListBookEmbeddings(ctx, &store.FindBookEmbedding{Model: &model, SkipVectors: true})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Nil(t, all[1].Embedding)
	assert.Equal(t, "Emma summary v2", all[1].Summary)
}

func TestQueryCache_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stored, err := s.CreateQueryCacheEntry(ctx, &store.QueryCacheEntry{Query: "space opera", Reply: "Try Dune", CreatedTs: 1})
	require.NoError(t, err)
	assert.Equal(t, "Try Dune", stored.Reply)

	stored, err = s.CreateQueryCacheEntry(ctx, &store.QueryCacheEntry{Query: "space opera", Reply: "Try Hyperion", CreatedTs: 2})
	require.NoError(t, err)
	assert.Equal(t, "Try Dune", stored.Reply)

	_, err = s.CreateQueryCacheEntry(ctx, &store.QueryCacheEntry{Query: "Space opera", Reply: "case differs", CreatedTs: 3})
	require.NoError(t, err)

	entries, err := s.ListQueryCacheEntries(ctx, &store.FindQueryCacheEntry{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
