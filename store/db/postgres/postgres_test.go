package postgres

import (
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/smartlibrarian/store"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", placeholder(1))
	assert.Equal(t, "$12", placeholder(12))
	assert.Equal(t, "$1, $2, $3", placeholders(3))
	assert.Equal(t, "", placeholders(0))
}

func TestUpdateConversationStmt(t *testing.T) {
	title := "The Hobbit and friends"
	auto := store.TitleSourceFirstMessage
	def := store.TitleSourceDefault

	t.Run("title once", func(t *testing.T) {
		stmt, args, err := updateConversationStmt(&store.UpdateConversation{
			ID:                7,
			Title:             &title,
			TitleSource:       &auto,
			OnlyIfTitleSource: &def,
		})
		require.NoError(t, err)
		assert.Contains(t, stmt, "SET title = $1, title_source = $2")
		assert.Contains(t, stmt, "WHERE id = $3 AND title_source = $4")
		assert.Contains(t, stmt, "RETURNING id, uid, owner_id")
		assert.Equal(t, []any{title, auto, int32(7), def}, args)
	})

	t.Run("unguarded", func(t *testing.T) {
		ts := int64(42)
		stmt, args, err := updateConversationStmt(&store.UpdateConversation{ID: 3, UpdatedTs: &ts})
		require.NoError(t, err)
		assert.Contains(t, stmt, "SET updated_ts = $1 WHERE id = $2 RETURNING")
		assert.NotContains(t, stmt, "title_source =")
		assert.Equal(t, []any{ts, int32(3)}, args)
	})

	t.Run("nothing to update", func(t *testing.T) {
		_, _, err := updateConversationStmt(&store.UpdateConversation{ID: 1, OnlyIfTitleSource: &def})
		assert.Error(t, err)
	})
}

func TestListConversationsQuery(t *testing.T) {
	owner := "reader-1"
	id := int32(9)

	query, args := listConversationsQuery(&store.FindConversation{ID: &id, OwnerID: &owner})
	assert.Contains(t, query, "WHERE 1 = 1 AND c.id = $1 AND c.owner_id = $2")
	assert.Contains(t, query, "ORDER BY c.updated_ts DESC, c.id DESC")
	assert.Equal(t, []any{id, owner}, args)

	query, args = listConversationsQuery(&store.FindConversation{})
	assert.NotContains(t, query, "$1")
	assert.Empty(t, args)
}

func TestListBookEmbeddingsQuery(t *testing.T) {
	model := "text-embedding-3-small"

	query, args := listBookEmbeddingsQuery(&store.FindBookEmbedding{Model: &model})
	assert.Contains(t, query, "model = $1")
	assert.Contains(t, query, ", embedding")
	assert.Equal(t, []any{model}, args)

	query, _ = listBookEmbeddingsQuery(&store.FindBookEmbedding{Model: &model, SkipVectors: true})
	assert.NotContains(t, query, ", embedding")
}

func TestBookVectorSearchQuery(t *testing.T) {
	vec := []float32{0.1, 0.2}

	query, args := bookVectorSearchQuery(&store.BookVectorSearchOptions{Model: "m", Vector: vec, Limit: 9})
	assert.Contains(t, query, "1 - (embedding <=> $1) AS score")
	assert.Contains(t, query, "WHERE model = $2")
	assert.Contains(t, query, "ORDER BY embedding <=> $1, id ASC")
	assert.Contains(t, query, "LIMIT $3")
	require.Len(t, args, 3)
	assert.Equal(t, pgvector.NewVector(vec), args[0])
	assert.Equal(t, "m", args[1])
	assert.Equal(t, 9, args[2])

	_, args = bookVectorSearchQuery(&store.BookVectorSearchOptions{Model: "m", Vector: vec})
	assert.Equal(t, 3, args[2])
}

func TestListQueryCacheQuery(t *testing.T) {
	q := "a cozy mystery"

	query, args := listQueryCacheQuery(&store.FindQueryCacheEntry{Query: &q})
	assert.Contains(t, query, "WHERE query = $1 ORDER BY created_ts ASC")
	assert.Equal(t, []any{q}, args)

	query, args = listQueryCacheQuery(&store.FindQueryCacheEntry{})
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}
