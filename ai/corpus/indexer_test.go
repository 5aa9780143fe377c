package corpus_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/smartlibrarian/ai/corpus"
	"github.com/hrygo/smartlibrarian/internal/profile"
	"github.com/hrygo/smartlibrarian/store"
	"github.com/hrygo/smartlibrarian/store/db/sqlite"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string   { return "fake-embed" }
func (f *fakeEmbedder) Dimensions() int { return 2 }

func (f *fakeEmbedder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{Mode: "dev", Driver: "sqlite", DSN: ":memory:"}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestIndexerEmbedsOnlyMissing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	emb := &fakeEmbedder{}
	ix := corpus.NewIndexer(emb, s, corpus.IndexerConfig{BatchSize: 2, Concurrency: 2})

	books := []corpus.Book{
		{Title: "1984", Summary: "orwell"},
		{Title: "The Hobbit", Summary: "tolkien"},
		{Title: "Dune", Summary: "herbert"},
	}

	stats, err := ix.Index(ctx, books)
	require.NoError(t, err)
	assert.Equal(t, corpus.IndexStats{Cached: 0, Embedded: 3}, stats)
	assert.Equal(t, 3, emb.calls())

	// Second run reuses everything.
	stats, err = ix.Index(ctx, books)
	require.NoError(t, err)
	assert.Equal(t, corpus.IndexStats{Cached: 3, Embedded: 0}, stats)
	assert.Equal(t, 3, emb.calls())

	// A changed summary is re-embedded.
	books[2].Summary = "herbert, revised"
	stats, err = ix.Index(ctx, books)
	require.NoError(t, err)
	assert.Equal(t, corpus.IndexStats{Cached: 2, Embedded: 1}, stats)

	model := emb.Model()
	stored, err := s.ListBookEmbeddings(ctx, &store.FindBookEmbedding{Model: &model})
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for _, b := range stored {
		assert.Len(t, b.Embedding, 2)
		if b.Title == "Dune" {
			assert.Equal(t, "herbert, revised", b.Summary)
		}
	}
}

func TestIndexerPropagatesEmbedError(t *testing.T) {
	s := newStore(t)
	emb := &fakeEmbedder{err: errors.New("quota exceeded")}
	ix := corpus.NewIndexer(emb, s, corpus.IndexerConfig{RequestsPerSecond: 100})

	_, err := ix.Index(context.Background(), []corpus.Book{{Title: "Dune", Summary: "herbert"}})
	assert.ErrorContains(t, err, "quota exceeded")
}
