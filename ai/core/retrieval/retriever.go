// Package retrieval finds the corpus entries closest to a reader's query.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hrygo/smartlibrarian/ai/core/embedding"
	"github.com/hrygo/smartlibrarian/ai/core/reranker"
	"github.com/hrygo/smartlibrarian/ai/internal/strutil"
	"github.com/hrygo/smartlibrarian/store"
)

const (
	// DefaultSnippetRunes bounds each candidate body shown to the model.
	DefaultSnippetRunes = 600

	// rerankPoolFactor widens the vector search when a reranker reorders it.
	rerankPoolFactor = 3

	maxQueryRunes = 1000
)

// Candidate is one retrieved book. Body is a snippet of the summary, not the
// canonical full text.
type Candidate struct {
	Title string
	Body  string
	Score float64
}

// VectorSearcher is the store capability the Retriever needs.
type VectorSearcher interface {
	BookVectorSearch(ctx context.Context, opts *store.BookVectorSearchOptions) ([]*store.BookWithScore, error)
}

// Retriever embeds the query, searches stored book vectors and optionally
// reranks the pool.
type Retriever struct {
	searcher     VectorSearcher
	embedder     embedding.Service
	reranker     reranker.Service
	snippetRunes int
}

// NewRetriever creates a new Retriever. rr may be nil.
func NewRetriever(searcher VectorSearcher, embedder embedding.Service, rr reranker.Service) *Retriever {
	return &Retriever{
		searcher:     searcher,
		embedder:     embedder,
		reranker:     rr,
		snippetRunes: DefaultSnippetRunes,
	}
}

// Retrieve returns at most k candidates ordered by descending score. Equal
// scores keep search order.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	start := time.Now()
	query = strutil.Prefix(query, maxQueryRunes)

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := k
	if r.rerankEnabled() {
		limit = k * rerankPoolFactor
	}
	hits, err := r.searcher.BookVectorSearch(ctx, &store.BookVectorSearchOptions{
		Model:  r.embedder.Model(),
		Vector: vector,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search books: %w", err)
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, Candidate{
			Title: h.Book.Title,
			Body:  strutil.Truncate(h.Book.Summary, r.snippetRunes),
			Score: float64(h.Score),
		})
	}

	if r.rerankEnabled() && len(candidates) > 1 {
		candidates, err = r.rerank(ctx, query, candidates, k)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	slog.Debug("Retrieval: candidates ready",
		"count", len(candidates),
		"reranked", r.rerankEnabled(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return candidates, nil
}

func (r *Retriever) rerankEnabled() bool {
	return r.reranker != nil && r.reranker.IsEnabled()
}

func (r *Retriever) rerank(ctx context.Context, query string, candidates []Candidate, k int) ([]Candidate, error) {
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Title + "\n" + c.Body
	}
	results, err := r.reranker.Rerank(ctx, query, docs, k)
	if err != nil {
		return nil, fmt.Errorf("failed to rerank candidates: %w", err)
	}

	out := make([]Candidate, 0, len(results))
	for _, res := range results {
		c := candidates[res.Index]
		c.Score = float64(res.Score)
		out = append(out, c)
	}
	return out, nil
}
