package corpus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hrygo/smartlibrarian/ai/core/embedding"
	"github.com/hrygo/smartlibrarian/store"
)

// BookStore is the persistence the Indexer writes to.
type BookStore interface {
	ListBookEmbeddings(ctx context.Context, find *store.FindBookEmbedding) ([]*store.BookEmbedding, error)
	UpsertBookEmbedding(ctx context.Context, embedding *store.BookEmbedding) (*store.BookEmbedding, error)
}

// IndexerConfig tunes embedding throughput.
type IndexerConfig struct {
	BatchSize         int     // texts per embeddings request, default 16
	Concurrency       int     // parallel requests, default 2
	RequestsPerSecond float64 // 0 disables throttling
}

// IndexStats reports what an Index run did.
type IndexStats struct {
	Cached   int // unchanged entries already embedded for the model
	Embedded int // entries embedded in this run
}

// Indexer embeds corpus entries and stores them for vector search.
type Indexer struct {
	embedder embedding.Service
	store    BookStore
	cfg      IndexerConfig
	limiter  *rate.Limiter
}

// NewIndexer creates a new Indexer.
func NewIndexer(embedder embedding.Service, bookStore BookStore, cfg IndexerConfig) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Indexer{embedder: embedder, store: bookStore, cfg: cfg, limiter: limiter}
}

// Index embeds every book whose (title, summary) is not already stored for
// the embedder's model.
func (ix *Indexer) Index(ctx context.Context, books []Book) (IndexStats, error) {
	model := ix.embedder.Model()
	existing, err := ix.store.ListBookEmbeddings(ctx, &store.FindBookEmbedding{Model: &model, SkipVectors: true})
	if err != nil {
		return IndexStats{}, errors.Wrap(err, "failed to list existing embeddings")
	}
	known := make(map[string]string, len(existing))
	for _, e := range existing {
		known[e.Title] = e.Summary
	}

	var stats IndexStats
	var pending []Book
	for _, b := range books {
		if summary, ok := known[b.Title]; ok && summary == b.Summary {
			stats.Cached++
			continue
		}
		pending = append(pending, b)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Concurrency)
	for start := 0; start < len(pending); start += ix.cfg.BatchSize {
		end := min(start+ix.cfg.BatchSize, len(pending))
		batch := pending[start:end]

		g.Go(func() error {
			if err := ix.limiter.Wait(gctx); err != nil {
				return err
			}
			n, err := ix.embedBatch(gctx, model, batch)
			mu.Lock()
			stats.Embedded += n
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	slog.Info("Corpus: index complete", "model", model, "cached", stats.Cached, "embedded", stats.Embedded)
	return stats, nil
}

func (ix *Indexer) embedBatch(ctx context.Context, model string, batch []Book) (int, error) {
	texts := make([]string, len(batch))
	for i, b := range batch {
		texts[i] = b.Title + "\n" + b.Summary
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to embed batch starting at %q", batch[0].Title)
	}

	now := time.Now().Unix()
	for i, b := range batch {
		if _, err := ix.store.UpsertBookEmbedding(ctx, &store.BookEmbedding{
			Title:     b.Title,
			Summary:   b.Summary,
			Model:     model,
			Embedding: vectors[i],
			CreatedTs: now,
			UpdatedTs: now,
		}); err != nil {
			return i, errors.Wrapf(err, "failed to store embedding for %q", b.Title)
		}
	}
	return len(batch), nil
}
