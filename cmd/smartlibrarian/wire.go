package main

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/smartlibrarian/ai/cache"
	"github.com/hrygo/smartlibrarian/ai/core/embedding"
	"github.com/hrygo/smartlibrarian/ai/core/llm"
	"github.com/hrygo/smartlibrarian/ai/core/media"
	"github.com/hrygo/smartlibrarian/ai/core/moderation"
	"github.com/hrygo/smartlibrarian/ai/core/reranker"
	"github.com/hrygo/smartlibrarian/ai/core/retrieval"
	"github.com/hrygo/smartlibrarian/ai/corpus"
	"github.com/hrygo/smartlibrarian/ai/librarian"
	"github.com/hrygo/smartlibrarian/ai/metrics"
	"github.com/hrygo/smartlibrarian/ai/prompt"
	"github.com/hrygo/smartlibrarian/internal/profile"
	"github.com/hrygo/smartlibrarian/store"
	"github.com/hrygo/smartlibrarian/store/db"
)

// openStore creates the driver for the profile and migrates it.
func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	s := store.New(driver, p)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newEmbeddingService(p *profile.Profile) (embedding.Service, error) {
	return embedding.NewService(&embedding.Config{
		Provider:   p.EmbeddingProvider,
		Model:      p.EmbeddingModel,
		APIKey:     p.EmbeddingAPIKey,
		BaseURL:    p.EmbeddingBaseURL,
		Dimensions: p.EmbeddingDimensions,
	})
}

// app is everything the serve command runs.
type app struct {
	librarian *librarian.Librarian
	metrics   *metrics.PrometheusExporter
	llm       llm.Service
	indexer   *corpus.Indexer
	books     []corpus.Book
}

// buildApp constructs every port from the profile. It is the only place
// where concrete adapters are chosen.
func buildApp(ctx context.Context, p *profile.Profile, st *store.Store) (*app, error) {
	books, err := corpus.LoadFile(p.CorpusPath)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, errors.Errorf("corpus %s has no entries", p.CorpusPath)
	}
	library := corpus.NewLibrary(books)

	chat, err := llm.NewService(&llm.Config{
		Provider:    p.LLMProvider,
		Model:       p.LLMModel,
		APIKey:      p.LLMAPIKey,
		BaseURL:     p.LLMBaseURL,
		Temperature: p.LLMTemperature,
		Timeout:     p.LLMTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create llm service")
	}

	embedder, err := newEmbeddingService(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create embedding service")
	}
	rr := reranker.NewService(&reranker.Config{
		Model:   p.RerankModel,
		APIKey:  p.RerankAPIKey,
		BaseURL: p.RerankBaseURL,
		Enabled: p.RerankEnabled,
	})

	// Media and moderation are OpenAI endpoints unless redirected.
	mediaCfg := &media.Config{
		Provider:     "openai",
		APIKey:       p.MediaAPIKey,
		BaseURL:      p.MediaBaseURL,
		ImageModel:   p.ImageModel,
		ImageSize:    p.ImageSize,
		ImageMaxSide: p.ImageMaxSide,
		SpeechModel:  p.SpeechModel,
		SpeechVoice:  p.SpeechVoice,
		WhisperModel: p.TranscriptionModel,
	}

	promptCfg, err := prompt.LoadConfig(p.PromptDir)
	if err != nil {
		return nil, err
	}
	composer, err := prompt.NewComposer(promptCfg, librarian.SummaryToolName)
	if err != nil {
		return nil, err
	}

	var backend cache.Backend
	if p.PersistResponseCache {
		backend = librarian.NewQueryCacheBackend(st)
	}
	responses := cache.NewResponseCache(backend)
	if err := responses.Warm(ctx); err != nil {
		slog.Warn("failed to warm response cache", "error", err)
	}

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())

	lib, err := librarian.New(librarian.Ports{
		Store:     librarian.NewStoreAdapter(st),
		Retriever: retrieval.NewRetriever(st, embedder, rr),
		Moderator: moderation.NewService(&moderation.Config{
			Provider: "openai",
			Model:    p.ModerationModel,
			APIKey:   p.MediaAPIKey,
			BaseURL:  p.MediaBaseURL,
		}),
		Lookup:      librarian.NewLibraryLookup(library),
		LLM:         chat,
		Images:      librarian.NewImageAdapter(media.NewImageService(mediaCfg)),
		Speech:      librarian.NewSpeechAdapter(media.NewSpeechService(mediaCfg)),
		Transcriber: media.NewTranscriptionService(mediaCfg),
		Cache:       responses,
		Metrics:     exporter,
	}, composer, librarian.Config{
		ModelName:            p.LLMModel,
		SpeechVoice:          p.SpeechVoice,
		DegradeSpeechFailure: p.DegradeSpeechFailure,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		librarian: lib,
		metrics:   exporter,
		llm:       chat,
		indexer:   corpus.NewIndexer(embedder, st, corpus.IndexerConfig{}),
		books:     books,
	}, nil
}
