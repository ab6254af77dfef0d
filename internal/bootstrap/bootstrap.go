package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/avoronov/compliance-kb/internal/config"
	"github.com/avoronov/compliance-kb/internal/core/ports"
	"github.com/avoronov/compliance-kb/internal/core/usecase"
	"github.com/avoronov/compliance-kb/internal/infrastructure/chunking"
	"github.com/avoronov/compliance-kb/internal/infrastructure/embedding"
	"github.com/avoronov/compliance-kb/internal/infrastructure/extractor"
	"github.com/avoronov/compliance-kb/internal/infrastructure/llm/crossencoder"
	"github.com/avoronov/compliance-kb/internal/infrastructure/llm/ollama"
	"github.com/avoronov/compliance-kb/internal/infrastructure/queue/nats"
	"github.com/avoronov/compliance-kb/internal/infrastructure/repository/postgres"
	"github.com/avoronov/compliance-kb/internal/infrastructure/resilience"
	"github.com/avoronov/compliance-kb/internal/infrastructure/storage/localfs"
	"github.com/avoronov/compliance-kb/internal/infrastructure/vector/qdrant"
	"github.com/avoronov/compliance-kb/internal/retrieval"
	"github.com/avoronov/compliance-kb/internal/retrieval/querycache"
)

// retrievalBreakerName labels the hand-rolled retrieval breaker in state
// change notifications, alongside the executor's per-operation breakers.
const retrievalBreakerName = "hybrid_search"

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Repo     ports.DocumentRepository
	Passages ports.PassageRepository

	Retriever ports.Retriever
	Refresher *retrieval.Refresher

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	AskUC     ports.QuestionService

	closeOnce sync.Once
	closeFn   func()
}

type Options struct {
	// BreakerStateListener observes every breaker transition (executor
	// operations and the retrieval breaker) so binaries can export them.
	BreakerStateListener func(operation, from, to string)
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	return NewWithOptions(ctx, cfg, Options{})
}

func NewWithOptions(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure documents schema: %w", err)
	}
	passageRepo := postgres.NewPassageRepository(db)
	if err := passageRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure passages schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executorCfg := resilience.DefaultConfig()
	executorCfg.StateListener = opts.BreakerStateListener
	executor := resilience.NewExecutor(executorCfg)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ProcessedSubject:   cfg.NATSProcessedSubject,
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: executor,
	})
	embedder := embedding.NewCachedEmbedder(
		ollama.NewEmbedder(ollamaClient),
		cfg.OllamaEmbedModel,
		cfg.EmbedCacheSize,
	)
	generator := ollama.NewGenerator(ollamaClient)

	encoder := crossencoder.NewWithOptions(cfg.RerankerURL, cfg.RerankerModel, crossencoder.Options{
		ResilienceExecutor: executor,
	})

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewDispatcher(storage)

	cache := querycache.New(cfg.CacheTTL, cfg.CacheMaxSize)
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		OnStateChange: func(from, to resilience.BreakerState) {
			if opts.BreakerStateListener != nil {
				opts.BreakerStateListener(retrievalBreakerName, from.String(), to.String())
			}
		},
	})

	corpusRef := retrieval.NewCorpusRef(retrieval.NewCorpus(nil))
	refresher := retrieval.NewRefresher(passageRepo, corpusRef)
	if err := refresher.Load(ctx); err != nil {
		// The corpus starts empty and the refresher retries on its
		// interval; an unreachable database at boot is not fatal here.
		slog.Warn("initial_corpus_load_failed", "error", err)
	}

	retriever := retrieval.NewHybridRetriever(embedder, vectorDB, corpusRef, cache, breaker, retrieval.Config{
		SemanticWeight: cfg.SemanticWeight,
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	})

	reranker := usecase.NewCrossEncoderReranker(encoder)
	askUC := usecase.NewAskUseCase(retriever, reranker, generator, cfg.RetrievalTopK, cfg.RerankTopK)
	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, passageRepo, extract, chunker, embedder, vectorDB)

	return &App{
		Config: cfg,

		Queue:    queue,
		Repo:     repo,
		Passages: passageRepo,

		Retriever: retriever,
		Refresher: refresher,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		AskUC:     askUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn == nil {
		return
	}
	a.closeOnce.Do(a.closeFn)
}
