package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/core/ports"
	"github.com/avoronov/compliance-kb/internal/infrastructure/resilience"
	"github.com/avoronov/compliance-kb/internal/retrieval/keyword"
	"github.com/avoronov/compliance-kb/internal/retrieval/querycache"
)

const opHybridSearch = "hybrid_search"

type Config struct {
	SemanticWeight float64
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultConfig() Config {
	return Config{
		SemanticWeight: 0.9,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     16 * time.Second,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.SemanticWeight <= 0 || out.SemanticWeight > 1 {
		out.SemanticWeight = def.SemanticWeight
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = def.MaxRetries
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = def.InitialBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	return out
}

// HybridRetriever fuses semantic and keyword search behind a query
// cache, a circuit breaker and an exponential-backoff retry loop. Its
// Retrieve never fails hard: exhausted attempts degrade to a ModeError
// result carrying the wrapped cause.
type HybridRetriever struct {
	embedder ports.Embedder
	vector   ports.VectorStore
	corpus   *CorpusRef
	cache    *querycache.Cache
	breaker  *resilience.Breaker
	cfg      Config

	sleep func(ctx context.Context, d time.Duration) error
}

func NewHybridRetriever(
	embedder ports.Embedder,
	vector ports.VectorStore,
	corpus *CorpusRef,
	cache *querycache.Cache,
	breaker *resilience.Breaker,
	cfg Config,
) *HybridRetriever {
	return &HybridRetriever{
		embedder: embedder,
		vector:   vector,
		corpus:   corpus,
		cache:    cache,
		breaker:  breaker,
		cfg:      cfg.normalize(),
		sleep:    sleepContext,
	}
}

// Retrieve serves the query from the cache when possible, otherwise
// runs the hybrid search through the breaker with up to MaxRetries
// attempts. A rejection by the open breaker consumes an attempt like
// any other failure.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, k int, filter domain.SearchFilter) domain.RetrievalResult {
	if passages, ok := r.cache.Get(query, filter); ok {
		return domain.RetrievalResult{Passages: passages, Mode: domain.ModeCache}
	}

	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		passages, err := r.searchOnce(ctx, query, k, filter)
		if err == nil {
			// Empty results stay uncached so documents indexed later are
			// picked up immediately instead of after the TTL.
			if len(passages) > 0 {
				r.cache.Set(query, filter, passages)
			}
			return domain.RetrievalResult{Passages: passages, Mode: domain.ModeFull}
		}
		lastErr = err

		if attempt == r.cfg.MaxRetries-1 {
			break
		}

		wait := backoffFor(attempt, r.cfg.InitialBackoff, r.cfg.MaxBackoff)
		slog.Warn("retry_attempt",
			"operation", opHybridSearch,
			"attempt", attempt+1,
			"max_attempts", r.cfg.MaxRetries,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)
		if sleepErr := r.sleep(ctx, wait); sleepErr != nil {
			lastErr = errors.Join(lastErr, sleepErr)
			break
		}
	}

	return domain.RetrievalResult{
		Mode: domain.ModeError,
		Err:  domain.WrapError(domain.ErrRetriesExhausted, "hybrid retrieval", lastErr),
	}
}

func (r *HybridRetriever) CacheStats() domain.CacheStats {
	return r.cache.Stats()
}

func (r *HybridRetriever) ClearCache() {
	r.cache.Clear()
}

// searchOnce runs one guarded attempt. A panic inside the search is
// converted to a temporary error so the host never crashes on a
// misbehaving backend client.
func (r *HybridRetriever) searchOnce(ctx context.Context, query string, k int, filter domain.SearchFilter) ([]domain.Passage, error) {
	return resilience.Execute(r.breaker, func() (out []domain.Passage, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				out = nil
				err = domain.WrapError(domain.ErrTemporary, opHybridSearch, fmt.Errorf("panic: %v", rec))
			}
		}()
		return r.hybridSearch(ctx, query, k, filter)
	})
}

func (r *HybridRetriever) hybridSearch(ctx context.Context, query string, k int, filter domain.SearchFilter) ([]domain.Passage, error) {
	corpus := r.corpus.Snapshot()
	if corpus.Len() == 0 {
		return nil, nil
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.vector.Search(ctx, queryVector, k, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	keywordScores := corpus.Scores(keyword.Tokenize(query))
	fused := fuseHits(hits, corpus, keywordScores, r.cfg.SemanticWeight)

	if k < 0 {
		k = 0
	}
	if len(fused) > k {
		fused = fused[:k]
	}

	// Candidate IDs unknown to the corpus are skipped, they still
	// consumed their top-k slot.
	passages := make([]domain.Passage, 0, len(fused))
	for _, c := range fused {
		if p, ok := corpus.Resolve(c.id); ok {
			passages = append(passages, p)
		}
	}
	return passages, nil
}

func backoffFor(attempt int, initial, max time.Duration) time.Duration {
	wait := initial << uint(attempt)
	if wait > max || wait <= 0 {
		wait = max
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
