package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avoronov/compliance-kb/internal/core/ports"
)

// Refresher rebuilds the in-memory passage corpus from the repository so
// keyword scoring and hit resolution see newly processed documents.
type Refresher struct {
	passages ports.PassageRepository
	ref      *CorpusRef
}

func NewRefresher(passages ports.PassageRepository, ref *CorpusRef) *Refresher {
	return &Refresher{passages: passages, ref: ref}
}

// Load replaces the active corpus with the current passage set.
func (r *Refresher) Load(ctx context.Context) error {
	passages, err := r.passages.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load passage corpus: %w", err)
	}
	r.ref.Swap(NewCorpus(passages))
	slog.Info("corpus_reloaded", "passages", len(passages))
	return nil
}

// Run reloads on the given interval until the context ends. A failed
// reload keeps the previous corpus active.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Load(ctx); err != nil {
				slog.Warn("corpus_reload_failed", "error", err)
			}
		}
	}
}
