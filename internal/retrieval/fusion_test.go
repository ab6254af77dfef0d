package retrieval

import (
	"testing"

	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/core/ports"
)

func TestFuseHitsWeighting(t *testing.T) {
	corpus := NewCorpus([]domain.Passage{
		{ID: "p1", Text: "alpha"},
		{ID: "p2", Text: "beta"},
	})
	hits := []ports.VectorHit{
		{PassageID: "p1", Score: 1.0},
		{PassageID: "p2", Score: 0.5},
	}
	keywordScores := []float64{0.0, 5.0}

	fused := fuseHits(hits, corpus, keywordScores, 0.9)

	if len(fused) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(fused))
	}
	// p2: 0.9*0.5 + 0.1*5.0 = 0.95 beats p1: 0.9*1.0 = 0.90.
	if fused[0].id != "p2" {
		t.Fatalf("expected keyword boost to put p2 first, got %v", fused)
	}
	if got := fused[0].score; got < 0.949 || got > 0.951 {
		t.Fatalf("expected fused score ~0.95, got %v", got)
	}
}

func TestFuseHitsTieBreaksByID(t *testing.T) {
	corpus := NewCorpus([]domain.Passage{
		{ID: "b", Text: "x"},
		{ID: "a", Text: "y"},
	})
	hits := []ports.VectorHit{
		{PassageID: "b", Score: 0.7},
		{PassageID: "a", Score: 0.7},
	}

	fused := fuseHits(hits, corpus, []float64{0, 0}, 0.9)
	if fused[0].id != "a" || fused[1].id != "b" {
		t.Fatalf("equal scores must order by id ascending, got %v", fused)
	}
}

func TestFuseHitsKeepsCandidatesOutsideCorpus(t *testing.T) {
	corpus := NewCorpus([]domain.Passage{{ID: "p1", Text: "alpha"}})
	hits := []ports.VectorHit{{PassageID: "ghost", Score: 0.9}}

	fused := fuseHits(hits, corpus, []float64{0}, 0.9)

	// The unknown candidate stays in the ranking; resolution drops it
	// later without refilling its slot.
	if len(fused) != 2 {
		t.Fatalf("expected ghost and p1 as candidates, got %v", fused)
	}
	if fused[0].id != "ghost" {
		t.Fatalf("expected ghost ranked first, got %v", fused)
	}
}
