package keyword

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("  GDPR\tArticle 30\nRecords  ")
	want := []string{"gdpr", "article", "30", "records"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if toks := Tokenize("   "); len(toks) != 0 {
		t.Fatalf("expected no tokens for blank text, got %v", toks)
	}
}

func TestScoreAllMatchesOnlyContainingDocs(t *testing.T) {
	idx := NewBM25([]string{
		"data retention schedule for audits",
		"employee onboarding checklist",
		"vendor risk assessment policy",
	})

	scores := idx.ScoreAll(Tokenize("retention audits"))
	if len(scores) != 3 {
		t.Fatalf("expected one score per document, got %d", len(scores))
	}
	if scores[0] <= 0 {
		t.Fatalf("document containing the query terms must score positive, got %v", scores[0])
	}
	if scores[1] != 0 || scores[2] != 0 {
		t.Fatalf("documents without query terms must score zero, got %v", scores)
	}
}

func TestScoreAllRareTermOutweighsCommon(t *testing.T) {
	idx := NewBM25([]string{
		"policy policy gdpr",
		"policy handbook overview",
		"policy travel expenses",
		"policy security baseline",
	})

	rare := idx.ScoreAll([]string{"gdpr"})
	common := idx.ScoreAll([]string{"policy"})

	if rare[0] <= common[1] {
		t.Fatalf("rare term must outscore a ubiquitous one: rare=%v common=%v", rare[0], common[1])
	}
}

func TestScoreAllCommonTermFloorStaysPositive(t *testing.T) {
	// "policy" occurs in every document, its raw idf is negative and
	// must be clamped to the epsilon floor.
	idx := NewBM25([]string{
		"policy gdpr retention",
		"policy sox controls",
		"policy hipaa access",
	})

	scores := idx.ScoreAll([]string{"policy"})
	for i, s := range scores {
		if s <= 0 {
			t.Fatalf("doc %d: clamped common-term score must stay positive, got %v", i, s)
		}
	}
}

func TestScoreAllUnknownTermContributesNothing(t *testing.T) {
	idx := NewBM25([]string{"data retention schedule"})

	scores := idx.ScoreAll(Tokenize("quantum entanglement"))
	if scores[0] != 0 {
		t.Fatalf("unknown terms must contribute nothing, got %v", scores[0])
	}
}

func TestEmptyCorpus(t *testing.T) {
	idx := NewBM25(nil)
	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got %d", idx.Len())
	}
	if scores := idx.ScoreAll([]string{"anything"}); len(scores) != 0 {
		t.Fatalf("expected no scores on empty corpus, got %v", scores)
	}
}
