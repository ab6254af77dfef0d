package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

type fakeRetriever struct {
	result domain.RetrievalResult
	calls  int
	gotK   int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, k int, _ domain.SearchFilter) domain.RetrievalResult {
	f.calls++
	f.gotK = k
	return f.result
}

func (f *fakeRetriever) CacheStats() domain.CacheStats { return domain.CacheStats{} }

func (f *fakeRetriever) ClearCache() {}

type fakeGenerator struct {
	calls int
	text  string
	err   error
	got   []domain.ScoredPassage
}

func (f *fakeGenerator) GenerateAnswer(_ context.Context, _ string, passages []domain.ScoredPassage) (string, error) {
	f.calls++
	f.got = passages
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func askFixture(result domain.RetrievalResult, scores []float64, genText string) (*AskUseCase, *fakeRetriever, *fakeCrossEncoder, *fakeGenerator) {
	ret := &fakeRetriever{result: result}
	enc := &fakeCrossEncoder{scores: scores}
	gen := &fakeGenerator{text: genText}
	uc := NewAskUseCase(ret, NewCrossEncoderReranker(enc), gen, 20, 4)
	return uc, ret, enc, gen
}

func TestAskFullPipeline(t *testing.T) {
	result := domain.RetrievalResult{
		Mode: domain.ModeFull,
		Passages: []domain.Passage{
			{ID: "p1", Source: "gdpr.pdf", Page: 3, Text: "retention schedules"},
			{ID: "p2", Source: "sox.pdf", Page: 7, Text: "control matrices"},
		},
	}
	uc, ret, _, gen := askFixture(result, []float64{0.2, 0.9}, "the answer")

	ans, err := uc.Ask(context.Background(), "what are the retention rules?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret.gotK != 20 {
		t.Fatalf("expected retrieval k=20, got %d", ret.gotK)
	}
	if ans.Text != "the answer" || ans.Mode != domain.ModeFull || ans.CacheHit {
		t.Fatalf("unexpected answer envelope: %+v", ans)
	}
	if len(ans.Sources) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(ans.Sources))
	}
	// Reranked order: p2 outscored p1.
	if ans.Sources[0].Source != "sox.pdf" || ans.Sources[0].Page != 7 {
		t.Fatalf("citations must follow rerank order, got %+v", ans.Sources)
	}
	if gen.calls != 1 || len(gen.got) != 2 || gen.got[0].Passage.ID != "p2" {
		t.Fatalf("generator must receive reranked passages, got %+v", gen.got)
	}
}

func TestAskRetrievalErrorDegrades(t *testing.T) {
	cause := domain.WrapError(domain.ErrRetriesExhausted, "hybrid retrieval", errors.New("backend down"))
	uc, _, enc, gen := askFixture(domain.RetrievalResult{Mode: domain.ModeError, Err: cause}, nil, "")

	ans, err := uc.Ask(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("retrieval exhaustion must not fail the call, got %v", err)
	}
	if ans.Mode != domain.ModeError || ans.CacheHit {
		t.Fatalf("unexpected degraded envelope: %+v", ans)
	}
	if !strings.Contains(ans.Text, "Unable to retrieve documents") {
		t.Fatalf("expected degraded answer text, got %q", ans.Text)
	}
	if len(ans.Sources) != 0 {
		t.Fatalf("degraded answer must carry no sources, got %+v", ans.Sources)
	}
	if enc.calls != 0 || gen.calls != 0 {
		t.Fatalf("degraded path must skip rerank and generation")
	}
}

func TestAskNoDocumentsFound(t *testing.T) {
	uc, _, enc, gen := askFixture(domain.RetrievalResult{Mode: domain.ModeFull}, nil, "")

	ans, err := uc.Ask(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(ans.Text, "No relevant documents") {
		t.Fatalf("expected honest empty answer, got %q", ans.Text)
	}
	if enc.calls != 0 || gen.calls != 0 {
		t.Fatalf("empty retrieval must skip rerank and generation")
	}
}

func TestAskCacheHitStillReranks(t *testing.T) {
	result := domain.RetrievalResult{
		Mode:     domain.ModeCache,
		Passages: []domain.Passage{{ID: "p1", Text: "cached passage"}},
	}
	uc, _, enc, _ := askFixture(result, []float64{0.7}, "cached answer")

	ans, err := uc.Ask(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ans.CacheHit || ans.Mode != domain.ModeCache {
		t.Fatalf("expected cache-hit envelope, got %+v", ans)
	}
	if enc.calls != 1 {
		t.Fatalf("cache hits must still be reranked, got %d encoder calls", enc.calls)
	}
}

func TestAskRerankFailureFailsTheCall(t *testing.T) {
	result := domain.RetrievalResult{
		Mode:     domain.ModeFull,
		Passages: []domain.Passage{{ID: "p1", Text: "text"}},
	}
	ret := &fakeRetriever{result: result}
	enc := &fakeCrossEncoder{err: errors.New("scorer down")}
	gen := &fakeGenerator{}
	uc := NewAskUseCase(ret, NewCrossEncoderReranker(enc), gen, 20, 4)

	_, err := uc.Ask(context.Background(), "q", nil)
	if err == nil {
		t.Fatalf("expected rerank failure to fail the call")
	}
	if gen.calls != 0 {
		t.Fatalf("generation must not run after rerank failure")
	}
}

func TestAskGenerationFailureFailsTheCall(t *testing.T) {
	result := domain.RetrievalResult{
		Mode:     domain.ModeFull,
		Passages: []domain.Passage{{ID: "p1", Text: "text"}},
	}
	ret := &fakeRetriever{result: result}
	enc := &fakeCrossEncoder{scores: []float64{0.5}}
	gen := &fakeGenerator{err: errors.New("llm down")}
	uc := NewAskUseCase(ret, NewCrossEncoderReranker(enc), gen, 20, 4)

	if _, err := uc.Ask(context.Background(), "q", nil); err == nil {
		t.Fatalf("expected generation failure to fail the call")
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	uc, ret, _, _ := askFixture(domain.RetrievalResult{Mode: domain.ModeFull}, nil, "")

	_, err := uc.Ask(context.Background(), "   ", nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if ret.calls != 0 {
		t.Fatalf("validation must run before retrieval")
	}
}

func TestSnippetTruncatesByRunes(t *testing.T) {
	long := strings.Repeat("ü", 250)
	got := snippet(long, 200)
	if got != strings.Repeat("ü", 200)+"..." {
		t.Fatalf("expected 200-rune snippet with ellipsis, got %d bytes", len(got))
	}

	short := "short passage"
	if snippet(short, 200) != short {
		t.Fatalf("short text must pass through untouched")
	}
}
