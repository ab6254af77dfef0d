package embedding

import (
	"context"
	"errors"
	"testing"
)

type innerFake struct {
	batchCalls [][]string
	queryCalls []string
	dim        int
	err        error
}

func (f *innerFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls = append(f.batchCalls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = vectorFor(text, f.dim)
	}
	return vectors, nil
}

func (f *innerFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queryCalls = append(f.queryCalls, text)
	if f.err != nil {
		return nil, f.err
	}
	return vectorFor(text, f.dim), nil
}

func vectorFor(text string, dim int) []float32 {
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(len(text) + i)
	}
	return vec
}

func TestEmbedBatchesOnlyCacheMisses(t *testing.T) {
	inner := &innerFake{dim: 3}
	cached := NewCachedEmbedder(inner, "test-model", 16)

	if _, err := cached.Embed(context.Background(), []string{"alpha", "beta"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	vectors, err := cached.Embed(context.Background(), []string{"beta", "gamma"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}

	if len(inner.batchCalls) != 2 {
		t.Fatalf("expected 2 backend batches, got %d", len(inner.batchCalls))
	}
	second := inner.batchCalls[1]
	if len(second) != 1 || second[0] != "gamma" {
		t.Fatalf("expected second batch to carry only the miss, got %v", second)
	}
	if vectors[0] == nil || vectors[1] == nil {
		t.Fatalf("expected all result slots filled, got %v", vectors)
	}
}

func TestEmbedAllCachedSkipsBackend(t *testing.T) {
	inner := &innerFake{dim: 2}
	cached := NewCachedEmbedder(inner, "test-model", 16)

	if _, err := cached.Embed(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if _, err := cached.Embed(context.Background(), []string{"alpha"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(inner.batchCalls) != 1 {
		t.Fatalf("expected a single backend batch, got %d", len(inner.batchCalls))
	}
}

func TestEmbedQuerySharesCacheWithBatch(t *testing.T) {
	inner := &innerFake{dim: 2}
	cached := NewCachedEmbedder(inner, "test-model", 16)

	if _, err := cached.Embed(context.Background(), []string{"what is gdpr"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if _, err := cached.EmbedQuery(context.Background(), "what is gdpr"); err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(inner.queryCalls) != 0 {
		t.Fatalf("expected query to hit the batch-filled cache, got %v", inner.queryCalls)
	}
}

func TestEmbedPropagatesBackendError(t *testing.T) {
	backendErr := errors.New("embed backend down")
	inner := &innerFake{dim: 2, err: backendErr}
	cached := NewCachedEmbedder(inner, "test-model", 16)

	if _, err := cached.Embed(context.Background(), []string{"alpha"}); !errors.Is(err, backendErr) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	inner := &innerFake{dim: 2}
	cached := NewCachedEmbedder(inner, "test-model", 16)

	vectors, err := cached.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if vectors != nil {
		t.Fatalf("expected nil vectors, got %v", vectors)
	}
	if len(inner.batchCalls) != 0 {
		t.Fatalf("expected no backend calls, got %d", len(inner.batchCalls))
	}
}
