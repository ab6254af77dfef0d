package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/avoronov/compliance-kb/internal/core/ports"
)

const DefaultCacheSize = 1000

// CachedEmbedder decorates an Embedder with an LRU cache keyed by text and
// model name, so reprocessed passages and repeated queries skip the backend.
type CachedEmbedder struct {
	inner ports.Embedder
	model string
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(inner ports.Embedder, model string, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{
		inner: inner,
		model: model,
		cache: cache,
	}
}

// cacheKey hashes text together with the model name so a model swap never
// serves stale vectors.
func (c *CachedEmbedder) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text + "\x00" + c.model))
	return hex.EncodeToString(hash[:])
}

// Embed checks the cache per text and batches only the misses to the inner
// embedder, keeping result order aligned with the input.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	uncachedIndices := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		uncachedIndices = append(uncachedIndices, i)
		uncachedTexts = append(uncachedTexts, text)
	}
	if len(uncachedTexts) == 0 {
		return results, nil
	}

	vectors, err := c.inner.Embed(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(uncachedTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(uncachedTexts))
	}

	for j, idx := range uncachedIndices {
		results[idx] = vectors[j]
		c.cache.Add(c.cacheKey(texts[idx]), vectors[j])
	}
	return results, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}
