package retrieval

import (
	"sort"

	"github.com/avoronov/compliance-kb/internal/core/ports"
)

type fusedHit struct {
	id    string
	score float64
}

// fuseHits blends weighted semantic similarity with weighted keyword
// scores. Every corpus passage is a candidate: passages outside the
// vector matches enter with their keyword score alone, so a strong
// keyword match can surface without a semantic hit. The order is fully
// deterministic, ties fall back to passage ID.
func fuseHits(hits []ports.VectorHit, corpus *Corpus, keywordScores []float64, semanticWeight float64) []fusedHit {
	keywordWeight := 1.0 - semanticWeight

	scores := make(map[string]float64, corpus.Len()+len(hits))
	for _, h := range hits {
		scores[h.PassageID] = h.Score * semanticWeight
	}
	for i, kw := range keywordScores {
		id := corpus.PassageAt(i).ID
		scores[id] += kw * keywordWeight
	}

	out := make([]fusedHit, 0, len(scores))
	for id, score := range scores {
		out = append(out, fusedHit{id: id, score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	return out
}
