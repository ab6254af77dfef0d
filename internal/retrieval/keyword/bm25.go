package keyword

import (
	"math"
	"strings"
)

const (
	k1      = 1.5
	b       = 0.75
	epsilon = 0.25
)

// Tokenize lowercases and splits on whitespace. Queries and corpus
// documents must share this exact tokenization.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// BM25 is an Okapi BM25 index over a fixed corpus. All statistics are
// precomputed at construction; ScoreAll is read-only and safe for
// concurrent use.
type BM25 struct {
	termFreqs []map[string]int
	docLens   []float64
	avgdl     float64
	idf       map[string]float64
}

func NewBM25(docs []string) *BM25 {
	idx := &BM25{
		termFreqs: make([]map[string]int, len(docs)),
		docLens:   make([]float64, len(docs)),
		idf:       make(map[string]float64),
	}

	df := make(map[string]int)
	var total float64
	for i, doc := range docs {
		terms := Tokenize(doc)
		freqs := make(map[string]int, len(terms))
		for _, t := range terms {
			freqs[t]++
		}
		idx.termFreqs[i] = freqs
		idx.docLens[i] = float64(len(terms))
		total += float64(len(terms))
		for t := range freqs {
			df[t]++
		}
	}
	if len(docs) > 0 {
		idx.avgdl = total / float64(len(docs))
	}
	idx.calcIDF(df, len(docs))
	return idx
}

// calcIDF computes Okapi idf per term. Terms appearing in more than
// half the corpus would go negative and are clamped to a floor of
// epsilon times the average idf instead.
func (x *BM25) calcIDF(df map[string]int, n int) {
	if len(df) == 0 {
		return
	}
	var sum float64
	var negative []string
	for term, freq := range df {
		idf := math.Log(float64(n)-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		x.idf[term] = idf
		sum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	eps := epsilon * sum / float64(len(x.idf))
	for _, term := range negative {
		x.idf[term] = eps
	}
}

// ScoreAll returns one score per corpus document for the query terms.
// Terms absent from the corpus contribute nothing.
func (x *BM25) ScoreAll(queryTerms []string) []float64 {
	scores := make([]float64, len(x.termFreqs))
	if x.avgdl == 0 {
		return scores
	}
	for _, term := range queryTerms {
		idf, ok := x.idf[term]
		if !ok {
			continue
		}
		for i, freqs := range x.termFreqs {
			f := float64(freqs[term])
			if f == 0 {
				continue
			}
			scores[i] += idf * (f * (k1 + 1)) / (f + k1*(1-b+b*x.docLens[i]/x.avgdl))
		}
	}
	return scores
}

// Len reports the corpus size the index was built over.
func (x *BM25) Len() int {
	return len(x.termFreqs)
}
