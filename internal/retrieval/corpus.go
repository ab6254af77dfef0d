package retrieval

import (
	"sync/atomic"

	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/retrieval/keyword"
)

// Corpus is an immutable snapshot of all retrievable passages together
// with the keyword index built over them. Replacing the corpus swaps
// the whole snapshot; a snapshot in use never mutates.
type Corpus struct {
	passages []domain.Passage
	byID     map[string]int
	index    *keyword.BM25
}

func NewCorpus(passages []domain.Passage) *Corpus {
	texts := make([]string, len(passages))
	byID := make(map[string]int, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
		byID[p.ID] = i
	}
	return &Corpus{
		passages: passages,
		byID:     byID,
		index:    keyword.NewBM25(texts),
	}
}

func (c *Corpus) Len() int {
	return len(c.passages)
}

// PassageAt returns the passage at a keyword-score index.
func (c *Corpus) PassageAt(i int) domain.Passage {
	return c.passages[i]
}

// Resolve looks a passage up by ID.
func (c *Corpus) Resolve(id string) (domain.Passage, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Passage{}, false
	}
	return c.passages[i], true
}

// Scores returns keyword scores index-aligned with the passages.
func (c *Corpus) Scores(queryTerms []string) []float64 {
	return c.index.ScoreAll(queryTerms)
}

// CorpusRef is a swappable reference to the active corpus snapshot,
// letting the background refresher replace it without locking readers.
type CorpusRef struct {
	v atomic.Pointer[Corpus]
}

func NewCorpusRef(c *Corpus) *CorpusRef {
	r := &CorpusRef{}
	if c == nil {
		c = NewCorpus(nil)
	}
	r.v.Store(c)
	return r
}

func (r *CorpusRef) Snapshot() *Corpus {
	return r.v.Load()
}

func (r *CorpusRef) Swap(c *Corpus) {
	if c == nil {
		c = NewCorpus(nil)
	}
	r.v.Store(c)
}
