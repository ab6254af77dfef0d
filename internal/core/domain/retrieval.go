package domain

// RetrievalMode reports how a retrieval request was satisfied.
type RetrievalMode string

const (
	// ModeFull means the full search pipeline ran against the backends.
	ModeFull RetrievalMode = "full"
	// ModeCache means the result was served from the query cache.
	ModeCache RetrievalMode = "cache"
	// ModeError means every attempt failed and Passages is empty.
	ModeError RetrievalMode = "error"
)

// SearchFilter restricts retrieval to passages whose metadata matches
// every key/value pair.
type SearchFilter map[string]string

// RetrievalResult is the typed outcome of a retrieval request. Err is
// set only when Mode is ModeError; callers degrade, they never crash.
type RetrievalResult struct {
	Passages []Passage     `json:"passages"`
	Mode     RetrievalMode `json:"mode"`
	Err      error         `json:"-"`
}

// ScoredPassage pairs a passage with a relevance score, either the
// fused retrieval score or a cross-encoder score depending on stage.
type ScoredPassage struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}

// Citation points a reader at the passage an answer drew from. Snippet
// is truncated, not the full passage text.
type Citation struct {
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Section string `json:"section,omitempty"`
	Snippet string `json:"snippet"`
}

type Answer struct {
	Text     string        `json:"text"`
	Sources  []Citation    `json:"sources"`
	CacheHit bool          `json:"cache_hit"`
	Mode     RetrievalMode `json:"mode"`
}

// CacheStats is a point-in-time snapshot of the query cache counters.
type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}
