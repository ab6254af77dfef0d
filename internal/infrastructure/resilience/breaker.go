package resilience

import (
	"log/slog"
	"sync"
	"time"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. The count persists across state changes and resets only
	// on success.
	FailureThreshold int
	// OpenTimeout is how long the breaker rejects before letting a
	// probe through.
	OpenTimeout time.Duration
	// SuccessThreshold is the consecutive half-open successes needed
	// to close.
	SuccessThreshold int
	// OnStateChange is invoked under the breaker lock on every
	// transition.
	OnStateChange func(from, to BreakerState)
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      60 * time.Second,
		SuccessThreshold: 2,
	}
}

func (c BreakerConfig) normalize() BreakerConfig {
	out := c
	def := DefaultBreakerConfig()

	if out.FailureThreshold <= 0 {
		out.FailureThreshold = def.FailureThreshold
	}
	if out.OpenTimeout <= 0 {
		out.OpenTimeout = def.OpenTimeout
	}
	if out.SuccessThreshold <= 0 {
		out.SuccessThreshold = def.SuccessThreshold
	}
	return out
}

// Breaker is a consecutive-failure circuit breaker for the retrieval
// backends. Unlike the ratio-tripped Executor breaker, it counts
// consecutive failures, keeps the count alive through the open period,
// and applies the same failure rule half-open as closed, so a failed
// probe after an outage normally re-opens at once.
type Breaker struct {
	cfg BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time

	now func() time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{
		cfg:   cfg.normalize(),
		state: StateClosed,
		now:   time.Now,
	}
}

// Do runs fn under the breaker. While open it rejects with
// domain.ErrCircuitOpen without invoking fn until OpenTimeout has
// elapsed since the last failure. The lock is held across fn, so
// callers of a guarded backend are serialized.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) <= b.cfg.OpenTimeout {
			return domain.ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.successes = 0
	}

	if err := fn(); err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

// Execute runs fn under b, passing its value through on success.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Do(func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (b *Breaker) onSuccess() {
	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
			b.successes = 0
		}
	}
}

func (b *Breaker) onFailure() {
	b.failures++
	b.lastFailure = b.now()
	if b.failures >= b.cfg.FailureThreshold {
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	slog.Warn("circuit_breaker_state_change", "from", from.String(), "to", to.String())
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// State reports the current state. It does not advance the open-timeout
// check; only Do does that.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
