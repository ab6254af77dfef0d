package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the executor what to do with a failed call:
// whether to try again, and whether the failure counts against the breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor wraps calls to the model and queue backends in retry with
// exponential backoff and a circuit breaker per named operation. What is
// retryable or breaker-worthy is each backend classifier's call.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classify ErrorClassifier,
) error {
	if fn == nil {
		return errors.New("resilience: nil operation callback")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = defaultClassifier
	}

	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, op, fn, classify)
	}
	_, err := e.breakerFor(op, classify).Execute(func() (any, error) {
		return nil, e.retry(ctx, op, fn, classify)
	})
	return err
}

func (e *Executor) retry(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classify ErrorClassifier,
) error {
	wait := e.cfg.RetryInitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !classify(err).Retryable || attempt >= e.cfg.RetryMaxAttempts {
			return err
		}

		pause := min(wait, e.cfg.RetryMaxBackoff)
		if quarter := pause / 4; quarter > 0 {
			// Shave off up to a quarter so concurrent callers spread out.
			pause -= rand.N(quarter)
		}
		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff", pause,
			"error", err,
		)
		if !sleepBetweenAttempts(ctx, pause) {
			return err
		}

		wait = min(time.Duration(float64(wait)*e.cfg.RetryMultiplier), e.cfg.RetryMaxBackoff)
	}
}

// sleepBetweenAttempts waits out the backoff, reporting false when the
// context ends first.
func sleepBetweenAttempts(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breakerFor(operation string, classify ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[any](e.breakerSettings(operation, classify))
	e.breakers[operation] = cb
	return cb
}

func (e *Executor) breakerSettings(operation string, classify ErrorClassifier) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Ratio tripping needs a minimum sample so a lone early failure
			// cannot open the breaker.
			return counts.Requests >= e.cfg.BreakerMinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change",
				"operation", name, "from", from.String(), "to", to.String())
			if e.cfg.StateListener != nil {
				e.cfg.StateListener(name, from.String(), to.String())
			}
		},
	}
}
