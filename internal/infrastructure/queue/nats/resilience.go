package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/infrastructure/resilience"
)

// classifyNATSError decides retry and breaker treatment for publishes on
// both lifecycle subjects.
func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		// The client buffers publishes while reconnecting; a full buffer
		// clears once the connection is back, so waiting out a backoff can
		// succeed.
		errors.Is(err, nats.ErrReconnectBufExceeded):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// wrapTemporaryIfNeeded marks retryable publish failures as
// domain.ErrTemporary, naming the subject so the two event streams stay
// distinguishable in logs.
func wrapTemporaryIfNeeded(subject string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if class := classifyNATSError(err); class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "publish "+subject, err)
	}
	return err
}
