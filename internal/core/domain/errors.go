package domain

import (
	"errors"
	"fmt"
)

// Error kinds callers test with IsKind. The HTTP layer maps them to
// status codes; the ask pipeline folds ErrCircuitOpen and
// ErrRetriesExhausted into a degraded answer instead of failing the
// request.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
	ErrCircuitOpen      = errors.New("circuit breaker is open")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
