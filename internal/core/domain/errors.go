package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks fatal startup problems (missing chunk source,
	// unreachable vector index). Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrUpstream marks language-model, embedding or vector-index failures
	// that are recovered locally by a weaker strategy.
	ErrUpstream = errors.New("upstream service error")
	// ErrNotFound marks unresolvable chunk ids or missing image files; the
	// item is dropped from the result set, never fabricated.
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
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
