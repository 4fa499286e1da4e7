package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Provider is one completion backend. The gateway selects an implementation
// through the model catalog and never depends on a concrete type.
type Provider interface {
	Name() string
	Complete(ctx context.Context, model string, messages []Message, maxTokens int) (Result, error)
	Close() error
}

// Error normalizes upstream failures so retry policy lives in one place.
// Status 0 means a transport-level failure (connection reset, DNS, ...).
type Error struct {
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether an error is an idempotent failure class:
// timeouts, transport errors, 408/429 and 5xx. Auth and other 4xx failures
// are fatal and must surface immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var pe *Error
	if errors.As(err, &pe) {
		switch {
		case pe.Status == 0:
			return true
		case pe.Status == 408 || pe.Status == 429:
			return true
		case pe.Status >= 500:
			return true
		}
	}
	return false
}
