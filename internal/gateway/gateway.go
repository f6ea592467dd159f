// Package gateway defines the boundary to the hosted language-model service.
//
// The rest of the application only sees the Completer interface. The concrete
// backends (openai, gemini) live in subpackages and are chosen at wire-up
// time from config — swapping the LLM provider touches nothing outside the
// composition root.
//
// FAILURE CONTRACT:
// Every backend error is a *Error carrying a transient/permanent flag. The
// caller (ChatService) treats ALL gateway failures as recoverable: it
// substitutes a canned fallback reply rather than surfacing the error to the
// end user. The flag exists for logging and for the timeout path, which is
// always transient.
package gateway

import (
	"context"
	"fmt"
)

// Options are the sampling parameters passed to the model.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Completer sends a prompt to a hosted language model and returns the reply.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Error is the only error type backends return.
type Error struct {
	Transient bool
	Message   string
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("gateway: %s: %s", kind, e.Message)
}

// Transient builds a retriable gateway error (network issues, timeouts,
// rate limits, 5xx responses).
func Transient(format string, args ...any) *Error {
	return &Error{Transient: true, Message: fmt.Sprintf(format, args...)}
}

// Permanent builds a non-retriable gateway error (bad API key, invalid
// model name, rejected request).
func Permanent(format string, args ...any) *Error {
	return &Error{Transient: false, Message: fmt.Sprintf(format, args...)}
}
