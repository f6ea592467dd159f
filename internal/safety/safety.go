// Package safety is the boundary to the link/content safety checker used by
// scam-check mode. Like the completion gateway, it is an independent external
// collaborator with a fallback-on-failure contract: if the checker is down
// or misconfigured, the chat flow proceeds without a verdict rather than
// failing the request.
package safety

import "context"

// Result is a safety verdict for a candidate URL or text.
type Result struct {
	Unsafe bool
	Reason string
}

// Checker checks a candidate URL or message for scam/phishing signals.
type Checker interface {
	Check(ctx context.Context, candidate string) (Result, error)
}
