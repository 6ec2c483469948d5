package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a rate check. A rejected decision carries the
// time remaining until the requestor's window frees up.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Allow is the decision for an admitted request.
var Allow = Decision{Allowed: true}

// Reject builds a rejection with the given retry hint.
func Reject(retryAfter time.Duration) Decision {
	return Decision{RetryAfter: retryAfter}
}

// Limiter gates requests per requestor over a sliding window. Check both
// tests and reserves: an allowed decision has already counted the request
// against the requestor's window.
type Limiter interface {
	Check(ctx context.Context, requestorID string) Decision
}
