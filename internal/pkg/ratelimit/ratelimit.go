package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of a limiter check.
type Result struct {
	// Allowed is true when the request fits inside the current window.
	Allowed bool
	// Remaining is the number of requests left in the window.
	Remaining int64
	// RetryAfter is how long until the window resets. Only meaningful when
	// Allowed is false.
	RetryAfter time.Duration
}

// Limiter throttles requests per key using a fixed window.
//
// Allow counts the request and reports whether it is admitted. A denied
// request is not counted against future windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
