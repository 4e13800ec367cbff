// Package ratelimit provides fixed-window request throttling.
//
// Callers depend on the Limiter interface; the concrete backend (in-process
// map or Redis) is chosen at startup. All counting is atomic per key so
// concurrent requests cannot slip past the limit.
package ratelimit
