// Package clock provides a tiny time abstraction.
//
// Code that judges challenge expiry or rate-limit windows should depend on the
// Clocker interface instead of calling time.Now() directly, so tests can swap
// in a fake clock and make expiry deterministic.
package clock
