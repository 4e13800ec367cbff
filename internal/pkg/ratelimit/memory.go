package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oncosight/scangate/internal/pkg/clock"
)

// ErrLimitConfig is returned when the limit or window is not positive.
var ErrLimitConfig = errors.New("ratelimit: limit and window must be positive")

type window struct {
	count int64
	reset time.Time
}

// Memory is an in-process fixed-window Limiter.
//
// Windows are pruned lazily: an expired entry is replaced the next time its
// key is checked, so no background goroutine is required.
type Memory struct {
	limit  int64
	window time.Duration
	clock  clock.Clocker

	mu      sync.Mutex
	windows map[string]*window
}

// NewMemory constructs an in-process limiter.
func NewMemory(limit int64, windowDur time.Duration, clk clock.Clocker) (*Memory, error) {
	if limit <= 0 || windowDur <= 0 {
		return nil, ErrLimitConfig
	}

	return &Memory{
		limit:   limit,
		window:  windowDur,
		clock:   clk,
		windows: make(map[string]*window),
	}, nil
}

// Allow counts a request against the key's current window.
func (m *Memory) Allow(ctx context.Context, key string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.reset) {
		m.windows[key] = &window{count: 1, reset: now.Add(m.window)}
		return Result{Allowed: true, Remaining: m.limit - 1}, nil
	}

	if w.count >= m.limit {
		return Result{Allowed: false, Remaining: 0, RetryAfter: w.reset.Sub(now)}, nil
	}

	w.count++
	return Result{Allowed: true, Remaining: m.limit - w.count}, nil
}

// Sweep removes expired windows and returns how many were dropped.
func (m *Memory) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for key, w := range m.windows {
		if !now.Before(w.reset) {
			delete(m.windows, key)
			dropped++
		}
	}

	return dropped, nil
}
