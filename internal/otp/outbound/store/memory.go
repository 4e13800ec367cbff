package store

import (
	"context"
	"sync"

	"github.com/oncosight/scangate/internal/otp/entity"
	"github.com/oncosight/scangate/internal/pkg/clock"
	"github.com/oncosight/scangate/internal/pkg/goerror"
	"go.uber.org/atomic"
)

// MemoryStats counts store activity for logging and tests.
type MemoryStats struct {
	Puts       atomic.Int64
	Consumes   atomic.Int64
	Mismatches atomic.Int64
	Swept      atomic.Int64
}

// Memory is a single-process Store backed by a mutex-guarded map.
//
// Entries are not expired on read; the usecase judges expiry against its own
// clock. Sweep exists so long-running processes do not accumulate abandoned
// challenges.
type Memory struct {
	clock clock.Clocker

	mu         sync.Mutex
	challenges map[entity.Key]entity.Challenge

	stats MemoryStats
}

// NewMemory constructs an in-process challenge store.
func NewMemory(clk clock.Clocker) *Memory {
	return &Memory{
		clock:      clk,
		challenges: make(map[entity.Key]entity.Challenge),
	}
}

// Put stores the challenge, replacing any pending one in the same slot.
func (m *Memory) Put(ctx context.Context, ch entity.Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.challenges[ch.Key()] = ch
	m.mu.Unlock()

	m.stats.Puts.Inc()
	return nil
}

// Get returns the pending challenge, or goerror.ErrNotFound.
func (m *Memory) Get(ctx context.Context, key entity.Key) (*entity.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	ch, ok := m.challenges[key]
	m.mu.Unlock()

	if !ok {
		return nil, goerror.ErrNotFound
	}

	return &ch, nil
}

// Consume atomically removes and returns the pending challenge.
func (m *Memory) Consume(ctx context.Context, key entity.Key) (*entity.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	ch, ok := m.challenges[key]
	if ok {
		delete(m.challenges, key)
	}
	m.mu.Unlock()

	if !ok {
		return nil, goerror.ErrNotFound
	}

	m.stats.Consumes.Inc()
	return &ch, nil
}

// Delete removes the pending challenge, if any.
func (m *Memory) Delete(ctx context.Context, key entity.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.challenges, key)
	m.mu.Unlock()

	return nil
}

// RecordMismatch increments the failed-attempt counter and returns the new count.
func (m *Memory) RecordMismatch(ctx context.Context, key entity.Key) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	ch, ok := m.challenges[key]
	if ok {
		ch.Attempts++
		m.challenges[key] = ch
	}
	m.mu.Unlock()

	if !ok {
		return 0, goerror.ErrNotFound
	}

	m.stats.Mismatches.Inc()
	return ch.Attempts, nil
}

// Sweep removes expired challenges and returns how many were dropped.
func (m *Memory) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := m.clock.Now()

	m.mu.Lock()
	dropped := 0
	for key, ch := range m.challenges {
		if ch.ExpiredAt(now) {
			delete(m.challenges, key)
			dropped++
		}
	}
	m.mu.Unlock()

	m.stats.Swept.Add(int64(dropped))
	return dropped, nil
}

// Stats returns the activity counters.
func (m *Memory) Stats() *MemoryStats {
	return &m.stats
}

// Len returns the number of pending challenges.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.challenges)
}
