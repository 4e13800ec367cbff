// Package audit records challenge lifecycle events.
//
// The trail is best effort: a failed audit write never fails the request that
// produced it.
package audit

import (
	"context"
	"errors"

	"github.com/oncosight/scangate/internal/otp/entity"
)

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, ev entity.Event) error
}

// Multi fans an event out to several recorders.
type Multi struct {
	recorders []Recorder
}

// NewMulti builds a fan-out recorder. Nil entries are skipped.
func NewMulti(recorders ...Recorder) *Multi {
	rs := make([]Recorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			rs = append(rs, r)
		}
	}

	return &Multi{recorders: rs}
}

// Record delivers the event to every recorder and joins their errors.
func (m *Multi) Record(ctx context.Context, ev entity.Event) error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Noop discards events. Used when no audit backend is configured.
type Noop struct{}

// Record discards the event.
func (Noop) Record(context.Context, entity.Event) error {
	return nil
}
