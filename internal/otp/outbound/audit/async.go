package audit

import (
	"context"
	"log/slog"

	"github.com/oncosight/scangate/internal/otp/entity"
	"github.com/oncosight/scangate/internal/pkg/goroutine"
)

// Async records events off the request path.
//
// The wrapped recorder runs on a detached context so audit writes survive the
// client disconnecting; failures are logged, never surfaced.
type Async struct {
	inner Recorder
	gr    *goroutine.Manager
}

// NewAsync wraps a recorder with background execution.
func NewAsync(inner Recorder, gr *goroutine.Manager) *Async {
	return &Async{inner: inner, gr: gr}
}

// Record schedules the event write and returns immediately.
func (a *Async) Record(ctx context.Context, ev entity.Event) error {
	a.gr.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if err := a.inner.Record(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "failed to record audit event", "event", ev.Name.String(), "error", err)
		}
		return nil
	})

	return nil
}
