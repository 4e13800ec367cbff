package audit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oncosight/scangate/internal/otp/entity"
	"github.com/oncosight/scangate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const insertEventSQL = `
INSERT INTO otp_audit_events (id, event_name, identity, purpose, reason, occurred_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
`

// DB writes audit events to PostgreSQL.
type DB struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

// NewDB constructs the PostgreSQL audit recorder.
func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation) *DB {
	return &DB{conn: conn, ins: ins}
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.outbound.audit").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Record inserts the event into the audit table.
func (s *DB) Record(ctx context.Context, ev entity.Event) error {
	ctx, span := s.startSpan(ctx, "Record")

	_, err := s.conn.Exec(ctx, insertEventSQL,
		ev.ID,
		ev.Name.String(),
		ev.Identity,
		ev.Purpose.String(),
		ev.Reason.String(),
		ev.At,
	)
	s.endSpan(span, err)

	if err != nil {
		return errors.Join(errors.New("audit: insert event"), err)
	}

	return nil
}
