package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oncosight/scangate/internal/otp/entity"
	"github.com/oncosight/scangate/internal/pkg/instrument"
	"github.com/oncosight/scangate/internal/pkg/messaging"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTopic is the event stream destination when none is configured.
const DefaultTopic = "scangate.otp.events"

type streamEvent struct {
	ID         int64  `json:"id,string"`
	Event      string `json:"event"`
	Identity   string `json:"identity"`
	Purpose    string `json:"purpose"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// Stream publishes audit events to the message broker.
//
// Publishes retry with exponential backoff; brokers drop connections during
// rollouts and a couple of retries rides that out.
type Stream struct {
	pub   messaging.Publisher
	topic string
	ins   instrument.Instrumentation
}

// NewStream constructs the broker audit recorder.
func NewStream(pub messaging.Publisher, topic string, ins instrument.Instrumentation) *Stream {
	if topic == "" {
		topic = DefaultTopic
	}

	return &Stream{pub: pub, topic: topic, ins: ins}
}

func (s *Stream) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.outbound.audit").Start(ctx, name)
}

// Record publishes the event to the stream topic.
func (s *Stream) Record(ctx context.Context, ev entity.Event) error {
	ctx, span := s.startSpan(ctx, "RecordStream")
	defer span.End()

	body, err := json.Marshal(streamEvent{
		ID:         ev.ID,
		Event:      ev.Name.String(),
		Identity:   ev.Identity,
		Purpose:    ev.Purpose.String(),
		Reason:     ev.Reason.String(),
		OccurredAt: ev.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, perr := s.pub.Publish(ctx, s.topic, messaging.OutgoingMessage{
			Key:  []byte(ev.Identity),
			Body: body,
		})
		if perr != nil {
			return retry.RetryableError(perr)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("audit: publish event: %w", err)
	}

	return nil
}
