package notification

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/metrics"
)

// Sink accepts events for delivery.
type Sink interface {
	Emit(ctx context.Context, evt Event) error
}

// Publisher is the part of kafka.Producer a KafkaSink needs.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, ce kafka.CloudEvent) error
}

// KafkaSink publishes each event as a CloudEvent keyed by recipient.
type KafkaSink struct {
	publisher Publisher
	source    string
	topic     string
}

// NewKafkaSink creates a KafkaSink publishing to TopicAdoptionEvents.
func NewKafkaSink(publisher Publisher, source string) *KafkaSink {
	return &KafkaSink{publisher: publisher, source: source, topic: TopicAdoptionEvents}
}

// Emit publishes evt.
func (s *KafkaSink) Emit(ctx context.Context, evt Event) error {
	ce, err := kafka.NewCloudEvent(s.source, evt.Type.CloudEventType(), evt)
	if err != nil {
		return err
	}
	ce.Subject = evt.RecipientID.String()
	if err := s.publisher.PublishEvent(ctx, s.topic, ce); err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}
	return nil
}

// LogSink writes events to the log. It stands in for Kafka when publishing
// is disabled.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit logs evt.
func (s *LogSink) Emit(_ context.Context, evt Event) error {
	s.logger.Info("notification",
		zap.String("type", string(evt.Type)),
		zap.String("recipient_id", evt.RecipientID.String()),
		zap.String("pet_id", evt.Payload.PetID.String()),
		zap.String("adoption_id", evt.Payload.AdoptionID.String()),
	)
	return nil
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Emit calls return err without recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Emit records evt.
func (r *Recorder) Emit(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, evt)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, evt := range r.Events() {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Dispatcher sends events through a Sink after a transition has committed.
// Delivery failures are logged and counted; they are never returned.
type Dispatcher struct {
	sink    Sink
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher. m may be nil.
func NewDispatcher(sink Sink, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, metrics: m, logger: logger}
}

// Dispatch emits each event in order.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) {
	for _, evt := range events {
		if err := d.sink.Emit(ctx, evt); err != nil {
			d.logger.Error("failed to emit notification",
				zap.String("type", string(evt.Type)),
				zap.String("recipient_id", evt.RecipientID.String()),
				zap.String("adoption_id", evt.Payload.AdoptionID.String()),
				zap.Error(err),
			)
			if d.metrics != nil {
				d.metrics.NotificationFailures.WithLabelValues(string(evt.Type)).Inc()
			}
			continue
		}
		if d.metrics != nil {
			d.metrics.NotificationsSent.WithLabelValues(string(evt.Type)).Inc()
		}
	}
}
