package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// StreamName is the JetStream stream holding every pipeline event
const StreamName = "TRENDLOOP"

// Event subjects
const (
	SubjectPostPublished = "post.published"
	SubjectPostGenerated = "post.generated"
	SubjectTaskRun       = "task.run"
	SubjectAlertRaised   = "alert.raised"
)

var streamSubjects = []string{"post.*", "task.*", "alert.*"}

// Event is the envelope of every published message
type Event struct {
	ID        string          `json:"id"`
	Subject   string          `json:"subject"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher emits pipeline events
type Publisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

// NopEvents discards every event; used when NATS_URL is empty
type NopEvents struct{}

// Publish implements Publisher
func (NopEvents) Publish(context.Context, string, interface{}) error { return nil }

// EventService publishes and consumes pipeline events over JetStream
type EventService struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewEventService creates a new event service
func NewEventService(js nats.JetStreamContext, logger *zap.Logger) *EventService {
	return &EventService{
		js:     js,
		logger: logger.Named("events"),
	}
}

// Connect dials url, ensures the stream exists and returns the service with
// a function closing the connection
func Connect(url string, logger *zap.Logger) (*EventService, func(), error) {
	nc, err := nats.Connect(url, nats.Name("trendloop"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream(nats.MaxWait(5 * time.Second))
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	s := NewEventService(js, logger)
	if err := s.EnsureStream(); err != nil {
		nc.Close()
		return nil, nil, err
	}
	return s, nc.Close, nil
}

// EnsureStream creates the TRENDLOOP stream if it does not exist
func (s *EventService) EnsureStream() error {
	_, err := s.js.StreamInfo(StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	_, err = s.js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  streamSubjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    30 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	s.logger.Info("Stream created", zap.String("stream", StreamName))
	return nil
}

// Publish wraps payload in an Event and publishes it on subject
func (s *EventService) Publish(ctx context.Context, subject string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := Event{
		ID:        uuid.New().String(),
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := s.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		s.logger.Error("Failed to publish event",
			zap.String("subject", subject),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	s.logger.Debug("Event published",
		zap.String("subject", subject),
		zap.String("event_id", event.ID))
	return nil
}

// Subscribe delivers every event on subject to handler until ctx is done
func (s *EventService) Subscribe(ctx context.Context, subject string, handler func(Event)) error {
	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.logger.Error("Failed to unmarshal event", zap.Error(err))
			_ = msg.Term()
			return
		}

		handler(event)
		_ = msg.Ack()
	}, nats.ManualAck())
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()

	return nil
}
