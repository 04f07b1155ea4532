package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chatshare/internal/model"
)

const (
	// StreamName is the name of the conversation events stream.
	StreamName = "CHATSHARE"

	// SubjectPrefix is the prefix for all conversation event subjects.
	SubjectPrefix = "chatshare.conversation"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the events stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Conversation lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an event type.
func EventSubject(eventType model.EventType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

// PublishEvent publishes an event to JetStream and returns its stream sequence.
// The event ID doubles as the message ID so JetStream drops duplicates.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, EventSubject(event.Type), data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}
