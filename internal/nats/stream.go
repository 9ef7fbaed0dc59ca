package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/eldersfive/mediator/internal/model"
)

const (
	// StreamName is the JetStream stream holding room events.
	StreamName = "ROOMS"

	// SubjectPrefix starts every room subject.
	SubjectPrefix = "room"

	// EventRetention bounds how long subscribers can replay room events.
	EventRetention = 7 * 24 * time.Hour
)

// StreamManager publishes room events. It implements the mediation notifier.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// StreamConfig describes the ROOMS stream.
func StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Mediator messages and room retitles",
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		MaxAge:      EventRetention,
		Compression: jetstream.S2Compression,
		Duplicates:  2 * time.Minute,
	}
}

// EnsureStream creates the stream or brings an existing one up to date.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	if _, err := m.client.js.CreateOrUpdateStream(ctx, StreamConfig()); err != nil {
		return fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// EventSubject is room.<conversation>.event.<type>.
func EventSubject(conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, conversationID, eventType)
}

// RoomFilter matches every event of one room.
func RoomFilter(conversationID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, conversationID)
}

// PublishEvent stores event in the stream and returns its sequence.
// event.ID is the dedup key, so a retried publish is stored once.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	subject := EventSubject(event.ConversationID, event.Type)
	ack, err := m.client.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("publish to %s: %w", subject, err)
	}
	return ack.Sequence, nil
}
