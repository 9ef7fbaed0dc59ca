package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeMediatorMessage EventType = "mediator_message"
	EventTypeRetitle         EventType = "retitle"
)

// ConversationEvent is published after the mediator changes a room.
type ConversationEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Type           EventType `json:"type"`
	MessageID      string    `json:"message_id,omitempty"`
	Title          string    `json:"title,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
