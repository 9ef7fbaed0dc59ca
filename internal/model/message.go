package model

import (
	"time"
)

// Message represents one unit of conversation.
type Message struct {
	// Identity
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`

	// Author. SenderID is nil for mediator messages.
	SenderID   *string  `json:"sender_id"`
	Sender     *Profile `json:"sender,omitempty"`
	IsMediator bool     `json:"is_ai_mediator"`

	// Content may be ciphertext when the room has a key.
	Content string `json:"content"`

	CreatedAt time.Time `json:"created_at"`
}

// Participant is a caller-supplied participant descriptor.
type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// MediateRequest is the inbound request for one mediation call.
type MediateRequest struct {
	ConversationID string        `json:"conversationId"`
	UserMessage    string        `json:"userMessage"`
	UserName       string        `json:"userName,omitempty"`
	Participants   []Participant `json:"participants,omitempty"`
	Mode           string        `json:"mode,omitempty"`
}

// MediateResponse is the success payload of a mediation call.
type MediateResponse struct {
	Success    bool              `json:"success"`
	AIResponse *MediatorResponse `json:"aiResponse"`
}

// ErrorResponse is the failure payload returned by every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomKeyResponse is returned by the room key endpoint.
type RoomKeyResponse struct {
	ConversationID string `json:"conversation_id"`
	Key            string `json:"key"`
}
