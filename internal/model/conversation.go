// Package model defines data structures for the mediation service.
package model

import (
	"time"
)

// Conversation represents a room shared by two or more participants.
type Conversation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	InviteCode string    `json:"invite_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Profile is the public identity of a human participant.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// RoomKey is the symmetric secret bound to a conversation.
type RoomKey struct {
	ConversationID string    `json:"conversation_id"`
	Key            string    `json:"key"`
	CreatedAt      time.Time `json:"created_at"`
}
