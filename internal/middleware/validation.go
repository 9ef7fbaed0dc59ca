package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/eldersfive/mediator/internal/model"
)

const (
	maxMessageBytes  = 100000
	maxUserNameRunes = 128
	maxParticipants  = 16
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) > maxMessageBytes {
		return errors.New("userMessage exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("userMessage must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateUserName validates the caller-supplied display name.
func ValidateUserName(name string) error {
	if utf8.RuneCountInString(name) > maxUserNameRunes {
		return errors.New("userName exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("userName must be valid UTF-8")
	}
	return nil
}

// ValidateParticipants bounds the explicit participant list.
func ValidateParticipants(participants []model.Participant) error {
	if len(participants) > maxParticipants {
		return errors.New("too many participants")
	}
	for _, p := range participants {
		if err := ValidateUserName(p.DisplayName); err != nil {
			return errors.New("participant display_name is invalid")
		}
		if err := ValidateUserName(p.FullName); err != nil {
			return errors.New("participant full_name is invalid")
		}
	}
	return nil
}

// ValidateMediateRequest checks the shape of a mediation request. Presence
// of the required fields is checked by the mediation service.
func ValidateMediateRequest(req *model.MediateRequest) error {
	if req.ConversationID != "" {
		if err := ValidateConversationID(req.ConversationID); err != nil {
			return err
		}
	}
	if err := ValidateMessageContent(req.UserMessage); err != nil {
		return err
	}
	if err := ValidateUserName(req.UserName); err != nil {
		return err
	}
	return ValidateParticipants(req.Participants)
}
