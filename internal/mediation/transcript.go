package mediation

import (
	"context"
	"fmt"
	"strings"

	"github.com/eldersfive/mediator/internal/crypto"
	"github.com/eldersfive/mediator/internal/model"
	"github.com/eldersfive/mediator/internal/store"
)

const (
	// MediatorLabel is the speaker name of mediator lines.
	MediatorLabel = "TheFiveElders"

	// DefaultHistoryLimit is how many stored messages feed one prompt.
	DefaultHistoryLimit = 20
)

// Transcript is the labelled conversation handed to the model.
type Transcript struct {
	// Lines are "<speaker>: <content>", oldest first.
	Lines []string
	// History is the stored messages the lines were built from, oldest first.
	History []model.Message
}

// Text renders the transcript as one block.
func (t Transcript) Text() string {
	return strings.Join(t.Lines, "\n")
}

// LoadHistory fetches the newest limit messages of a room and returns them
// oldest first.
func LoadHistory(ctx context.Context, s store.MessageStore, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	msgs, err := s.RecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// BuildTranscript labels and decrypts history, then appends the incoming
// message unless it is already the last line.
func BuildTranscript(history []model.Message, key, newMessage, senderName string) Transcript {
	lines := make([]string, 0, len(history)+1)
	for _, m := range history {
		lines = append(lines, formatLine(speakerLabel(m), crypto.Decrypt(m.Content, key)))
	}

	candidate := formatLine(senderName, newMessage)
	if len(lines) == 0 || lines[len(lines)-1] != candidate {
		lines = append(lines, candidate)
	}

	return Transcript{Lines: lines, History: history}
}

func speakerLabel(m model.Message) string {
	if m.IsMediator {
		return MediatorLabel
	}
	return senderName(m)
}

func formatLine(speaker, content string) string {
	return speaker + ": " + content
}
