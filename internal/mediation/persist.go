package mediation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eldersfive/mediator/internal/crypto"
	"github.com/eldersfive/mediator/internal/model"
	"github.com/eldersfive/mediator/internal/store"
	"github.com/eldersfive/mediator/pkg/logger"
	"github.com/eldersfive/mediator/pkg/metrics"
)

// PlaceholderTitles are the generic room titles the mediator may replace.
var PlaceholderTitles = []string{"", "New Conversation", "Direct Chat", "New ElderFives", "New Chat"}

// IsPlaceholderTitle compares trimmed and case-insensitively.
func IsPlaceholderTitle(title string) bool {
	title = strings.TrimSpace(title)
	for _, p := range PlaceholderTitles {
		if strings.EqualFold(title, p) {
			return true
		}
	}
	return false
}

// Notifier publishes room events for realtime subscribers.
type Notifier interface {
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

type nopNotifier struct{}

func (nopNotifier) PublishEvent(context.Context, *model.ConversationEvent) (uint64, error) {
	return 0, nil
}

// Sink writes mediator replies and room retitles.
type Sink struct {
	messages store.MessageStore
	rooms    store.RoomStore
	notifier Notifier
	log      *logger.Logger
	encrypt  func(plaintext, key string) (string, error)
}

// NewSink creates a Sink. notifier may be nil.
func NewSink(messages store.MessageStore, rooms store.RoomStore, notifier Notifier, log *logger.Logger) *Sink {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Sink{
		messages: messages,
		rooms:    rooms,
		notifier: notifier,
		log:      log,
		encrypt:  crypto.Encrypt,
	}
}

// Persist stores resp as a mediator message, encrypted when key is set.
// If encryption fails the reply is stored as plaintext.
func (s *Sink) Persist(ctx context.Context, conversationID string, resp *model.MediatorResponse, key string) (*model.Message, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal mediator response: %w", err)
	}

	content := string(data)
	if key != "" {
		sealed, err := s.encrypt(content, key)
		if err != nil {
			metrics.EncryptionDegraded.Inc()
			s.log.Warn("encrypting mediator message failed, storing plaintext",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		} else {
			content = sealed
		}
	}

	msg := &model.Message{
		ConversationID: conversationID,
		Content:        content,
		IsMediator:     true,
	}
	if err := s.messages.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert mediator message: %w", err)
	}

	s.notify(ctx, &model.ConversationEvent{
		ConversationID: conversationID,
		Type:           model.EventTypeMediatorMessage,
		MessageID:      msg.ID,
	})
	return msg, nil
}

// MaybeRetitle applies resp's title suggestion while the room still has a
// placeholder title. The store re-checks the placeholder condition so a
// concurrent human rename is never overwritten.
func (s *Sink) MaybeRetitle(ctx context.Context, conversationID string, resp *model.MediatorResponse, currentTitle string) (bool, error) {
	suggestion := strings.TrimSpace(resp.RoomTitleSuggestion)
	if suggestion == "" || !IsPlaceholderTitle(currentTitle) {
		return false, nil
	}

	changed, err := s.rooms.UpdateTitleIfPlaceholder(ctx, conversationID, suggestion, PlaceholderTitles)
	if err != nil {
		return false, fmt.Errorf("retitle room: %w", err)
	}
	if !changed {
		return false, nil
	}

	metrics.RoomRetitles.Inc()
	s.notify(ctx, &model.ConversationEvent{
		ConversationID: conversationID,
		Type:           model.EventTypeRetitle,
		Title:          suggestion,
	})
	return true, nil
}

func (s *Sink) notify(ctx context.Context, event *model.ConversationEvent) {
	event.ID = uuid.Must(uuid.NewV7()).String()
	event.CreatedAt = time.Now().UTC()

	if _, err := s.notifier.PublishEvent(ctx, event); err != nil {
		s.log.Warn("publishing room event failed",
			zap.String("conversation_id", event.ConversationID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}
