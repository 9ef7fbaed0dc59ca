// Package mediation runs one mediation call: it gathers and decrypts the
// room history, prompts the model, validates its judgement and stores it
// as a mediator message.
package mediation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eldersfive/mediator/internal/llm"
	"github.com/eldersfive/mediator/internal/model"
	"github.com/eldersfive/mediator/internal/store"
	"github.com/eldersfive/mediator/pkg/logger"
	"github.com/eldersfive/mediator/pkg/metrics"
	"github.com/eldersfive/mediator/pkg/tracing"
)

// ErrInvalidRequest marks client errors. Nothing is written when it is returned.
var ErrInvalidRequest = errors.New("invalid request")

// Store is what a mediation call reads and writes.
type Store interface {
	store.MessageStore
	store.RoomStore
}

// KeyLookup resolves an existing room key without creating one.
type KeyLookup interface {
	Lookup(ctx context.Context, conversationID string) (key string, ok bool, err error)
}

// Config tunes the model request and history window.
type Config struct {
	Model        string
	MaxTokens    int
	Temperature  float64
	HistoryLimit int
	Timeout      time.Duration
}

// Service handles mediation business logic.
type Service struct {
	store  Store
	keys   KeyLookup
	caller *Caller
	sink   *Sink
	cfg    Config
	log    *logger.Logger
}

// NewService creates a new mediation service. notifier may be nil.
func NewService(s Store, keys KeyLookup, client llm.Client, notifier Notifier, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &Service{
		store:  s,
		keys:   keys,
		caller: NewCaller(client, cfg.Timeout, log),
		sink:   NewSink(s, s, notifier, log),
		cfg:    cfg,
		log:    log,
	}
}

type gathered struct {
	conversation *model.Conversation
	key          string
	history      []model.Message
}

// Mediate produces and stores the mediator's reply to req.UserMessage.
// Unparseable model output yields the fallback reply; provider failures
// are returned as errors and nothing is stored. Concurrent calls for the
// same room are not serialised.
func (s *Service) Mediate(ctx context.Context, req *model.MediateRequest) (*model.MediatorResponse, error) {
	start := time.Now()

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" || strings.TrimSpace(req.UserMessage) == "" {
		metrics.MediationsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: conversationId and userMessage required", ErrInvalidRequest)
	}
	framing, err := ParseFraming(req.Mode)
	if err != nil {
		metrics.MediationsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		userName = DefaultUserName
	}

	ctx, span := tracing.Tracer("mediation").Start(ctx, "mediation.Mediate")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", conversationID),
		attribute.String("mediation.framing", framing.String()),
	)

	log := s.log.WithConversation(conversationID)
	log.Info("mediation started", zap.String("user_name", userName), zap.String("framing", framing.String()))

	g, err := s.gather(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gather failed")
		metrics.RecordMediation(OutcomeFailed.String(), time.Since(start).Seconds())
		return nil, err
	}

	names := ResolveNames(req.Participants, g.history, userName)
	left, right := Parties(names)
	transcript := BuildTranscript(g.history, g.key, req.UserMessage, userName)

	prompt := BuildPrompt(PromptInput{
		Transcript:   transcript,
		Participants: names,
		Left:         left,
		Right:        right,
		Sender:       userName,
		NewMessage:   req.UserMessage,
		Framing:      framing,
		Model:        s.cfg.Model,
		MaxTokens:    s.cfg.MaxTokens,
		Temperature:  s.cfg.Temperature,
	})

	res := s.caller.Run(ctx, prompt, left, right)
	span.SetAttributes(
		attribute.String("mediation.outcome", res.Outcome.String()),
		attribute.Int("mediation.attempts", res.Attempts),
	)
	if res.Outcome == OutcomeFailed {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "model call failed")
		metrics.RecordMediation(res.Outcome.String(), time.Since(start).Seconds())
		return nil, res.Err
	}

	msg, err := s.sink.Persist(ctx, conversationID, res.Response, g.key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		metrics.RecordMediation(OutcomeFailed.String(), time.Since(start).Seconds())
		return nil, err
	}

	if retitled, err := s.sink.MaybeRetitle(ctx, conversationID, res.Response, g.conversation.Title); err != nil {
		log.Warn("room retitle failed", zap.Error(err))
	} else if retitled {
		log.Info("room retitled", zap.String("title", res.Response.RoomTitleSuggestion))
	}

	metrics.RecordMediation(res.Outcome.String(), time.Since(start).Seconds())
	log.Info("mediation completed",
		zap.String("message_id", msg.ID),
		zap.String("outcome", res.Outcome.String()),
		zap.String("type", string(res.Response.Type)),
		zap.Int("attempts", res.Attempts),
		zap.Duration("duration", time.Since(start)),
	)
	return res.Response, nil
}

// gather loads the room, its key and its recent history concurrently.
func (s *Service) gather(ctx context.Context, conversationID string) (*gathered, error) {
	var out gathered
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		conv, err := s.store.GetConversation(egCtx, conversationID)
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}
		out.conversation = conv
		return nil
	})

	eg.Go(func() error {
		key, _, err := s.keys.Lookup(egCtx, conversationID)
		if err != nil {
			return err
		}
		out.key = key
		return nil
	})

	eg.Go(func() error {
		history, err := LoadHistory(egCtx, s.store, conversationID, s.cfg.HistoryLimit)
		if err != nil {
			return err
		}
		out.history = history
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}
