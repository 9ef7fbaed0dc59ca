// Package keyring manages the lazily created symmetric key of each room.
package keyring

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eldersfive/mediator/internal/crypto"
	"github.com/eldersfive/mediator/internal/store"
	"github.com/eldersfive/mediator/pkg/logger"
	"github.com/eldersfive/mediator/pkg/metrics"
)

// Keyring resolves room keys from the key store, optionally through a cache.
type Keyring struct {
	store    store.KeyStore
	cache    Cache
	log      *logger.Logger
	generate func() (string, error)
}

// Option configures a Keyring.
type Option func(*Keyring)

// WithCache enables a read-through cache in front of the key store.
func WithCache(c Cache) Option {
	return func(k *Keyring) {
		if c != nil {
			k.cache = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(k *Keyring) {
		if l != nil {
			k.log = l
		}
	}
}

// New creates a Keyring backed by s.
func New(s store.KeyStore, opts ...Option) *Keyring {
	k := &Keyring{
		store:    s,
		cache:    nopCache{},
		log:      logger.NewNop(),
		generate: crypto.GenerateKey,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Lookup returns the room key without creating one. ok is false when the
// room has no key, in which case its content is plaintext.
func (k *Keyring) Lookup(ctx context.Context, conversationID string) (string, bool, error) {
	if key, ok := k.cache.Get(ctx, conversationID); ok {
		return key, true, nil
	}

	key, err := k.store.GetRoomKey(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup room key: %w", err)
	}

	k.remember(ctx, conversationID, key)
	return key, true, nil
}

// Ensure returns the room key, creating it if the room has none. Racing
// callers converge on the key of whichever insert landed first.
func (k *Keyring) Ensure(ctx context.Context, conversationID string) (string, error) {
	key, ok, err := k.Lookup(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if ok {
		return key, nil
	}

	candidate, err := k.generate()
	if err != nil {
		return "", err
	}

	err = k.store.InsertRoomKey(ctx, conversationID, candidate)
	switch {
	case err == nil:
		metrics.RoomKeysCreated.WithLabelValues("created").Inc()
		k.log.Info("room key created", zap.String("conversation_id", conversationID))
		k.remember(ctx, conversationID, candidate)
		return candidate, nil

	case errors.Is(err, store.ErrKeyExists):
		metrics.RoomKeysCreated.WithLabelValues("adopted").Inc()
		winner, err := k.store.GetRoomKey(ctx, conversationID)
		if err != nil {
			return "", fmt.Errorf("re-read room key: %w", err)
		}
		k.log.Debug("room key adopted from concurrent creator", zap.String("conversation_id", conversationID))
		k.remember(ctx, conversationID, winner)
		return winner, nil

	default:
		return "", fmt.Errorf("create room key: %w", err)
	}
}

func (k *Keyring) remember(ctx context.Context, conversationID, key string) {
	if err := k.cache.Add(ctx, conversationID, key); err != nil {
		k.log.Warn("room key cache write failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
}
