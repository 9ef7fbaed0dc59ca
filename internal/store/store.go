// Package store provides persistence for conversations, messages and room keys.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/eldersfive/mediator/internal/model"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrKeyExists is returned when a room already has a key.
	ErrKeyExists = errors.New("room key already exists")
)

// MessageStore reads and appends conversation messages.
type MessageStore interface {
	// RecentMessages returns up to limit messages, newest first, with sender profiles.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	// InsertMessage appends a message, filling ID and CreatedAt when empty.
	InsertMessage(ctx context.Context, msg *model.Message) error
}

// RoomStore reads rooms and applies guarded title updates.
type RoomStore interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	// UpdateTitleIfPlaceholder sets title only while the stored title is one
	// of placeholders (compared trimmed and case-insensitively). It reports
	// whether a row changed.
	UpdateTitleIfPlaceholder(ctx context.Context, id, title string, placeholders []string) (bool, error)
}

// KeyStore holds one symmetric key per room.
type KeyStore interface {
	// GetRoomKey returns ErrNotFound when the room has no key.
	GetRoomKey(ctx context.Context, conversationID string) (string, error)
	// InsertRoomKey returns ErrKeyExists when a key was already stored.
	InsertRoomKey(ctx context.Context, conversationID, key string) error
}

// DataStore is implemented by PostgresStore and SQLiteStore.
type DataStore interface {
	MessageStore
	RoomStore
	KeyStore

	CreateConversation(ctx context.Context, conv *model.Conversation) error
	UpsertProfile(ctx context.Context, p *model.Profile) error

	Ping(ctx context.Context) error
	Close() error
}

// Open selects a backend from the URL scheme. postgres:// and postgresql://
// use Postgres; sqlite:// paths, bare paths and ":memory:" use SQLite.
func Open(ctx context.Context, databaseURL string) (DataStore, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgresStore(ctx, databaseURL)
	case databaseURL == ":memory:":
		return OpenMemory(ctx)
	default:
		return NewSQLiteStore(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
	}
}

func normalizePlaceholders(placeholders []string) []string {
	out := make([]string, len(placeholders))
	for i, p := range placeholders {
		out[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return out
}
