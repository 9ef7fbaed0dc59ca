package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldersfive/mediator/internal/model"
)

func testPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres integration tests")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgresRoundTrip(t *testing.T) {
	s := testPostgres(t)
	ctx := context.Background()

	userID := "u-" + uuid.NewString()
	require.NoError(t, s.UpsertProfile(ctx, &model.Profile{UserID: userID, DisplayName: "Alice"}))

	conv := &model.Conversation{Title: "Direct Chat"}
	require.NoError(t, s.CreateConversation(ctx, conv))

	require.NoError(t, s.InsertMessage(ctx, &model.Message{ConversationID: conv.ID, SenderID: &userID, Content: "hi"}))
	require.NoError(t, s.InsertMessage(ctx, &model.Message{ConversationID: conv.ID, IsMediator: true, Content: "{}"}))

	msgs, err := s.RecentMessages(ctx, conv.ID, 20)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsMediator)
	require.NotNil(t, msgs[1].Sender)
	assert.Equal(t, "Alice", msgs[1].Sender.DisplayName)

	changed, err := s.UpdateTitleIfPlaceholder(ctx, conv.ID, "Greetings", []string{"Direct Chat"})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.UpdateTitleIfPlaceholder(ctx, conv.ID, "Again", []string{"Direct Chat"})
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, s.InsertRoomKey(ctx, conv.ID, "k1"))
	assert.ErrorIs(t, s.InsertRoomKey(ctx, conv.ID, "k2"), ErrKeyExists)
	key, err := s.GetRoomKey(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "k1", key)
}
