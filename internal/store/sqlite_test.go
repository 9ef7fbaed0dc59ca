package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldersfive/mediator/internal/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedConversation(t *testing.T, s DataStore, title string) *model.Conversation {
	t.Helper()
	conv := &model.Conversation{Title: title}
	require.NoError(t, s.CreateConversation(context.Background(), conv))
	return conv
}

func strPtr(s string) *string { return &s }

func TestSchemaVersion(t *testing.T) {
	s := testStore(t)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(sqliteMigrations), v)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.migrate(context.Background()))
}

func TestOpenDispatch(t *testing.T) {
	ds, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer ds.Close()
	assert.IsType(t, &SQLiteStore{}, ds)

	path := t.TempDir() + "/nested/test.db"
	ds, err = Open(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	defer ds.Close()
	assert.Equal(t, path, ds.(*SQLiteStore).Path)
}

func TestConversationRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv := seedConversation(t, s, "New Conversation")
	assert.NotEmpty(t, conv.ID)

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Conversation", got.Title)
	assert.WithinDuration(t, conv.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = s.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTitleIfPlaceholder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	placeholders := []string{"New Conversation", "Direct Chat", ""}

	generic := seedConversation(t, s, "  direct chat ")
	changed, err := s.UpdateTitleIfPlaceholder(ctx, generic.ID, "Snack Wars", placeholders)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.GetConversation(ctx, generic.ID)
	require.NoError(t, err)
	assert.Equal(t, "Snack Wars", got.Title)

	// A second suggestion must not overwrite the personalised title.
	changed, err = s.UpdateTitleIfPlaceholder(ctx, generic.ID, "Charger Feud", placeholders)
	require.NoError(t, err)
	assert.False(t, changed)

	custom := seedConversation(t, s, "Our flat")
	changed, err = s.UpdateTitleIfPlaceholder(ctx, custom.ID, "Snack Wars", placeholders)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.UpdateTitleIfPlaceholder(ctx, custom.ID, "Snack Wars", nil)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMessagesNewestFirstWithSender(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	conv := seedConversation(t, s, "New Conversation")

	require.NoError(t, s.UpsertProfile(ctx, &model.Profile{UserID: "u-alice", DisplayName: "Alice", Email: "alice@example.com"}))
	require.NoError(t, s.UpsertProfile(ctx, &model.Profile{UserID: "u-bob", FullName: "Bob Builder"}))

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	inserts := []*model.Message{
		{ConversationID: conv.ID, SenderID: strPtr("u-alice"), Content: "He ate my snacks.", CreatedAt: base},
		{ConversationID: conv.ID, SenderID: strPtr("u-bob"), Content: "I only ate one pack.", CreatedAt: base.Add(time.Second)},
		{ConversationID: conv.ID, IsMediator: true, Content: `{"type":"ack"}`, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, m := range inserts {
		require.NoError(t, s.InsertMessage(ctx, m))
		assert.NotEmpty(t, m.ID)
	}

	msgs, err := s.RecentMessages(ctx, conv.ID, 20)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.True(t, msgs[0].IsMediator)
	assert.Nil(t, msgs[0].SenderID)
	assert.Nil(t, msgs[0].Sender)

	assert.Equal(t, "I only ate one pack.", msgs[1].Content)
	require.NotNil(t, msgs[1].Sender)
	assert.Equal(t, "Bob Builder", msgs[1].Sender.FullName)

	require.NotNil(t, msgs[2].Sender)
	assert.Equal(t, "Alice", msgs[2].Sender.DisplayName)
	assert.True(t, msgs[2].CreatedAt.Equal(base))

	limited, err := s.RecentMessages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.True(t, limited[0].IsMediator)
}

func TestRoomKeyInsertOnce(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	conv := seedConversation(t, s, "New Conversation")

	_, err := s.GetRoomKey(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.InsertRoomKey(ctx, conv.ID, "first"))
	assert.ErrorIs(t, s.InsertRoomKey(ctx, conv.ID, "second"), ErrKeyExists)

	key, err := s.GetRoomKey(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", key)
}

func TestRoomKeyConcurrentInsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	conv := seedConversation(t, s, "New Conversation")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.InsertRoomKey(ctx, conv.ID, string(rune('a'+i)))
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrKeyExists)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}
