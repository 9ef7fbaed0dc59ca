package mediation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eldersfive/mediator/internal/crypto"
	"github.com/eldersfive/mediator/internal/keyring"
	"github.com/eldersfive/mediator/internal/llm"
	"github.com/eldersfive/mediator/internal/model"
	"github.com/eldersfive/mediator/internal/store"
)

// reply is one scripted model answer: content, or err when set.
type reply struct {
	content string
	err     error
}

// scriptedClient returns replies in order and records every request.
type scriptedClient struct {
	mu       sync.Mutex
	replies  []reply
	requests []*llm.CompletionRequest
}

func script(replies ...reply) *scriptedClient {
	return &scriptedClient{replies: replies}
}

func (c *scriptedClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req.Clone())
	if len(c.replies) == 0 {
		return &llm.CompletionResponse{Content: "out of script"}, nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &llm.CompletionResponse{Content: r.content, Model: "test-model", TokensIn: 10, TokensOut: 5}, nil
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// recordingNotifier captures published events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []model.ConversationEvent
}

func (n *recordingNotifier) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, *event)
	return uint64(len(n.events)), nil
}

type fixture struct {
	store    *store.SQLiteStore
	keys     *keyring.Keyring
	notifier *recordingNotifier
	roomID   string
	alice    string
	bob      string
}

func newFixture(t *testing.T, title string) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	conv := &model.Conversation{Title: title}
	require.NoError(t, s.CreateConversation(ctx, conv))

	f := &fixture{
		store:    s,
		keys:     keyring.New(s),
		notifier: &recordingNotifier{},
		roomID:   conv.ID,
		alice:    "u-alice",
		bob:      "u-bob",
	}
	require.NoError(t, s.UpsertProfile(ctx, &model.Profile{UserID: f.alice, DisplayName: "Alice"}))
	require.NoError(t, s.UpsertProfile(ctx, &model.Profile{UserID: f.bob, FullName: "Bob"}))
	return f
}

// say stores a human message, encrypting it when key is set.
func (f *fixture) say(t *testing.T, senderID, content, key string) {
	t.Helper()
	if key != "" {
		sealed, err := crypto.Encrypt(content, key)
		require.NoError(t, err)
		content = sealed
	}
	id := senderID
	require.NoError(t, f.store.InsertMessage(context.Background(), &model.Message{
		ConversationID: f.roomID,
		SenderID:       &id,
		Content:        content,
	}))
}

func (f *fixture) mediatorMessages(t *testing.T) []model.Message {
	t.Helper()
	msgs, err := f.store.RecentMessages(context.Background(), f.roomID, 100)
	require.NoError(t, err)

	var out []model.Message
	for _, m := range msgs {
		if m.IsMediator {
			out = append(out, m)
		}
	}
	return out
}
