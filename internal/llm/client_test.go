package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient(ProviderOpenAI, "k", Options{})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = NewClient("Anthropic", "k", Options{})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	_, err = NewClient("ollama", "k", Options{})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	base := errors.New("boom")

	assert.Equal(t, RateLimited, Classify("openai", 429, base).Kind)
	assert.Equal(t, Timeout, Classify("openai", 0, fmt.Errorf("wrapped: %w", context.DeadlineExceeded)).Kind)
	assert.Equal(t, ProviderUnavailable, Classify("openai", 503, base).Kind)

	pe := Classify("openai", 429, base)
	assert.Same(t, pe, Classify("other", 500, pe), "already classified errors pass through")
	assert.ErrorIs(t, pe, base)
	assert.Contains(t, pe.Error(), "status 429")

	assert.Equal(t, ErrorKind(""), KindOf(base))
}

func TestCompletionRequestClone(t *testing.T) {
	orig := &CompletionRequest{Messages: make([]ChatMessage, 1, 4)}
	orig.Messages[0] = ChatMessage{Role: RoleUser, Content: "a"}

	c := orig.Clone()
	c.Messages = append(c.Messages, ChatMessage{Role: RoleUser, Content: "b"})
	c.Messages[0].Content = "changed"

	assert.Len(t, orig.Messages, 1)
	assert.Equal(t, "a", orig.Messages[0].Content)
}

func TestFoldTurns(t *testing.T) {
	out := foldTurns([]ChatMessage{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleSystem, Content: "examples"},
		{Role: RoleUser, Content: "transcript"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "json only"},
	})

	require.Len(t, out, 3)
	assert.Equal(t, RoleUser, out[0].Role)
	assert.Equal(t, "persona\n\nexamples\n\ntranscript", out[0].Content)
	assert.Equal(t, RoleAssistant, out[1].Role)
	assert.Equal(t, "json only", out[2].Content)
}
