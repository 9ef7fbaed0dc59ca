package mediation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldersfive/mediator/internal/llm"
)

func TestParseFraming(t *testing.T) {
	for mode, want := range map[string]Framing{
		"":          FramingAuto,
		"auto":      FramingAuto,
		"Debate":    FramingDebate,
		" conflict": FramingConflict,
	} {
		got, err := ParseFraming(mode)
		require.NoError(t, err, mode)
		assert.Equal(t, want, got, mode)
	}

	_, err := ParseFraming("roast")
	assert.Error(t, err)
}

func testPromptInput(framing Framing) PromptInput {
	return PromptInput{
		Transcript:   Transcript{Lines: []string{"Alice: He ate my snacks.", "Bob: I only ate one pack."}},
		Participants: []string{"Alice", "Bob"},
		Left:         "Alice",
		Right:        "Bob",
		Sender:       "Bob",
		NewMessage:   "I only ate one pack.",
		Framing:      framing,
		Model:        "gpt-4o-mini",
		Temperature:  llm.DefaultTemperature,
	}
}

func TestBuildPromptShape(t *testing.T) {
	req := BuildPrompt(testPromptInput(FramingAuto))

	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, llm.DefaultMaxTokens, req.MaxTokens)
	assert.Equal(t, llm.DefaultTemperature, req.Temperature)
	require.Len(t, req.Messages, 4)

	system := req.Messages[0]
	assert.Equal(t, llm.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "EXACTLY one JSON object")
	assert.Contains(t, system.Content, "add up to exactly 100")
	assert.Contains(t, system.Content, `"ack" | "ask" | "judgement"`)
	assert.Contains(t, system.Content, "at most 2 entries")
	assert.Contains(t, system.Content, "room_title_suggestion")

	meta := req.Messages[3]
	assert.Equal(t, llm.RoleUser, meta.Role)
	assert.Contains(t, meta.Content, "Participants: Alice, Bob\n")
	assert.Contains(t, meta.Content, "Last Sender: Bob\n")
	assert.Contains(t, meta.Content, `New Message: "I only ate one pack."`)
	assert.Contains(t, meta.Content, "Conversation (oldest->newest):\nAlice: He ate my snacks.\nBob: I only ate one pack.")
	assert.Contains(t, meta.Content, `uses the names "Alice" and "Bob"`)
}

func TestFramingOnlyChangesGuidance(t *testing.T) {
	auto := BuildPrompt(testPromptInput(FramingAuto))
	debate := BuildPrompt(testPromptInput(FramingDebate))
	conflict := BuildPrompt(testPromptInput(FramingConflict))

	assert.Contains(t, debate.Messages[2].Content, "DEBATE")
	assert.Contains(t, conflict.Messages[2].Content, "CONFLICT")
	assert.NotEqual(t, debate.Messages[2].Content, conflict.Messages[2].Content)

	for _, req := range []*llm.CompletionRequest{debate, conflict} {
		assert.Equal(t, auto.Messages[0], req.Messages[0])
		assert.Equal(t, auto.Messages[1], req.Messages[1])
		assert.Equal(t, auto.Messages[3], req.Messages[3])
	}
}

func TestStrictRetry(t *testing.T) {
	req := BuildPrompt(testPromptInput(FramingAuto))
	retry := StrictRetry(req)

	assert.Len(t, req.Messages, 4, "input request must not change")
	require.Len(t, retry.Messages, 5)
	assert.Equal(t, llm.ChatMessage{Role: llm.RoleUser, Content: StrictRetryInstruction}, retry.Messages[4])
	assert.Zero(t, retry.Temperature)
	assert.Equal(t, req.MaxTokens, retry.MaxTokens)
}
