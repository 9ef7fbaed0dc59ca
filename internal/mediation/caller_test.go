package mediation

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldersfive/mediator/internal/llm"
	"github.com/eldersfive/mediator/internal/model"
)

const validReply = `{"type":"judgement","text":"Bob owes Alice a snack.","win_meter":{"left":{"name":"Alice","score":70},"right":{"name":"Bob","score":30}},"actions":[{"who":"Bob","action":"Buy a new pack"}]}`

func testRequest() *llm.CompletionRequest {
	return BuildPrompt(testPromptInput(FramingAuto))
}

func TestCallerParsesFirstReply(t *testing.T) {
	client := script(reply{content: validReply})

	res := NewCaller(client, time.Second, nil).Run(context.Background(), testRequest(), "Alice", "Bob")

	assert.Equal(t, OutcomeParsed, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 70, res.Response.WinMeter.Left.Score)
	assert.Equal(t, 1, client.calls())
}

func TestCallerRetriesStrictlyOnce(t *testing.T) {
	client := script(reply{content: "Alice is right, obviously."}, reply{content: validReply})

	res := NewCaller(client, time.Second, nil).Run(context.Background(), testRequest(), "Alice", "Bob")

	assert.Equal(t, OutcomeParsed, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	require.Equal(t, 2, client.calls())

	first, retry := client.requests[0], client.requests[1]
	assert.Equal(t, llm.DefaultTemperature, first.Temperature)
	assert.Zero(t, retry.Temperature)
	assert.Len(t, retry.Messages, len(first.Messages)+1)
	assert.Equal(t, StrictRetryInstruction, retry.Messages[len(retry.Messages)-1].Content)
}

func TestCallerFallsBackAfterTwoBadReplies(t *testing.T) {
	client := script(reply{content: "nope"}, reply{content: `{"type":"shrug"}`}, reply{content: validReply})

	res := NewCaller(client, time.Second, nil).Run(context.Background(), testRequest(), "Alice", "Bob")

	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, client.calls(), "no third call")
	assert.Equal(t, FallbackResponse("Alice", "Bob"), res.Response)
}

func TestCallerProviderErrorNeverFallsBack(t *testing.T) {
	providerErr := &llm.ProviderError{Kind: llm.RateLimited, Provider: "scripted", StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")}
	client := script(reply{err: providerErr}, reply{content: validReply})

	res := NewCaller(client, time.Second, nil).Run(context.Background(), testRequest(), "Alice", "Bob")

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Nil(t, res.Response)
	assert.Equal(t, llm.RateLimited, llm.KindOf(res.Err))
	assert.Equal(t, 1, client.calls())
}

func TestCallerProviderErrorOnRetry(t *testing.T) {
	client := script(reply{content: "not json"}, reply{err: errors.New("connection reset")})

	res := NewCaller(client, time.Second, nil).Run(context.Background(), testRequest(), "Alice", "Bob")

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, llm.ProviderUnavailable, llm.KindOf(res.Err))
}

type blockingClient struct{}

func (blockingClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingClient) Name() string { return "blocking" }

func TestCallerTimeout(t *testing.T) {
	res := NewCaller(blockingClient{}, 20*time.Millisecond, nil).Run(context.Background(), testRequest(), "Alice", "Bob")

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, llm.Timeout, llm.KindOf(res.Err))
}

// Every raw reply, however broken, ends in a well-formed response.
func TestCallerAlwaysProducesValidResponse(t *testing.T) {
	garbage := []string{
		"",
		"null",
		"{",
		"}{",
		`{"type":"ack"}`,
		`{"type":"judgement","text":"x","win_meter":{"left":{"score":-40},"right":{"score":900}}}`,
		`{"type":"ask","text":"?","win_meter":"fifty-fifty"}`,
		"```json\n{\"type\":\"ack\",\"text\":\"ok\",\"win_meter\":{\"left\":{\"score\":\"NaN\"}}}\n```",
		"\x00\xff\xfe",
	}

	for _, raw := range garbage {
		client := script(reply{content: raw}, reply{content: raw})
		res := NewCaller(client, time.Second, nil).Run(context.Background(), testRequest(), "Alice", "Bob")

		require.NotEqual(t, OutcomeFailed, res.Outcome, raw)
		r := res.Response
		require.NotNil(t, r, raw)
		assert.True(t, r.Type.Valid(), raw)
		assert.NotEmpty(t, r.Text, raw)
		assert.Equal(t, 100, r.WinMeter.Left.Score+r.WinMeter.Right.Score, raw)
		assert.GreaterOrEqual(t, r.WinMeter.Left.Score, 0, raw)
		assert.GreaterOrEqual(t, r.WinMeter.Right.Score, 0, raw)
		assert.LessOrEqual(t, len(r.Actions), MaxActions, raw)
		if r.Type != model.TypeAsk {
			assert.Empty(t, r.Clarify, raw)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "parsed", OutcomeParsed.String())
	assert.Equal(t, "fallback", OutcomeFallback.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
