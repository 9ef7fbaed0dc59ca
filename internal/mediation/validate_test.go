package mediation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldersfive/mediator/internal/model"
)

func TestParseResponseRepairsScoreSum(t *testing.T) {
	raw := `{"type":"judgement","text":"Bob ate the snacks.","win_meter":{"left":{"name":"Alice","score":70},"right":{"name":"Bob","score":35}}}`

	resp, err := ParseResponse(raw, "Alice", "Bob")
	require.NoError(t, err)
	assert.Equal(t, model.TypeJudgement, resp.Type)
	assert.Equal(t, 67, resp.WinMeter.Left.Score)
	assert.Equal(t, 33, resp.WinMeter.Right.Score)
	assert.Equal(t, "Alice", resp.WinMeter.Left.Name)
	assert.NotNil(t, resp.Actions)
}

func TestRescaleScores(t *testing.T) {
	tests := []struct {
		l, r        float64
		left, right  int
	}{
		{60, 40, 60, 40},
		{70, 35, 67, 33},
		{150, -5, 100, 0},
		{0, 0, 50, 50},
		{10, 10, 50, 50},
		{33.3, 66.7, 33, 67},
		{1, 2, 33, 67},
	}
	for _, tt := range tests {
		left, right := rescaleScores(tt.l, tt.r)
		assert.Equal(t, tt.left, left, "%v/%v", tt.l, tt.r)
		assert.Equal(t, tt.right, right, "%v/%v", tt.l, tt.r)
		assert.Equal(t, 100, left+right)
	}
}

func TestParseResponseNormalises(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, r *model.MediatorResponse)
	}{
		{
			name: "code fence and prose",
			raw:  "Sure! Here you go:\n```json\n{\"type\":\"ack\",\"text\":\"Noted.\"}\n```",
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.Equal(t, model.TypeAcknowledge, r.Type)
				assert.Equal(t, 50, r.WinMeter.Left.Score)
				assert.Equal(t, "Alice", r.WinMeter.Left.Name)
				assert.Equal(t, "Bob", r.WinMeter.Right.Name)
			},
		},
		{
			name: "acknowledge alias",
			raw:  `{"type":"Acknowledge","text":"Heard."}`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.Equal(t, model.TypeAcknowledge, r.Type)
			},
		},
		{
			name: "trailing comma repaired",
			raw:  `{"type":"judgement","text":"Alice wins.","actions":[{"who":"Bob","action":"Apologise"},],}`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				require.Len(t, r.Actions, 1)
				assert.Equal(t, model.Action{Who: "Bob", Action: "Apologise"}, r.Actions[0])
			},
		},
		{
			name: "truncated reply completed",
			raw:  `{"type":"ack","text":"Noted, carry on","win_meter":{"left":{"name":"Alice","score":55`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.Equal(t, 55, r.WinMeter.Left.Score)
				assert.Equal(t, 45, r.WinMeter.Right.Score)
			},
		},
		{
			name: "string scores",
			raw:  `{"type":"judgement","text":"Close call.","win_meter":{"left":{"name":"Alice","score":"80"},"right":{"name":"Bob","score":"20%"}}}`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.Equal(t, 80, r.WinMeter.Left.Score)
				assert.Equal(t, 20, r.WinMeter.Right.Score)
			},
		},
		{
			name: "actions truncated and blanks dropped",
			raw: `{"type":"judgement","text":"Split it.","actions":[
				{"who":"","action":"nothing"},
				{"who":"Alice","action":"Buy snacks"},
				{"who":"Bob","action":"Say sorry"},
				{"who":"Alice","action":"Forgive"}]}`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.Equal(t, []model.Action{
					{Who: "Alice", Action: "Buy snacks"},
					{Who: "Bob", Action: "Say sorry"},
				}, r.Actions)
			},
		},
		{
			name: "actions of wrong shape ignored",
			raw:  `{"type":"ack","text":"Noted.","actions":"none"}`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.Empty(t, r.Actions)
				assert.NotNil(t, r.Actions)
			},
		},
		{
			name: "clarify dropped unless ask",
			raw:  `{"type":"judgement","text":"Alice wins.","clarify":"Why?"}`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.Empty(t, r.Clarify)
			},
		},
		{
			name: "ask without clarify uses question from text",
			raw:  `{"type":"ask","text":"Hold on. Which charger was it? I need that."}`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.Equal(t, "Which charger was it?", r.Clarify)
			},
		},
		{
			name: "ask without any question",
			raw:  `{"type":"ask","text":"Tell me more."}`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.Equal(t, FallbackClarify, r.Clarify)
			},
		},
		{
			name: "title trimmed and bounded",
			raw:  `{"type":"ack","text":"Noted.","room_title_suggestion":"  \"` + strings.Repeat("snack ", 20) + `\" "}`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.LessOrEqual(t, len([]rune(r.RoomTitleSuggestion)), MaxTitleRunes)
				assert.True(t, strings.HasPrefix(r.RoomTitleSuggestion, "snack snack"))
				assert.False(t, strings.HasSuffix(r.RoomTitleSuggestion, " "))
			},
		},
		{
			name: "missing names filled",
			raw:  `{"type":"ack","text":"Noted.","win_meter":{"left":{"score":40},"right":{"name":"","score":60}}}`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.Equal(t, model.PartyScore{Name: "Alice", Score: 40}, r.WinMeter.Left)
				assert.Equal(t, model.PartyScore{Name: "Bob", Score: 60}, r.WinMeter.Right)
			},
		},
		{
			name: "one score missing",
			raw:  `{"type":"ack","text":"Noted.","win_meter":{"left":{"name":"Alice","score":120}}}`,
			check: func(t *testing.T, r *model.MediatorResponse) {
				assert.Equal(t, 100, r.WinMeter.Left.Score)
				assert.Equal(t, 0, r.WinMeter.Right.Score)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseResponse(tt.raw, "Alice", "Bob")
			require.NoError(t, err)
			tt.check(t, resp)
			assert.Equal(t, 100, resp.WinMeter.Left.Score+resp.WinMeter.Right.Score)
		})
	}
}

func TestParseResponseTruncatesText(t *testing.T) {
	long := strings.Repeat("word ", MaxTextWords+30)
	resp, err := ParseResponse(`{"type":"judgement","text":"`+long+`"}`, "Alice", "Bob")
	require.NoError(t, err)
	assert.Len(t, strings.Fields(resp.Text), MaxTextWords)
}

func TestParseResponseRejects(t *testing.T) {
	for _, raw := range []string{
		"",
		"I refuse to answer in JSON.",
		`{"type":"verdict","text":"Alice wins."}`,
		`{"type":"ack","text":"   "}`,
		`{"text":"no type"}`,
		`[1, 2, 3]`,
		`{"type": 7, "text": "wrong types"}`,
	} {
		resp, err := ParseResponse(raw, "Alice", "Bob")
		assert.ErrorIs(t, err, ErrMalformedReply, raw)
		assert.Nil(t, resp)
	}
}

func TestFallbackResponse(t *testing.T) {
	resp := FallbackResponse("Alice", "Bob")
	assert.Equal(t, model.TypeAsk, resp.Type)
	assert.Equal(t, FallbackText, resp.Text)
	assert.Equal(t, FallbackClarify, resp.Clarify)
	assert.Equal(t, model.PartyScore{Name: "Alice", Score: 50}, resp.WinMeter.Left)
	assert.Equal(t, model.PartyScore{Name: "Bob", Score: 50}, resp.WinMeter.Right)
	assert.Empty(t, resp.Actions)
}
