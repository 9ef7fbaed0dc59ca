package mediation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"

	"github.com/eldersfive/mediator/internal/model"
	"github.com/eldersfive/mediator/pkg/metrics"
)

const (
	// MaxTextWords bounds the mediator reply body.
	MaxTextWords = 120
	// MaxActions bounds the actions list.
	MaxActions = 2
	// MaxTitleRunes bounds a room title suggestion.
	MaxTitleRunes = 60

	FallbackText    = "I need one quick detail before I judge: what's the specific action bothering you right now?"
	FallbackClarify = "What's the single action that's bothering you?"
)

// ErrMalformedReply means the model answered but not with a usable object.
var ErrMalformedReply = errors.New("malformed model reply")

// looseResponse accepts whatever shape the model produced; normalisation
// decides what survives.
type looseResponse struct {
	Type                string          `json:"type"`
	Text                string          `json:"text"`
	WinMeter            *looseWinMeter  `json:"win_meter"`
	Actions             json.RawMessage `json:"actions"`
	Clarify             string          `json:"clarify"`
	RoomTitleSuggestion string          `json:"room_title_suggestion"`
}

type looseWinMeter struct {
	Left  *looseScore `json:"left"`
	Right *looseScore `json:"right"`
}

type looseScore struct {
	Name  string      `json:"name"`
	Score looseNumber `json:"score"`
}

type looseAction struct {
	Who    string `json:"who"`
	Action string `json:"action"`
}

// looseNumber decodes a JSON number or numeric string. Anything else
// leaves it unset instead of failing the whole reply.
type looseNumber struct {
	Value float64
	Set   bool
}

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.Value, n.Set = v, true
	return nil
}

// ParseResponse turns raw model output into a normalised MediatorResponse.
// left and right fill in missing party names. It returns ErrMalformedReply
// when no object with a known type and non-empty text can be recovered.
func ParseResponse(raw, left, right string) (*model.MediatorResponse, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return nil, err
	}

	var loose looseResponse
	if err := json.Unmarshal([]byte(obj), &loose); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(obj)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, repairErr)
		}
		loose = looseResponse{}
		if err := json.Unmarshal([]byte(repaired), &loose); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
	}

	return normalize(&loose, left, right)
}

// extractObject strips code fences and surrounding prose, returning the
// outermost JSON object. A reply cut off before its closing brace is
// returned as-is for repair.
func extractObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	start := strings.Index(s, "{")
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON object", ErrMalformedReply)
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return s[start:], nil
	}
	return s[start : end+1], nil
}

func normalize(in *looseResponse, left, right string) (*model.MediatorResponse, error) {
	typ, ok := normalizeType(in.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedReply, in.Type)
	}

	text := truncateWords(strings.TrimSpace(in.Text), MaxTextWords)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrMalformedReply)
	}

	out := &model.MediatorResponse{
		Type:                typ,
		Text:                text,
		WinMeter:            normalizeWinMeter(in.WinMeter, left, right),
		Actions:             normalizeActions(in.Actions),
		RoomTitleSuggestion: normalizeTitle(in.RoomTitleSuggestion),
	}

	if typ == model.TypeAsk {
		out.Clarify = strings.TrimSpace(in.Clarify)
		if out.Clarify == "" {
			out.Clarify = questionFrom(text)
		}
	}

	return out, nil
}

func normalizeType(t string) (model.ResponseType, bool) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "ack", "acknowledge", "acknowledgement":
		return model.TypeAcknowledge, true
	case "ask":
		return model.TypeAsk, true
	case "judgement", "judgment":
		return model.TypeJudgement, true
	}
	return "", false
}

func normalizeWinMeter(in *looseWinMeter, left, right string) model.WinMeter {
	wm := model.WinMeter{
		Left:  model.PartyScore{Name: left, Score: 50},
		Right: model.PartyScore{Name: right, Score: 50},
	}
	if in == nil {
		return wm
	}

	var l, r looseNumber
	if in.Left != nil {
		if name := strings.TrimSpace(in.Left.Name); name != "" {
			wm.Left.Name = name
		}
		l = in.Left.Score
	}
	if in.Right != nil {
		if name := strings.TrimSpace(in.Right.Name); name != "" {
			wm.Right.Name = name
		}
		r = in.Right.Score
	}

	switch {
	case l.Set && r.Set:
		wm.Left.Score, wm.Right.Score = rescaleScores(l.Value, r.Value)
	case l.Set:
		wm.Left.Score = int(math.Round(clampScore(l.Value)))
		wm.Right.Score = 100 - wm.Left.Score
	case r.Set:
		wm.Right.Score = int(math.Round(clampScore(r.Value)))
		wm.Left.Score = 100 - wm.Right.Score
	}
	return wm
}

// rescaleScores clamps both scores to 0-100 and rescales them
// proportionally so they sum to exactly 100. Two zeros become 50/50.
func rescaleScores(l, r float64) (int, int) {
	l, r = clampScore(l), clampScore(r)
	if l == math.Trunc(l) && r == math.Trunc(r) && l+r == 100 {
		return int(l), int(r)
	}

	metrics.ScoreRepairs.Inc()
	sum := l + r
	if sum == 0 {
		return 50, 50
	}
	left := int(math.Round(l * 100 / sum))
	return left, 100 - left
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func normalizeActions(raw json.RawMessage) []model.Action {
	actions := []model.Action{}

	var loose []looseAction
	if len(raw) == 0 || json.Unmarshal(raw, &loose) != nil {
		return actions
	}

	for _, a := range loose {
		who, what := strings.TrimSpace(a.Who), strings.TrimSpace(a.Action)
		if who == "" || what == "" {
			continue
		}
		actions = append(actions, model.Action{Who: who, Action: what})
		if len(actions) == MaxActions {
			break
		}
	}
	return actions
}

func normalizeTitle(title string) string {
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	title = strings.Join(strings.Fields(title), " ")
	if utf8.RuneCountInString(title) <= MaxTitleRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:MaxTitleRunes]))
}

func truncateWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	return strings.Join(words[:limit], " ")
}

// questionFrom returns the last question in text, or FallbackClarify.
func questionFrom(text string) string {
	end := strings.LastIndex(text, "?")
	if end < 0 {
		return FallbackClarify
	}
	start := strings.LastIndexAny(text[:end], ".!?:") + 1
	if q := strings.TrimSpace(text[start : end+1]); len(q) > 1 {
		return q
	}
	return FallbackClarify
}

// FallbackResponse is the safe reply used when the model never produced a
// parseable object.
func FallbackResponse(left, right string) *model.MediatorResponse {
	return &model.MediatorResponse{
		Type: model.TypeAsk,
		Text: FallbackText,
		WinMeter: model.WinMeter{
			Left:  model.PartyScore{Name: left, Score: 50},
			Right: model.PartyScore{Name: right, Score: 50},
		},
		Actions: []model.Action{},
		Clarify: FallbackClarify,
	}
}
