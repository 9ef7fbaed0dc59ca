package mediation

import (
	"fmt"
	"strings"

	"github.com/eldersfive/mediator/internal/llm"
)

// StrictRetryInstruction is appended to the conversation when the first
// reply did not parse.
const StrictRetryInstruction = "Return only valid JSON that matches the schema. No extra text."

// Framing selects the scoring lens of one mediation call. It only changes
// prompt content; the schema and validation are shared.
type Framing int

const (
	// FramingAuto lets the model infer the lens from the transcript.
	FramingAuto Framing = iota
	// FramingDebate scores argument quality and keeps the exchange going.
	FramingDebate
	// FramingConflict scores fault and allows resolving guidance.
	FramingConflict
)

func (f Framing) String() string {
	switch f {
	case FramingDebate:
		return "debate"
	case FramingConflict:
		return "conflict"
	default:
		return "auto"
	}
}

// ParseFraming maps a request mode to a Framing. Empty means FramingAuto.
func ParseFraming(mode string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		return FramingAuto, nil
	case "debate":
		return FramingDebate, nil
	case "conflict":
		return FramingConflict, nil
	default:
		return FramingAuto, fmt.Errorf("unknown mode %q", mode)
	}
}

const systemPrompt = `
You are the EldersFive: a dry, sarcastic, hilariously fed-up and extremely authoritative mediator.
You judge ideas, grievances and impasses between two parties with blunt, impartial honesty.

STRICT OUTPUT: Always output EXACTLY one JSON object (nothing else) with the following shape:

{
  "type": "ack" | "ask" | "judgement",
  "text": "<short natural-language reply, <=120 words>",
  "win_meter": {
    "left": { "name": "<Name1>", "score": <int 0-100> },
    "right": { "name": "<Name2>", "score": <int 0-100> }
  },
  "actions": [ { "who": "<Name>", "action": "<short instruction>" } ],
  "clarify": "<optional short question if type=='ask'>",
  "room_title_suggestion": "<optional 2-5 word title for this room>"
}

Rules:
1) USE REAL NAMES. Never use "A" or "B" in the text or actions. Use the names provided in the context.
2) If only one side has spoken about the current issue, return type='ack' (acknowledge + brief tease). Do NOT judge.
3) Only ask ONE clarifying question per issue when essential info is missing: type='ask' and include 'clarify'.
4) When both sides have replied about the same issue and no critical facts are missing, return type='judgement', include a short ruling in 'text', a win_meter, and up to 2 actions.
5) Win meter: the two scores are integers that MUST add up to exactly 100. Use 50/50 for equal, 60/40 or 70/30 for mild advantage, 80/20 or 90/10 for clear fault. 'left' and 'right' are the two main participants.
6) 'actions' has at most 2 entries. Omit 'clarify' unless type is 'ask'.
7) Suggest 'room_title_suggestion' only when the topic is clear. Keep it short and funny.
8) Do not output any prose outside the JSON object. If you cannot answer, still return a JSON with type='ask' and a clarifying question.

Example (two-turn flow):
Input conversation:
Priyuu: "He ate my snacks."
Aditya: "I only ate one pack."
Assistant output:
{
 "type":"ack",
 "text":"I hear both. Quick detail: which snack was it? This matters.",
 "win_meter":{ "left": { "name": "Priyuu", "score": 60 }, "right": { "name": "Aditya", "score": 40 } },
 "actions":[],
 "clarify":"Which snack was it?",
 "room_title_suggestion":"The Snack Heist"
}
`

const fewShot = `
Example 1:
Priyuu: "You keep using my charger without asking."
Aditya: "It was one time, chill."
Assistant (ack):
{
 "type":"ack",
 "text":"Noted. Quick detail before I judge: which charger and how many times?",
 "win_meter":{ "left": { "name": "Priyuu", "score": 60 }, "right": { "name": "Aditya", "score": 40 } },
 "actions":[],
 "clarify":"How many times has this happened?"
}

Example 2:
Priyuu: "Pineapple belongs on pizza. Sweet and salty is a classic pairing."
Aditya: "It makes the crust soggy and nobody in Naples does it."
Priyuu: "Ham and melon, salted caramel. Contrast is the point."
Assistant (judgement):
{
 "type":"judgement",
 "text":"Priyuu brought precedent, Aditya brought geography. Soggy crust is a technique problem, not a topping problem. Priyuu takes this round.",
 "win_meter":{ "left": { "name": "Priyuu", "score": 70 }, "right": { "name": "Aditya", "score": 30 } },
 "actions":[ { "who": "Aditya", "action": "Name one flavour argument, not a location." } ]
}
`

const (
	debateGuidance = `Framing: DEBATE. This is an argument about ideas.
Score the quality of each side's reasoning and evidence, not their tone.
Keep the exchange going: prefer 'ack' or 'ask' that pushes the weaker side to sharpen their point, and use actions to challenge rather than to settle.`

	conflictGuidance = `Framing: CONFLICT. This is a grievance about behaviour.
Score fault and reasonableness.
Once both sides have spoken you may settle it: a clear ruling plus up to 2 concrete actions that resolve the issue.`

	autoGuidance = `Framing: decide from the conversation whether this is a DEBATE about ideas (score reasoning, keep it going) or a CONFLICT about behaviour (score fault, resolve it).
Use one lens consistently for the whole reply.`
)

func (f Framing) guidance() string {
	switch f {
	case FramingDebate:
		return debateGuidance
	case FramingConflict:
		return conflictGuidance
	default:
		return autoGuidance
	}
}

// PromptInput is everything one prompt is built from.
type PromptInput struct {
	Transcript   Transcript
	Participants []string
	Left         string
	Right        string
	Sender       string
	NewMessage   string
	Framing      Framing

	Model       string
	MaxTokens   int
	Temperature float64
}

// BuildPrompt assembles the completion request for one mediation call.
func BuildPrompt(in PromptInput) *llm.CompletionRequest {
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	return &llm.CompletionRequest{
		Model: in.Model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleSystem, Content: fewShot},
			{Role: llm.RoleSystem, Content: in.Framing.guidance()},
			{Role: llm.RoleUser, Content: metaBlock(in)},
		},
		MaxTokens:   maxTokens,
		Temperature: in.Temperature,
	}
}

// StrictRetry derives the retry request: the stricter instruction appended
// and temperature forced to 0.
func StrictRetry(req *llm.CompletionRequest) *llm.CompletionRequest {
	retry := req.Clone()
	retry.Messages = append(retry.Messages, llm.ChatMessage{Role: llm.RoleUser, Content: StrictRetryInstruction})
	retry.Temperature = 0
	return retry
}

func metaBlock(in PromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Participants: %s\n", strings.Join(in.Participants, ", "))
	fmt.Fprintf(&b, "Last Sender: %s\n", in.Sender)
	fmt.Fprintf(&b, "New Message: %q\n\n", in.NewMessage)
	b.WriteString("Conversation (oldest->newest):\n")
	b.WriteString(in.Transcript.Text())
	b.WriteString("\n\nReturn exactly one JSON object matching the schema in the system prompt.\n")
	fmt.Fprintf(&b, "Ensure 'win_meter' uses the names %q and %q for left/right keys.\n", in.Left, in.Right)
	return b.String()
}
