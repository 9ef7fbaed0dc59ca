package model

// ResponseType is the kind of mediator reply.
type ResponseType string

const (
	// TypeAcknowledge is written as "ack" to match the stored message format.
	TypeAcknowledge ResponseType = "ack"
	TypeAsk         ResponseType = "ask"
	TypeJudgement   ResponseType = "judgement"
)

// Valid reports whether t is one of the three known types.
func (t ResponseType) Valid() bool {
	switch t {
	case TypeAcknowledge, TypeAsk, TypeJudgement:
		return true
	}
	return false
}

// PartyScore is one side of the win meter.
type PartyScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// WinMeter holds the two party scores. Left.Score + Right.Score == 100.
type WinMeter struct {
	Left  PartyScore `json:"left"`
	Right PartyScore `json:"right"`
}

// Action is an instruction addressed to one party.
type Action struct {
	Who    string `json:"who"`
	Action string `json:"action"`
}

// MediatorResponse is the structured judgement persisted as message content.
type MediatorResponse struct {
	Type                ResponseType `json:"type"`
	Text                string       `json:"text"`
	WinMeter            WinMeter     `json:"win_meter"`
	Actions             []Action     `json:"actions"`
	Clarify             string       `json:"clarify,omitempty"`
	RoomTitleSuggestion string       `json:"room_title_suggestion,omitempty"`
}
