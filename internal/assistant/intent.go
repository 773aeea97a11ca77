package assistant

import (
	"encoding/json"
	"errors"
	"strings"
)

// Actions the oracle may request. Anything else is answered with an
// unsupported_action envelope so the oracle can correct itself.
const (
	ActionCheckSchedule         = "CHECK_SCHEDULE"
	ActionCheckEarliestSlots    = "CHECK_EARLIEST_SLOTS"
	ActionCheckFamilySlots      = "CHECK_FAMILY_SLOTS"
	ActionBookAppointment       = "BOOK_APPOINTMENT"
	ActionBookFamilyAppointment = "BOOK_FAMILY_APPOINTMENT"
	ActionCancelAppointment     = "CANCEL_APPOINTMENT"
	ActionSendEmergencyRequest  = "SEND_EMERGENCY_REQUEST"
)

// OracleReply is the JSON contract the oracle must honor. Action and
// Parameters are empty when the reply is a plain conversational answer.
type OracleReply struct {
	BotResponse string          `json:"BotResponse"`
	Action      string          `json:"Action,omitempty"`
	Parameters  json.RawMessage `json:"Parameters,omitempty"`
}

var ErrMalformedReply = errors.New("oracle reply is not a valid JSON object")

// ParseOracleReply extracts the reply object from raw model output.
// Models wrap JSON in markdown fences or chatter around it often enough
// that we locate the outermost object instead of unmarshalling directly.
func ParseOracleReply(text string) (*OracleReply, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, ErrMalformedReply
	}

	var reply OracleReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return nil, ErrMalformedReply
	}
	if reply.BotResponse == "" && reply.Action == "" {
		return nil, ErrMalformedReply
	}
	return &reply, nil
}

// Envelope is the dispatch result fed back to the oracle. It is stored in
// the transcript but never rendered on the human surface.
type Envelope struct {
	Type    string `json:"type"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (e Envelope) JSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		return `{"type":"internal_error","status":500}`
	}
	return string(b)
}
