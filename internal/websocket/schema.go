package websocket

import (
	"encoding/json"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswerMCQ Action = "answer_mcq"
	ActionAnswerSAQ Action = "answer_saq"
	ActionIntegrity Action = "integrity"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing. Raw
// keeps the whole frame for the second decode.
type RequestEnvelope struct {
	Action Action          `json:"action"`
	Raw    json.RawMessage `json:"-"`
}

// AnswerMCQRequest records a multiple-choice selection.
type AnswerMCQRequest struct {
	Action     Action `json:"action"`
	QuestionID int    `json:"question_id"`
	Option     *int   `json:"option"`
}

// AnswerSAQRequest records a short-answer response.
type AnswerSAQRequest struct {
	Action     Action `json:"action"`
	QuestionID int    `json:"question_id"`
	Text       string `json:"text"`
}

// IntegrityRequest reports a browser integrity signal.
type IntegrityRequest struct {
	Action Action               `json:"action"`
	Event  model.IntegrityEvent `json:"event"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventAck     Event = "ack"
	EventSession Event = "session"
	EventPong    Event = "pong"
)

// AckResponse answers a successful action.
type AckResponse struct {
	Event  Event       `json:"event"`
	Action Action      `json:"action"`
	Data   interface{} `json:"data,omitempty"`
}

// SessionEventResponse carries one pushed session event.
type SessionEventResponse struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data"`
}

type ErrorResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action,omitempty"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
