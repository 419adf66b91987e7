package model

import "github.com/google/uuid"

// Stage is the coarse-grained phase of an exam session.
type Stage string

const (
	StageSignIn  Stage = "sign-in"
	StageRules   Stage = "rules"
	StageExam    Stage = "exam"
	StageSuccess Stage = "success"
)

// AnswerState holds the candidate's responses. Maps are sparse: a question
// only has an entry once it has been answered.
type AnswerState struct {
	MCQ map[int]int    `json:"mcq_answers"`
	SAQ map[int]string `json:"saq_answers"`
}

// NewAnswerState returns an empty, non-nil AnswerState.
func NewAnswerState() AnswerState {
	return AnswerState{
		MCQ: make(map[int]int),
		SAQ: make(map[int]string),
	}
}

// Clone deep-copies both maps.
func (a AnswerState) Clone() AnswerState {
	out := NewAnswerState()
	for k, v := range a.MCQ {
		out.MCQ[k] = v
	}
	for k, v := range a.SAQ {
		out.SAQ[k] = v
	}
	return out
}

// SessionState is the externally visible snapshot of a session.
type SessionState struct {
	ID               uuid.UUID   `json:"id"`
	Stage            Stage       `json:"stage"`
	Candidate        *Candidate  `json:"candidate,omitempty"`
	Answers          AnswerState `json:"answers"`
	TabSwitched      bool        `json:"tab_switched"`
	Submitting       bool        `json:"submitting"`
	WarningVisible   bool        `json:"warning_visible"`
	RemainingSeconds int         `json:"remaining_seconds"`
}

// CreateSessionResponse is returned when a new session is opened.
type CreateSessionResponse struct {
	Token   string       `json:"token"`
	Session SessionState `json:"session"`
}

// SelectOptionRequest records an MCQ choice.
type SelectOptionRequest struct {
	Option *int `json:"option" binding:"required,min=0"`
}

// WriteResponseRequest records an SAQ response. Empty text is allowed so a
// candidate can clear a box.
type WriteResponseRequest struct {
	Text string `json:"text" binding:"max=10000"`
}

// SubmitOutcome describes what a submit call did.
type SubmitOutcome string

const (
	SubmitOutcomeSubmitted SubmitOutcome = "submitted"
	SubmitOutcomeIgnored   SubmitOutcome = "ignored"
	SubmitOutcomeFailed    SubmitOutcome = "failed"
)

// SubmitTrigger names what asked for the submission.
type SubmitTrigger string

const (
	TriggerManual    SubmitTrigger = "manual"
	TriggerTimer     SubmitTrigger = "timer"
	TriggerIntegrity SubmitTrigger = "integrity"
)
