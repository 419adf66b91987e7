package model

import "time"

// MonitorEventType names an entry on the live proctor feed.
type MonitorEventType string

const (
	MonitorViolation  MonitorEventType = "violation"
	MonitorSubmission MonitorEventType = "submission"
)

// MonitorEvent is published on the proctor feed channel.
type MonitorEvent struct {
	Type        MonitorEventType `json:"type"`
	SessionID   string           `json:"session_id"`
	Candidate   string           `json:"candidate,omitempty"`
	Kind        ViolationKind    `json:"kind,omitempty"`
	Key         string           `json:"key,omitempty"`
	Outcome     SubmitOutcome    `json:"outcome,omitempty"`
	Trigger     SubmitTrigger    `json:"trigger,omitempty"`
	TabSwitched bool             `json:"tab_switched,omitempty"`
	At          time.Time        `json:"at"`
}

// ViolationLogEntry is an archived violation row.
type ViolationLogEntry struct {
	ID int64 `json:"id"`
	ViolationRecord
}

// SubmissionLogEntry is an archived submission row.
type SubmissionLogEntry struct {
	ID int64 `json:"id"`
	SubmissionRecord
}

// LiveSessionStats counts the sessions currently held in memory per stage.
type LiveSessionStats struct {
	Total   int           `json:"total"`
	ByStage map[Stage]int `json:"by_stage"`
}

// MonitorSnapshot is the first frame of the proctor feed.
type MonitorSnapshot struct {
	Today DailyStats       `json:"today"`
	Live  LiveSessionStats `json:"live"`
}
