package model

import "time"

// ViolationKind enumerates the integrity signals the platform binding layer reports.
type ViolationKind string

const (
	ViolationVisibilityLost     ViolationKind = "visibility_lost"
	ViolationVisibilityRestored ViolationKind = "visibility_restored"
	ViolationPaste              ViolationKind = "paste_attempted"
	ViolationModifierChord      ViolationKind = "modifier_chord"
	ViolationContextMenu        ViolationKind = "context_menu"
	ViolationUnload             ViolationKind = "unload_attempted"
)

// IntegrityEvent is one signal from the browser. Ctrl/Meta/Key are only
// meaningful for modifier chords.
type IntegrityEvent struct {
	Kind ViolationKind `json:"kind" binding:"required,oneof=visibility_lost visibility_restored paste_attempted modifier_chord context_menu unload_attempted"`
	Ctrl bool          `json:"ctrl"`
	Meta bool          `json:"meta"`
	Key  string        `json:"key" binding:"max=32"`
}

// Verdict tells the binding layer how to react to an IntegrityEvent.
type Verdict struct {
	// Suppress asks the client to prevent the browser default action.
	Suppress bool `json:"suppress"`
	// ConfirmUnload asks the client to raise the native leave-page prompt.
	ConfirmUnload bool `json:"confirm_unload"`
	// Warning is true while the full-screen tab-switch warning must be shown.
	Warning bool `json:"warning"`
	// GraceSeconds is the forced-submission countdown armed by this event, if any.
	GraceSeconds int `json:"grace_seconds,omitempty"`
	// Notice is the code of a blocking notice to surface, if any.
	Notice string `json:"notice,omitempty"`
	// Message is the localized text for Notice or the unload prompt.
	Message string `json:"message,omitempty"`
	// Ignored is true when the monitor was not armed.
	Ignored bool `json:"ignored,omitempty"`
}

// ViolationRecord is the archived form of an observed violation.
type ViolationRecord struct {
	SessionID  string        `json:"session_id"`
	Kind       ViolationKind `json:"kind"`
	Key        string        `json:"key,omitempty"`
	Candidate  string        `json:"candidate,omitempty"`
	ObservedAt time.Time     `json:"observed_at"`
}

// SubmissionRecord is the archived form of a submission attempt.
type SubmissionRecord struct {
	SessionID   string        `json:"session_id"`
	Candidate   Candidate     `json:"candidate"`
	Trigger     SubmitTrigger `json:"trigger"`
	Outcome     SubmitOutcome `json:"outcome"`
	TabSwitched bool          `json:"tab_switched"`
	Subject     string        `json:"subject"`
	Message     string        `json:"message"`
	Error       string        `json:"error,omitempty"`
	AttemptedAt time.Time     `json:"attempted_at"`
}
