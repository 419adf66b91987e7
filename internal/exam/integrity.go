package exam

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Notice codes surfaced to the candidate.
const (
	NoticePasteBlocked     = "paste_blocked"
	NoticeSubmissionFailed = "submission_failed"
	NoticeIdentityMissing  = "identity_missing"
)

// MonitorConfig tunes the integrity policy.
type MonitorConfig struct {
	// Grace is how long a visibility loss waits before forcing submission.
	Grace time.Duration
	// CancelOnReturn cancels a pending grace countdown when the page becomes
	// visible again. Off by default: the countdown keeps running.
	CancelOnReturn bool
}

// Monitor turns integrity events into verdicts and owns the grace countdown
// that forces submission after a visibility loss. It only reacts while armed.
type Monitor struct {
	cfg MonitorConfig
	log zerolog.Logger

	mu             sync.Mutex
	armed          bool
	gen            uint64
	pending        *time.Timer
	warning        bool
	onGraceExpired func(captured model.AnswerState)
}

func NewMonitor(cfg MonitorConfig, log zerolog.Logger) *Monitor {
	if cfg.Grace <= 0 {
		cfg.Grace = 3 * time.Second
	}
	return &Monitor{cfg: cfg, log: log}
}

// Arm starts observing. onGraceExpired receives the answers captured when the
// visibility loss was detected.
func (m *Monitor) Arm(onGraceExpired func(captured model.AnswerState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked()
	m.armed = true
	m.warning = false
	m.onGraceExpired = onGraceExpired
}

// Disarm stops observing and cancels any pending grace countdown.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked()
	m.armed = false
	m.warning = false
	m.onGraceExpired = nil
}

func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

func (m *Monitor) WarningVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warning
}

func (m *Monitor) GracePending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// ClearWarning hides the full-screen warning without touching a pending
// countdown.
func (m *Monitor) ClearWarning() {
	m.mu.Lock()
	m.warning = false
	m.mu.Unlock()
}

func (m *Monitor) cancelLocked() {
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
	m.gen++
}

// Observe applies the policy to ev. capture is only called for a visibility
// loss that arms a new grace countdown. Observe never fails.
func (m *Monitor) Observe(ev model.IntegrityEvent, capture func() model.AnswerState) model.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.armed {
		return model.Verdict{Ignored: true}
	}

	switch ev.Kind {
	case model.ViolationPaste:
		return model.Verdict{Suppress: true, Notice: NoticePasteBlocked, Warning: m.warning}

	case model.ViolationModifierChord:
		if !ev.Ctrl && !ev.Meta {
			return model.Verdict{Warning: m.warning}
		}
		return model.Verdict{Suppress: true, Warning: m.warning}

	case model.ViolationContextMenu:
		return model.Verdict{Suppress: true, Warning: m.warning}

	case model.ViolationUnload:
		return model.Verdict{ConfirmUnload: true, Warning: m.warning}

	case model.ViolationVisibilityLost:
		m.warning = true
		if m.pending != nil {
			return model.Verdict{Warning: true}
		}
		captured := capture()
		m.gen++
		gen := m.gen
		m.pending = time.AfterFunc(m.cfg.Grace, func() { m.graceExpired(gen, captured) })
		return model.Verdict{Warning: true, GraceSeconds: int((m.cfg.Grace + time.Second - 1) / time.Second)}

	case model.ViolationVisibilityRestored:
		if m.cfg.CancelOnReturn {
			m.cancelLocked()
			m.warning = false
		}
		return model.Verdict{Warning: m.warning}

	default:
		m.log.Debug().Str("kind", string(ev.Kind)).Msg("Ignoring unknown integrity event")
		return model.Verdict{Warning: m.warning}
	}
}

func (m *Monitor) graceExpired(gen uint64, captured model.AnswerState) {
	m.mu.Lock()
	if !m.armed || m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.pending = nil
	fn := m.onGraceExpired
	m.mu.Unlock()

	if fn != nil {
		fn(captured)
	}
}
