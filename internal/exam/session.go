// Package exam implements the timed exam session: stage sequencing, the
// countdown, integrity monitoring and the exactly-once submission pipeline.
package exam

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/i18n"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/notify"
	"github.com/stemsi/exstem-proctor/internal/questionbank"
)

// Sink delivers a rendered report.
type Sink interface {
	Send(ctx context.Context, p notify.Payload) error
}

// Translator localizes candidate-facing messages.
type Translator interface {
	T(lang, msgID string) string
	Tp(lang, msgID string, count int) string
}

// Observer is told about violations and submission attempts. Calls are made
// without the session lock held.
type Observer interface {
	ViolationObserved(rec model.ViolationRecord)
	SubmissionAttempted(rec model.SubmissionRecord)
}

// Options configures a Session.
type Options struct {
	ID             uuid.UUID
	Bank           *questionbank.Bank
	Sink           Sink
	Translator     Translator
	Observer       Observer
	Logger         zerolog.Logger
	Duration       time.Duration
	Grace          time.Duration
	Tick           time.Duration
	CancelOnReturn bool
	SinkTimeout    time.Duration
	Location       *time.Location
	Lang           string
	Now            func() time.Time
}

// Session owns all per-candidate state. Every exported method is safe for
// concurrent use. The lock is never held across the sink call.
type Session struct {
	id          uuid.UUID
	bank        *questionbank.Bank
	sink        Sink
	tr          Translator
	observer    Observer
	log         zerolog.Logger
	duration    time.Duration
	sinkTimeout time.Duration
	loc         *time.Location
	now         func() time.Time

	timer   *Countdown
	monitor *Monitor
	hub     *Hub

	mu          sync.Mutex
	stage       model.Stage
	candidate   *model.Candidate
	answers     *AnswerStore
	tabSwitched bool
	tabLosses   uint64
	submitting  bool
	epoch       uint64
	lang        string
	lastActive  time.Time
	closed      bool
}

func NewSession(opts Options) *Session {
	if opts.ID == uuid.Nil {
		opts.ID = uuid.New()
	}
	if opts.Duration <= 0 {
		opts.Duration = 30 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Translator == nil {
		opts.Translator = passthroughTranslator{}
	}

	log := opts.Logger.With().Str("session_id", opts.ID.String()).Logger()

	return &Session{
		id:          opts.ID,
		bank:        opts.Bank,
		sink:        opts.Sink,
		tr:          opts.Translator,
		observer:    opts.Observer,
		log:         log,
		duration:    opts.Duration,
		sinkTimeout: opts.SinkTimeout,
		loc:         opts.Location,
		now:         opts.Now,
		timer:       NewCountdown(opts.Tick),
		monitor:     NewMonitor(MonitorConfig{Grace: opts.Grace, CancelOnReturn: opts.CancelOnReturn}, log),
		hub:         NewHub(),
		stage:       model.StageSignIn,
		answers:     NewAnswerStore(opts.Bank),
		lang:        opts.Lang,
		lastActive:  opts.Now(),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Stage() model.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// LastActive is the time of the last candidate-driven change.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Evictable reports whether the session has been idle for at least ttl and
// nothing can still end it on its own. An exam whose countdown has run out
// without a successful submission qualifies.
func (s *Session) Evictable(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastActive) < ttl {
		return false
	}
	if s.stage == model.StageExam && (s.submitting || s.timer.Running()) {
		return false
	}
	return true
}

// SetLang changes the language of notices pushed from now on.
func (s *Session) SetLang(lang string) {
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
}

// Subscribe streams session events until the returned cancel func is called
// or the session is closed.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	return s.hub.Subscribe(buffer)
}

// SignIn moves sign-in → rules once every identity field is non-blank.
func (s *Session) SignIn(c model.Candidate) error {
	fields := map[string]string{}
	if strings.TrimSpace(c.Name) == "" {
		fields["name"] = "name is required"
	}
	if strings.TrimSpace(c.Email) == "" {
		fields["email"] = "email is required"
	}
	if strings.TrimSpace(c.GitHubHandle) == "" {
		fields["github_handle"] = "github_handle is required"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != model.StageSignIn {
		return ErrInvalidTransition
	}
	if len(fields) > 0 {
		return &FormValidationError{Fields: fields}
	}

	s.candidate = &c
	s.setStageLocked(model.StageRules)
	s.log.Info().Str("candidate", c.Email).Msg("Candidate signed in")
	return nil
}

// Back returns rules → sign-in and forgets the candidate.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != model.StageRules {
		return ErrInvalidTransition
	}
	s.candidate = nil
	s.setStageLocked(model.StageSignIn)
	return nil
}

// Start moves rules → exam and arms the countdown and the integrity monitor
// with fresh answers.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != model.StageRules {
		return ErrInvalidTransition
	}

	s.answers.Reset()
	s.tabSwitched = false
	s.submitting = false
	s.epoch++
	epoch := s.epoch

	s.timer.Start(s.duration, s.tickFunc(epoch), s.expireFunc(epoch))
	s.monitor.Arm(s.graceFunc(epoch))
	s.setStageLocked(model.StageExam)

	s.log.Info().Dur("duration", s.duration).Msg("Exam started")
	return nil
}

// Reset returns success → sign-in, clearing every piece of session state.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != model.StageSuccess {
		return ErrInvalidTransition
	}
	s.disarmLocked()
	s.candidate = nil
	s.answers.Reset()
	s.tabSwitched = false
	s.submitting = false
	s.setStageLocked(model.StageSignIn)
	return nil
}

// Close disarms everything and ends all subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	s.disarmLocked()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
}

func (s *Session) disarmLocked() {
	s.epoch++
	s.timer.Stop()
	s.monitor.Disarm()
}

func (s *Session) AnswerMCQ(qid, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != model.StageExam {
		return ErrExamNotActive
	}
	if err := s.answers.SelectOption(qid, option); err != nil {
		return err
	}
	s.lastActive = s.now()
	return nil
}

func (s *Session) AnswerSAQ(qid int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != model.StageExam {
		return ErrExamNotActive
	}
	if err := s.answers.WriteResponse(qid, text); err != nil {
		return err
	}
	s.lastActive = s.now()
	return nil
}

// ReportViolation feeds an integrity event to the monitor. Outside the exam
// stage every event is ignored. It never fails.
func (s *Session) ReportViolation(ev model.IntegrityEvent) model.Verdict {
	s.mu.Lock()
	if s.stage != model.StageExam {
		s.mu.Unlock()
		return model.Verdict{Ignored: true}
	}

	wasWarning := s.monitor.WarningVisible()
	verdict := s.monitor.Observe(ev, s.answers.Snapshot)
	if verdict.Ignored {
		s.mu.Unlock()
		return verdict
	}

	switch {
	case ev.Kind == model.ViolationVisibilityLost:
		s.tabSwitched = true
		s.tabLosses++
		msg := s.tr.T(s.lang, i18n.MsgWarningReturn)
		if verdict.GraceSeconds > 0 {
			msg = s.tr.Tp(s.lang, i18n.MsgWarningTabSwitch, verdict.GraceSeconds)
		}
		s.publishLocked(EventWarning, WarningPayload{GraceSeconds: verdict.GraceSeconds, Message: msg})
	case ev.Kind == model.ViolationVisibilityRestored && wasWarning && !verdict.Warning:
		s.publishLocked(EventWarningCleared, nil)
	case ev.Kind == model.ViolationUnload:
		verdict.Message = s.tr.T(s.lang, i18n.MsgUnloadPrompt)
	}
	if verdict.Notice != "" {
		verdict.Message = s.noticeLocked(verdict.Notice)
	}

	record := !(ev.Kind == model.ViolationModifierChord && !verdict.Suppress)
	rec := model.ViolationRecord{
		SessionID:  s.id.String(),
		Kind:       ev.Kind,
		Key:        ev.Key,
		ObservedAt: s.now(),
	}
	if s.candidate != nil {
		rec.Candidate = s.candidate.Email
	}
	s.mu.Unlock()

	s.log.Debug().Str("kind", string(ev.Kind)).Bool("suppress", verdict.Suppress).Bool("warning", verdict.Warning).Msg("Integrity event")
	if record && s.observer != nil {
		s.observer.ViolationObserved(rec)
	}
	return verdict
}

// Submit is the candidate's manual submission.
func (s *Session) Submit(ctx context.Context) (model.SubmitOutcome, error) {
	return s.submit(ctx, model.TriggerManual, nil, 0)
}

// submit runs the pipeline at most once at a time. A non-zero epoch ties the
// call to one exam attempt; stale callers are ignored.
func (s *Session) submit(ctx context.Context, trigger model.SubmitTrigger, captured *model.AnswerState, epoch uint64) (model.SubmitOutcome, error) {
	s.mu.Lock()
	if epoch != 0 && epoch != s.epoch {
		s.mu.Unlock()
		return model.SubmitOutcomeIgnored, nil
	}
	switch s.stage {
	case model.StageExam:
	case model.StageSuccess:
		s.mu.Unlock()
		return model.SubmitOutcomeIgnored, nil
	default:
		s.mu.Unlock()
		if trigger == model.TriggerManual {
			return model.SubmitOutcomeIgnored, ErrExamNotActive
		}
		return model.SubmitOutcomeIgnored, nil
	}
	if s.submitting {
		s.mu.Unlock()
		s.log.Debug().Str("trigger", string(trigger)).Msg("Submission already in flight")
		return model.SubmitOutcomeIgnored, nil
	}
	if s.candidate == nil {
		s.noticeLocked(NoticeIdentityMissing)
		s.mu.Unlock()
		s.log.Error().Str("trigger", string(trigger)).Msg("Refusing to submit without candidate identity")
		return model.SubmitOutcomeFailed, ErrIdentityMissing
	}

	s.submitting = true
	var answers model.AnswerState
	if captured != nil {
		answers = captured.Clone()
	} else {
		answers = s.answers.Snapshot()
	}
	tab := s.tabSwitched || trigger == model.TriggerIntegrity
	losses := s.tabLosses
	cand := *s.candidate
	attempt := s.epoch
	s.mu.Unlock()

	report, err := BuildReport(&cand, answers, tab, s.bank, s.now().In(s.loc))
	if err != nil {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
		s.log.Error().Err(err).Str("trigger", string(trigger)).Msg("Failed to build report")
		return model.SubmitOutcomeFailed, err
	}
	sendErr := s.send(ctx, report)

	s.mu.Lock()
	s.submitting = false
	// A tab switch reported while the send was in flight belongs to the
	// next attempt.
	if s.tabLosses == losses {
		s.tabSwitched = false
		if tab {
			s.monitor.ClearWarning()
			s.publishLocked(EventWarningCleared, nil)
		}
	}

	outcome := model.SubmitOutcomeSubmitted
	if sendErr != nil {
		outcome = model.SubmitOutcomeFailed
		s.noticeLocked(NoticeSubmissionFailed)
	} else if s.epoch == attempt && s.stage == model.StageExam {
		s.timer.Stop()
		s.monitor.Disarm()
		s.setStageLocked(model.StageSuccess)
	}
	s.publishLocked(EventSubmitted, SubmittedPayload{Outcome: outcome, Trigger: trigger})
	s.mu.Unlock()

	rec := model.SubmissionRecord{
		SessionID:   s.id.String(),
		Candidate:   cand,
		Trigger:     trigger,
		Outcome:     outcome,
		TabSwitched: tab,
		Subject:     report.Subject,
		Message:     report.Message,
		AttemptedAt: s.now(),
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if s.observer != nil {
		s.observer.SubmissionAttempted(rec)
	}

	if sendErr != nil {
		s.log.Warn().Err(sendErr).Str("trigger", string(trigger)).Msg("Submission failed")
		return outcome, &NetworkFailure{Err: sendErr}
	}
	s.log.Info().Str("trigger", string(trigger)).Bool("tab_switched", tab).Msg("Exam submitted")
	return outcome, nil
}

func (s *Session) send(ctx context.Context, report Report) error {
	if s.sink == nil {
		return errors.New("no notification sink configured")
	}
	ctx = context.WithoutCancel(ctx)
	if s.sinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sinkTimeout)
		defer cancel()
	}
	return s.sink.Send(ctx, notify.Payload{Subject: report.Subject, Message: report.Message})
}

// Snapshot returns a copy of the externally visible state.
func (s *Session) Snapshot() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cand *model.Candidate
	if s.candidate != nil {
		c := *s.candidate
		cand = &c
	}
	return model.SessionState{
		ID:               s.id,
		Stage:            s.stage,
		Candidate:        cand,
		Answers:          s.answers.Snapshot(),
		TabSwitched:      s.tabSwitched,
		Submitting:       s.submitting,
		WarningVisible:   s.monitor.WarningVisible(),
		RemainingSeconds: ceilSeconds(s.timer.Remaining()),
	}
}

func (s *Session) tickFunc(epoch uint64) func(time.Duration) {
	return func(remaining time.Duration) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.stage != model.StageExam {
			return
		}
		s.publishLocked(EventTick, TickPayload{RemainingSeconds: ceilSeconds(remaining)})
	}
}

func (s *Session) expireFunc(epoch uint64) func() {
	return func() {
		s.log.Info().Msg("Exam time is up")
		_, _ = s.submit(context.Background(), model.TriggerTimer, nil, epoch)
	}
}

func (s *Session) graceFunc(epoch uint64) func(model.AnswerState) {
	return func(captured model.AnswerState) {
		s.log.Info().Msg("Grace period elapsed, forcing submission")
		_, _ = s.submit(context.Background(), model.TriggerIntegrity, &captured, epoch)
	}
}

func (s *Session) setStageLocked(stage model.Stage) {
	s.stage = stage
	s.lastActive = s.now()
	s.publishLocked(EventStage, StagePayload{Stage: stage})
}

func (s *Session) noticeLocked(code string) string {
	msg := s.tr.T(s.lang, noticeMessageID(code))
	s.publishLocked(EventNotice, NoticePayload{Code: code, Message: msg})
	return msg
}

func (s *Session) publishLocked(t EventType, data any) {
	if s.closed {
		return
	}
	s.hub.Publish(Event{Type: t, Data: data, At: s.now()})
}

func noticeMessageID(code string) string {
	switch code {
	case NoticePasteBlocked:
		return i18n.MsgPasteBlocked
	case NoticeSubmissionFailed:
		return i18n.MsgSubmissionFailed
	case NoticeIdentityMissing:
		return i18n.MsgIdentityMissing
	default:
		return code
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

type passthroughTranslator struct{}

func (passthroughTranslator) T(_, msgID string) string {
	return msgID
}

func (passthroughTranslator) Tp(_, msgID string, _ int) string {
	return msgID
}
