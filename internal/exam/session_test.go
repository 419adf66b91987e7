package exam

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/i18n"
	"github.com/stemsi/exstem-proctor/internal/model"
)

func TestSessionTransitions(t *testing.T) {
	s := newTestSession(t, &fakeSink{}, nil)

	if err := s.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Start from sign-in: %v", err)
	}
	if err := s.Reset(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Reset from sign-in: %v", err)
	}
	if err := s.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Back from sign-in: %v", err)
	}

	if err := s.SignIn(ada()); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if got := s.Stage(); got != model.StageRules {
		t.Fatalf("stage = %s", got)
	}
	if err := s.SignIn(ada()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("SignIn from rules: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Back from exam: %v", err)
	}
	if err := s.Reset(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Reset from exam: %v", err)
	}
	if got := s.Stage(); got != model.StageExam {
		t.Fatalf("stage = %s", got)
	}
}

func TestSessionSignInValidation(t *testing.T) {
	s := newTestSession(t, &fakeSink{}, nil)

	err := s.SignIn(model.Candidate{Name: "  ", Email: "a@b.c", GitHubHandle: ""})
	var fe *FormValidationError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormValidationError, got %v", err)
	}
	if _, ok := fe.Fields["name"]; !ok {
		t.Error("name should be rejected")
	}
	if _, ok := fe.Fields["github_handle"]; !ok {
		t.Error("github_handle should be rejected")
	}
	if _, ok := fe.Fields["email"]; ok {
		t.Error("email should be accepted")
	}
	if got := s.Stage(); got != model.StageSignIn {
		t.Errorf("stage = %s, want sign-in", got)
	}
}

func TestSessionBackClearsCandidate(t *testing.T) {
	s := newTestSession(t, &fakeSink{}, nil)
	_ = s.SignIn(ada())

	if err := s.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	snap := s.Snapshot()
	if snap.Stage != model.StageSignIn || snap.Candidate != nil {
		t.Errorf("snapshot after Back = %+v", snap)
	}
}

func TestSessionAnswersOnlyDuringExam(t *testing.T) {
	s := newTestSession(t, &fakeSink{}, nil)

	if err := s.AnswerMCQ(1, 0); !errors.Is(err, ErrExamNotActive) {
		t.Fatalf("AnswerMCQ before exam: %v", err)
	}
	startExam(t, s)
	if err := s.AnswerMCQ(1, 0); err != nil {
		t.Fatalf("AnswerMCQ: %v", err)
	}
	if err := s.AnswerSAQ(1, "text"); err != nil {
		t.Fatalf("AnswerSAQ: %v", err)
	}
	if err := s.AnswerMCQ(1, 9); !errors.Is(err, ErrOptionOutOfRange) {
		t.Fatalf("AnswerMCQ out of range: %v", err)
	}
}

func TestSessionConcurrentSubmitTransmitsOnce(t *testing.T) {
	sink := &fakeSink{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := newTestSession(t, sink, nil)
	startExam(t, s)

	type result struct {
		outcome model.SubmitOutcome
		err     error
	}
	first := make(chan result, 1)
	go func() {
		o, err := s.Submit(context.Background())
		first <- result{o, err}
	}()
	<-sink.entered

	if !s.Snapshot().Submitting {
		t.Error("Submitting should be true while in flight")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := s.Submit(context.Background())
			if err != nil || o != model.SubmitOutcomeIgnored {
				t.Errorf("concurrent submit = %s, %v", o, err)
			}
		}()
	}
	wg.Wait()

	close(sink.gate)
	r := <-first
	if r.err != nil || r.outcome != model.SubmitOutcomeSubmitted {
		t.Fatalf("first submit = %s, %v", r.outcome, r.err)
	}
	if n := len(sink.Calls()); n != 1 {
		t.Fatalf("sink called %d times, want 1", n)
	}
	if got := s.Stage(); got != model.StageSuccess {
		t.Errorf("stage = %s, want success", got)
	}

	if o, err := s.Submit(context.Background()); err != nil || o != model.SubmitOutcomeIgnored {
		t.Errorf("submit after success = %s, %v", o, err)
	}
}

func TestSessionVisibilityLossForcesSubmission(t *testing.T) {
	sink := &fakeSink{}
	obs := &recordingObserver{}
	s := newTestSession(t, sink, func(o *Options) {
		o.Grace = 60 * time.Millisecond
		o.Observer = obs
	})
	startExam(t, s)

	if err := s.AnswerMCQ(3, 1); err != nil {
		t.Fatalf("AnswerMCQ: %v", err)
	}
	v := s.ReportViolation(model.IntegrityEvent{Kind: model.ViolationVisibilityLost})
	if !v.Warning || v.GraceSeconds == 0 {
		t.Fatalf("verdict = %+v", v)
	}
	snap := s.Snapshot()
	if !snap.TabSwitched || !snap.WarningVisible {
		t.Fatalf("snapshot after loss = %+v", snap)
	}

	// Later edits are not part of the forced submission.
	if err := s.AnswerMCQ(3, 2); err != nil {
		t.Fatalf("AnswerMCQ: %v", err)
	}
	s.ReportViolation(model.IntegrityEvent{Kind: model.ViolationVisibilityLost})
	s.ReportViolation(model.IntegrityEvent{Kind: model.ViolationVisibilityRestored})

	eventually(t, 2*time.Second, func() bool { return s.Stage() == model.StageSuccess }, "forced submission")
	time.Sleep(120 * time.Millisecond)

	calls := sink.Calls()
	if len(calls) != 1 {
		t.Fatalf("sink called %d times, want 1", len(calls))
	}
	if !strings.Contains(calls[0].Message, "Tab Switch: Yes\n") {
		t.Errorf("report should carry the tab switch:\n%s", calls[0].Message)
	}
	if !strings.Contains(calls[0].Message, "Selected Answer: <a>\n") {
		t.Errorf("report should use the answers captured at detection:\n%s", calls[0].Message)
	}

	subs := obs.Submissions()
	if len(subs) != 1 || subs[0].Trigger != model.TriggerIntegrity || !subs[0].TabSwitched {
		t.Errorf("submission records = %+v", subs)
	}
	if got := s.Snapshot(); got.TabSwitched || got.WarningVisible {
		t.Errorf("flags should be cleared after submission: %+v", got)
	}
}

func TestSessionResetStartsFresh(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(t, sink, func(o *Options) { o.Grace = time.Hour })
	startExam(t, s)

	_ = s.AnswerMCQ(1, 0)
	_ = s.AnswerSAQ(1, "Block-level element")
	s.ReportViolation(model.IntegrityEvent{Kind: model.ViolationVisibilityLost})

	if o, err := s.Submit(context.Background()); err != nil || o != model.SubmitOutcomeSubmitted {
		t.Fatalf("Submit = %s, %v", o, err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	snap := s.Snapshot()
	if snap.Stage != model.StageSignIn || snap.Candidate != nil {
		t.Fatalf("snapshot after reset = %+v", snap)
	}

	startExam(t, s)
	snap = s.Snapshot()
	if len(snap.Answers.MCQ) != 0 || len(snap.Answers.SAQ) != 0 {
		t.Errorf("answers not cleared: %+v", snap.Answers)
	}
	if snap.TabSwitched {
		t.Error("TabSwitched should be false after reset")
	}
	if snap.RemainingSeconds != 1800 {
		t.Errorf("RemainingSeconds = %d, want 1800", snap.RemainingSeconds)
	}
}

func TestSessionNetworkFailureAllowsRetry(t *testing.T) {
	sink := &fakeSink{err: errors.New("connection refused")}
	s := newTestSession(t, sink, nil)
	events, cancel := s.Subscribe(64)
	defer cancel()
	startExam(t, s)

	_ = s.AnswerMCQ(1, 0)
	o, err := s.Submit(context.Background())
	var nf *NetworkFailure
	if !errors.As(err, &nf) || o != model.SubmitOutcomeFailed {
		t.Fatalf("Submit = %s, %v", o, err)
	}

	snap := s.Snapshot()
	if snap.Stage != model.StageExam || snap.Submitting {
		t.Fatalf("snapshot after failure = %+v", snap)
	}
	if !hasNotice(events, NoticeSubmissionFailed) {
		t.Error("expected submission_failed notice")
	}

	_ = s.AnswerMCQ(1, 2)
	sink.setErr(nil)
	if o, err := s.Submit(context.Background()); err != nil || o != model.SubmitOutcomeSubmitted {
		t.Fatalf("retry = %s, %v", o, err)
	}

	calls := sink.Calls()
	if len(calls) != 2 {
		t.Fatalf("sink called %d times, want 2", len(calls))
	}
	if !strings.Contains(calls[0].Message, "Selected Answer: Hyper Text Markup Language\n") {
		t.Errorf("first attempt:\n%s", calls[0].Message)
	}
	if !strings.Contains(calls[1].Message, "Selected Answer: Hyper Transfer Markup Language\n") {
		t.Errorf("retry should carry the edited answer:\n%s", calls[1].Message)
	}
}

func TestSessionTabSwitchDuringFailedSubmitIsKept(t *testing.T) {
	sink := &fakeSink{
		err:     errors.New("connection refused"),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 4),
	}
	s := newTestSession(t, sink, func(o *Options) { o.Grace = 150 * time.Millisecond })
	startExam(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	<-sink.entered

	s.ReportViolation(model.IntegrityEvent{Kind: model.ViolationVisibilityLost})
	close(sink.gate)
	if err := <-done; err == nil {
		t.Fatal("first submission should fail")
	}

	snap := s.Snapshot()
	if !snap.TabSwitched || !snap.WarningVisible {
		t.Fatalf("tab switch during the failed send was dropped: %+v", snap)
	}

	sink.setErr(nil)
	eventually(t, 2*time.Second, func() bool { return s.Stage() == model.StageSuccess }, "grace submission")

	calls := sink.Calls()
	if len(calls) != 2 {
		t.Fatalf("sink called %d times, want 2", len(calls))
	}
	if !strings.Contains(calls[0].Message, "Tab Switch: No\n") {
		t.Errorf("first attempt predates the switch:\n%s", calls[0].Message)
	}
	if !strings.Contains(calls[1].Message, "Tab Switch: Yes\n") {
		t.Errorf("grace submission should carry the switch:\n%s", calls[1].Message)
	}
}

func hasNotice(events <-chan Event, code string) bool {
	for {
		select {
		case ev := <-events:
			if p, ok := ev.Data.(NoticePayload); ok && ev.Type == EventNotice && p.Code == code {
				return true
			}
		default:
			return false
		}
	}
}

func TestSessionTimerExpirySubmits(t *testing.T) {
	sink := &fakeSink{}
	obs := &recordingObserver{}
	s := newTestSession(t, sink, func(o *Options) {
		o.Duration = 40 * time.Millisecond
		o.Tick = 10 * time.Millisecond
		o.Observer = obs
	})
	startExam(t, s)

	eventually(t, 2*time.Second, func() bool { return s.Stage() == model.StageSuccess }, "timer submission")
	time.Sleep(50 * time.Millisecond)

	if n := len(sink.Calls()); n != 1 {
		t.Fatalf("sink called %d times, want 1", n)
	}
	subs := obs.Submissions()
	if len(subs) != 1 || subs[0].Trigger != model.TriggerTimer {
		t.Errorf("submission records = %+v", subs)
	}
}

func TestSessionManualSubmitCancelsGrace(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(t, sink, func(o *Options) { o.Grace = 50 * time.Millisecond })
	startExam(t, s)

	s.ReportViolation(model.IntegrityEvent{Kind: model.ViolationVisibilityLost})
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	startExam(t, s)

	time.Sleep(120 * time.Millisecond)
	if n := len(sink.Calls()); n != 1 {
		t.Fatalf("sink called %d times, want 1", n)
	}
	if got := s.Stage(); got != model.StageExam {
		t.Errorf("stale grace moved the new attempt to %s", got)
	}
}

func TestSessionSubmitWithoutIdentity(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(t, sink, nil)
	s.mu.Lock()
	s.stage = model.StageExam
	s.mu.Unlock()

	o, err := s.Submit(context.Background())
	if !errors.Is(err, ErrIdentityMissing) || o != model.SubmitOutcomeFailed {
		t.Fatalf("Submit = %s, %v", o, err)
	}
	if len(sink.Calls()) != 0 {
		t.Error("nothing should be transmitted")
	}
	if s.Snapshot().Submitting {
		t.Error("Submitting must stay false")
	}
}

func TestSessionSubmitOutsideExam(t *testing.T) {
	s := newTestSession(t, &fakeSink{}, nil)
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrExamNotActive) {
		t.Fatalf("Submit in sign-in: %v", err)
	}
}

func TestSessionViolationsIgnoredOutsideExam(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestSession(t, &fakeSink{}, func(o *Options) { o.Observer = obs })

	v := s.ReportViolation(model.IntegrityEvent{Kind: model.ViolationVisibilityLost})
	if !v.Ignored {
		t.Fatalf("verdict = %+v", v)
	}
	if s.Snapshot().TabSwitched {
		t.Error("TabSwitched must not change outside the exam")
	}
	if len(obs.Violations()) != 0 {
		t.Error("nothing should be recorded")
	}
}

func TestSessionPasteNoticeIsLocalized(t *testing.T) {
	cat, err := i18n.NewCatalog("en", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	obs := &recordingObserver{}
	s := newTestSession(t, &fakeSink{}, func(o *Options) {
		o.Translator = cat
		o.Lang = "id"
		o.Observer = obs
	})
	events, cancel := s.Subscribe(64)
	defer cancel()
	startExam(t, s)

	v := s.ReportViolation(model.IntegrityEvent{Kind: model.ViolationPaste})
	if !v.Suppress || v.Notice != NoticePasteBlocked {
		t.Fatalf("verdict = %+v", v)
	}
	if v.Message != "Salin-tempel tidak diizinkan selama ujian!" {
		t.Errorf("message = %q", v.Message)
	}
	if !hasNotice(events, NoticePasteBlocked) {
		t.Error("expected paste notice event")
	}
	if s.Snapshot().TabSwitched {
		t.Error("paste must not set TabSwitched")
	}

	s.ReportViolation(model.IntegrityEvent{Kind: model.ViolationModifierChord, Key: "a"})
	s.ReportViolation(model.IntegrityEvent{Kind: model.ViolationModifierChord, Ctrl: true, Key: "c"})
	recs := obs.Violations()
	if len(recs) != 2 || recs[1].Key != "c" || recs[0].Candidate != "ada@example.com" {
		t.Errorf("violation records = %+v", recs)
	}
}

func TestSessionPublishesTicks(t *testing.T) {
	s := newTestSession(t, &fakeSink{}, func(o *Options) { o.Tick = 10 * time.Millisecond })
	events, cancel := s.Subscribe(64)
	defer cancel()
	startExam(t, s)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type != EventTick {
				continue
			}
			p := ev.Data.(TickPayload)
			if p.RemainingSeconds != 1800 {
				t.Errorf("RemainingSeconds = %d", p.RemainingSeconds)
			}
			return
		case <-deadline:
			t.Fatal("no tick event")
		}
	}
}
