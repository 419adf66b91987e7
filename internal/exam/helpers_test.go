package exam

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/notify"
	"github.com/stemsi/exstem-proctor/internal/questionbank"
)

func testBank(t *testing.T) *questionbank.Bank {
	t.Helper()
	b, err := questionbank.Default()
	if err != nil {
		t.Fatalf("questionbank.Default: %v", err)
	}
	return b
}

// fakeSink records payloads. When gate is set, Send blocks until it is closed.
type fakeSink struct {
	mu      sync.Mutex
	calls   []notify.Payload
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeSink) Send(ctx context.Context, p notify.Payload) error {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	err, gate, entered := f.err, f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeSink) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSink) Calls() []notify.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Payload(nil), f.calls...)
}

type recordingObserver struct {
	mu          sync.Mutex
	violations  []model.ViolationRecord
	submissions []model.SubmissionRecord
}

func (o *recordingObserver) ViolationObserved(rec model.ViolationRecord) {
	o.mu.Lock()
	o.violations = append(o.violations, rec)
	o.mu.Unlock()
}

func (o *recordingObserver) SubmissionAttempted(rec model.SubmissionRecord) {
	o.mu.Lock()
	o.submissions = append(o.submissions, rec)
	o.mu.Unlock()
}

func (o *recordingObserver) Submissions() []model.SubmissionRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.SubmissionRecord(nil), o.submissions...)
}

func (o *recordingObserver) Violations() []model.ViolationRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.ViolationRecord(nil), o.violations...)
}

func newTestSession(t *testing.T, sink Sink, mutate func(*Options)) *Session {
	t.Helper()
	opts := Options{
		Bank:     testBank(t),
		Sink:     sink,
		Logger:   zerolog.Nop(),
		Duration: 30 * time.Minute,
		Grace:    3 * time.Second,
		Tick:     time.Second,
		Location: time.UTC,
	}
	if mutate != nil {
		mutate(&opts)
	}
	s := NewSession(opts)
	t.Cleanup(s.Close)
	return s
}

func ada() model.Candidate {
	return model.Candidate{Name: "Ada Lovelace", Email: "ada@example.com", GitHubHandle: "ada"}
}

// startExam drives a fresh session into the exam stage.
func startExam(t *testing.T, s *Session) {
	t.Helper()
	if err := s.SignIn(ada()); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
