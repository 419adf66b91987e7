package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/notify"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		SessionTokenTTL: time.Hour,
		ProctorTokenTTL: time.Hour,
		BcryptCost:      bcrypt.MinCost,
		ExamDuration:    30 * time.Minute,
		GracePeriod:     3 * time.Second,
		TickInterval:    time.Second,
		SinkTimeout:     time.Second,
		ReportLocation:  time.UTC,
		DefaultLang:     "en",
	}
}

type nopSink struct {
	mu    sync.Mutex
	calls int
}

func (s *nopSink) Send(ctx context.Context, p notify.Payload) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return nil
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSink) Send(ctx context.Context, p notify.Payload) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return errors.New("mail relay unavailable")
}

func (s *failingSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func mustNotFail(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
