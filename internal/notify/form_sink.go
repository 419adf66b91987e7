// Package notify delivers exam reports to the external form-notification sink.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrMissingAccessKey is returned before any network I/O when no sink
// credential is configured.
var ErrMissingAccessKey = errors.New("notification sink access key is not configured")

// Payload is one report to deliver.
type Payload struct {
	Subject string
	Message string
}

// StatusError is returned when the sink answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("notification sink returned %d", e.StatusCode)
	}
	return fmt.Sprintf("notification sink returned %d: %s", e.StatusCode, e.Body)
}

// Config describes the sink endpoint.
type Config struct {
	URL       string
	AccessKey string
	FromName  string
	Timeout   time.Duration
}

// FormSink posts reports as application/x-www-form-urlencoded requests.
// One call per Send, no retry.
type FormSink struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

// NewFormSink builds a sink. A nil client gets one with cfg.Timeout.
func NewFormSink(cfg Config, client *http.Client, log zerolog.Logger) *FormSink {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &FormSink{
		cfg:    cfg,
		client: client,
		log:    log.With().Str("component", "notify").Logger(),
	}
}

// Send delivers p. It succeeds only on a 2xx answer.
func (s *FormSink) Send(ctx context.Context, p Payload) error {
	if strings.TrimSpace(s.cfg.AccessKey) == "" {
		return ErrMissingAccessKey
	}

	form := url.Values{}
	form.Set("access_key", s.cfg.AccessKey)
	form.Set("from_name", s.cfg.FromName)
	form.Set("subject", p.Subject)
	form.Set("message", p.Message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sink request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to notification sink: %w", err)
	}
	defer resp.Body.Close()

	s.log.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("subject", p.Subject).
		Msg("Sink responded")

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
