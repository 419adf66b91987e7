package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/questionbank"
)

// ErrSessionNotFound is returned for unknown or evicted sessions.
var ErrSessionNotFound = errors.New("session not found")

// SessionService is the in-memory registry of exam sessions.
type SessionService struct {
	cfg      *config.Config
	bank     *questionbank.Bank
	sink     exam.Sink
	tr       exam.Translator
	observer exam.Observer
	auth     *AuthService
	log      zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*exam.Session
}

// NewSessionService creates a new SessionService. observer may be nil.
func NewSessionService(
	cfg *config.Config,
	bank *questionbank.Bank,
	sink exam.Sink,
	tr exam.Translator,
	observer exam.Observer,
	auth *AuthService,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:      cfg,
		bank:     bank,
		sink:     sink,
		tr:       tr,
		observer: observer,
		auth:     auth,
		log:      log.With().Str("component", "session_service").Logger(),
		sessions: make(map[uuid.UUID]*exam.Session),
	}
}

// Bank returns the question bank every session is built from.
func (s *SessionService) Bank() *questionbank.Bank { return s.bank }

// Create opens a session in stage sign-in and signs its token. lang is the
// candidate's language preference for notices.
func (s *SessionService) Create(lang string) (*model.CreateSessionResponse, error) {
	if lang == "" {
		lang = s.cfg.DefaultLang
	}

	id := uuid.New()
	token, err := s.auth.GenerateSessionToken(id)
	if err != nil {
		return nil, err
	}

	sess := exam.NewSession(exam.Options{
		ID:             id,
		Bank:           s.bank,
		Sink:           s.sink,
		Translator:     s.tr,
		Observer:       s.observer,
		Logger:         s.log,
		Duration:       s.cfg.ExamDuration,
		Grace:          s.cfg.GracePeriod,
		Tick:           s.cfg.TickInterval,
		CancelOnReturn: s.cfg.GraceCancelOnReturn,
		SinkTimeout:    s.cfg.SinkTimeout,
		Location:       s.cfg.ReportLocation,
		Lang:           lang,
	})

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Info().Str("session_id", id.String()).Msg("Session opened")
	return &model.CreateSessionResponse{Token: token, Session: sess.Snapshot()}, nil
}

// Get returns a live session.
func (s *SessionService) Get(id uuid.UUID) (*exam.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// EvictIdle closes sessions untouched for longer than ttl. A running exam is
// kept until its countdown ends it; one whose countdown already ran out is
// evicted like any other idle session.
func (s *SessionService) EvictIdle(now time.Time, ttl time.Duration) int {
	var victims []*exam.Session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if !sess.Evictable(now, ttl) {
			continue
		}
		delete(s.sessions, id)
		victims = append(victims, sess)
	}
	s.mu.Unlock()

	for _, sess := range victims {
		sess.Close()
	}
	return len(victims)
}

// Stats counts live sessions per stage.
func (s *SessionService) Stats() model.LiveSessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.LiveSessionStats{ByStage: make(map[model.Stage]int)}
	for _, sess := range s.sessions {
		stats.ByStage[sess.Stage()]++
		stats.Total++
	}
	return stats
}

// CloseAll disarms and forgets every session. Used at shutdown.
func (s *SessionService) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uuid.UUID]*exam.Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	s.log.Info().Int("count", len(sessions)).Msg("All sessions closed")
}
