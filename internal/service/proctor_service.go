package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// ProctorStore is the persistence the proctor service needs.
type ProctorStore interface {
	GetByID(ctx context.Context, id int) (*model.Proctor, error)
	GetByEmail(ctx context.Context, email string) (*model.Proctor, error)
	Create(ctx context.Context, p *model.Proctor) error
}

// ProctorService handles proctor accounts and login.
type ProctorService struct {
	repo ProctorStore
	auth *AuthService
	log  zerolog.Logger
}

// NewProctorService creates a new ProctorService.
func NewProctorService(repo ProctorStore, auth *AuthService, log zerolog.Logger) *ProctorService {
	return &ProctorService{
		repo: repo,
		auth: auth,
		log:  log.With().Str("component", "proctor_service").Logger(),
	}
}

// Login checks the credentials and issues a proctor token.
func (s *ProctorService) Login(ctx context.Context, req model.ProctorLoginRequest) (*model.ProctorLoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	p, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup proctor: %w", err)
	}
	if err := s.auth.CheckPassword(p.PasswordHash, req.Password); err != nil {
		return nil, err
	}

	token, err := s.auth.GenerateProctorToken(p.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("proctor_id", p.ID).Msg("Proctor logged in")
	return &model.ProctorLoginResponse{Token: token, Proctor: *p}, nil
}

// GetByID loads a proctor account.
func (s *ProctorService) GetByID(ctx context.Context, id int) (*model.Proctor, error) {
	return s.repo.GetByID(ctx, id)
}

// Create registers a proctor with a freshly hashed password.
func (s *ProctorService) Create(ctx context.Context, email, name, password string) (*model.Proctor, error) {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	p := &model.Proctor{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create proctor: %w", err)
	}
	return p, nil
}
