package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

type memProctorStore struct {
	byEmail map[string]*model.Proctor
	nextID  int
	err     error
}

func newMemProctorStore() *memProctorStore {
	return &memProctorStore{byEmail: map[string]*model.Proctor{}, nextID: 1}
}

func (m *memProctorStore) GetByEmail(ctx context.Context, email string) (*model.Proctor, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProctorStore) GetByID(ctx context.Context, id int) (*model.Proctor, error) {
	for _, p := range m.byEmail {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memProctorStore) Create(ctx context.Context, p *model.Proctor) error {
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.byEmail[p.Email] = &cp
	return nil
}

func TestProctorCreateAndLogin(t *testing.T) {
	auth := NewAuthService(testConfig())
	svc := NewProctorService(newMemProctorStore(), auth, zerolog.Nop())
	ctx := context.Background()

	p, err := svc.Create(ctx, "  Grace@Example.com ", " Grace ", "password123")
	mustNotFail(t, err)
	if p.Email != "grace@example.com" || p.Name != "Grace" || p.PasswordHash == "password123" {
		t.Fatalf("created proctor = %+v", p)
	}

	resp, err := svc.Login(ctx, model.ProctorLoginRequest{Email: "GRACE@example.com", Password: "password123"})
	mustNotFail(t, err)
	if resp.Proctor.ID != p.ID || resp.Token == "" {
		t.Fatalf("login response = %+v", resp)
	}

	claims, err := auth.ValidateToken(resp.Token)
	mustNotFail(t, err)
	if claims.TokenType != TokenTypeProctor || claims.ProctorID != p.ID {
		t.Errorf("claims = %+v", claims)
	}
}

func TestProctorLoginFailures(t *testing.T) {
	store := newMemProctorStore()
	svc := NewProctorService(store, NewAuthService(testConfig()), zerolog.Nop())
	ctx := context.Background()
	_, err := svc.Create(ctx, "grace@example.com", "Grace", "password123")
	mustNotFail(t, err)

	if _, err := svc.Login(ctx, model.ProctorLoginRequest{Email: "nobody@example.com", Password: "password123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: %v", err)
	}
	if _, err := svc.Login(ctx, model.ProctorLoginRequest{Email: "grace@example.com", Password: "nope-nope"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}

	store.err = errors.New("db down")
	if _, err := svc.Login(ctx, model.ProctorLoginRequest{Email: "grace@example.com", Password: "password123"}); err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("store failure should surface as an internal error, got %v", err)
	}
}
