package service

import (
	"context"
	"fmt"

	"github.com/nigersavoir/savoir-client/internal/api"
	"github.com/nigersavoir/savoir-client/internal/domain"
	"github.com/nigersavoir/savoir-client/internal/session"
	"go.uber.org/zap"
)

type AuthAPI interface {
	Login(ctx context.Context, req api.LoginRequest) (api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (api.AuthResponse, error)
}

// AccountService runs the login, registration and logout flows. A session is
// stored only after the server has issued a usable token.
type AccountService struct {
	api      AuthAPI
	sessions *session.Manager
	logger   *zap.Logger
}

func NewAccountService(authAPI AuthAPI, sessions *session.Manager, logger *zap.Logger) *AccountService {
	return &AccountService{
		api:      authAPI,
		sessions: sessions,
		logger:   logger,
	}
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	resp, err := s.api.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return s.startSession(ctx, resp)
}

func (s *AccountService) Register(ctx context.Context, req api.RegisterRequest) (*domain.User, error) {
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return s.startSession(ctx, resp)
}

func (s *AccountService) Logout(ctx context.Context) error {
	return s.sessions.ClearSession(ctx)
}

func (s *AccountService) startSession(ctx context.Context, resp api.AuthResponse) (*domain.User, error) {
	if _, ok := domain.ValidToken(resp.Token); !ok {
		return nil, fmt.Errorf("%w: auth response without token", api.ErrMalformedResponse)
	}
	user := resp.User()
	if err := s.sessions.SetSession(ctx, resp.Token, user); err != nil {
		return nil, err
	}
	s.logger.Info("session started", zap.String("email", user.EmailAddress), zap.String("role", user.Role))
	return user, nil
}
