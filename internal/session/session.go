package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nigersavoir/savoir-client/internal/bus"
	"github.com/nigersavoir/savoir-client/internal/domain"
	"github.com/nigersavoir/savoir-client/internal/store"
	"go.uber.org/zap"
)

const (
	KeyToken = "auth_token"
	KeyUser  = "auth_user"
)

var ErrInvalidToken = errors.New("invalid auth token")

// Manager owns the auth token and cached profile in the store. Reads never
// fail: anything unreadable is reported as logged out.
type Manager struct {
	store  store.Store
	bus    *bus.Bus
	logger *zap.Logger
}

func NewManager(s store.Store, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		store:  s,
		bus:    b,
		logger: logger,
	}
}

// GetToken returns the stored bearer token, or false when there is none.
func (m *Manager) GetToken(ctx context.Context) (string, bool) {
	raw, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("failed to read auth token", zap.Error(err))
		}
		return "", false
	}
	return domain.ValidToken(raw)
}

func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	_, ok := m.GetToken(ctx)
	return ok
}

// GetUser returns the cached profile. Missing or malformed entries yield false.
func (m *Manager) GetUser(ctx context.Context) (*domain.User, bool) {
	raw, err := m.store.Get(ctx, KeyUser)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("failed to read auth user", zap.Error(err))
		}
		return nil, false
	}

	user, err := parseUser(raw)
	if err != nil {
		m.logger.Warn("ignoring malformed auth user", zap.Error(err))
		return nil, false
	}
	return user, true
}

// Current returns the session only when a usable token is stored. A cached
// user without a token is not a session.
func (m *Manager) Current(ctx context.Context) (domain.Session, bool) {
	token, ok := m.GetToken(ctx)
	if !ok {
		return domain.Session{}, false
	}
	user, _ := m.GetUser(ctx)
	return domain.Session{Token: token, User: user}, true
}

// SetSession writes token and user together and publishes session_changed
// once the write is done. A nil user removes any cached profile.
func (m *Manager) SetSession(ctx context.Context, token string, user *domain.User) error {
	token, ok := domain.ValidToken(token)
	if !ok {
		return ErrInvalidToken
	}

	set := map[string]string{KeyToken: token}
	var del []string
	if user == nil {
		del = []string{KeyUser}
	} else {
		encoded, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("marshal auth user: %w", err)
		}
		set[KeyUser] = string(encoded)
	}
	if err := m.store.Update(ctx, set, del); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	m.bus.Publish(bus.TopicSessionChanged)
	return nil
}

// ClearSession removes token and user. Clearing an empty session is fine.
func (m *Manager) ClearSession(ctx context.Context) error {
	if err := m.store.Delete(ctx, KeyToken, KeyUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	m.bus.Publish(bus.TopicSessionChanged)
	return nil
}

func (m *Manager) Subscribe(fn func()) bus.Unsubscribe {
	return m.bus.Subscribe(bus.TopicSessionChanged, fn)
}

func parseUser(raw string) (*domain.User, error) {
	var user *domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("unmarshal auth user: %w", err)
	}
	if user == nil {
		return nil, errors.New("auth user is null")
	}
	if user.EmailAddress == "" && user.DisplayName == "" {
		return nil, errors.New("auth user has neither name nor email")
	}
	return user, nil
}
