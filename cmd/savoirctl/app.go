package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nigersavoir/savoir-client/internal/api"
	"github.com/nigersavoir/savoir-client/internal/bus"
	"github.com/nigersavoir/savoir-client/internal/cart"
	"github.com/nigersavoir/savoir-client/internal/config"
	"github.com/nigersavoir/savoir-client/internal/reaction"
	"github.com/nigersavoir/savoir-client/internal/service"
	"github.com/nigersavoir/savoir-client/internal/session"
	"github.com/nigersavoir/savoir-client/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds the components shared by every command. The store is opened
// lazily so commands that do not need it (devserver) never touch it.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	store    store.WatchableStore
	closers  []func() error
	bus      *bus.Bus
	sessions *session.Manager
	cart     *cart.Manager
	client   *api.Client
	accounts *service.AccountService
	checkout *service.CheckoutService
}

func (a *app) open(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.store = s
	a.bus = bus.New(a.logger)
	a.sessions = session.NewManager(s, a.bus, a.logger)
	a.cart = cart.NewManager(s, a.bus, a.logger)
	a.client = api.NewClient(a.cfg.APIURL, a.sessions, a.cfg.RequestTimeout,
		api.WithLogger(a.logger),
		api.WithCircuitBreaker(a.cfg.BreakerThreshold, a.cfg.BreakerCooldown))
	a.accounts = service.NewAccountService(a.client, a.sessions, a.logger)
	a.checkout = service.NewCheckoutService(a.client, a.sessions, a.cart, a.cfg.MutationTimeout, a.logger)
	return nil
}

func (a *app) openStore(ctx context.Context) (store.WatchableStore, error) {
	switch a.cfg.Store {
	case config.StoreMemory:
		return store.NewMemoryStore().Open(), nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Debug("redis store ready", zap.String("addr", a.cfg.RedisAddr))
		return store.NewRedisStore(client, a.cfg.RedisNamespace, a.logger), nil

	case config.StoreSQLite:
		s, err := store.OpenSQLite(a.cfg.SQLitePath, a.cfg.PollInterval, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		a.logger.Debug("sqlite store ready", zap.String("path", a.cfg.SQLitePath))
		return s, nil
	}
	return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, a.cfg.Store)
}

// reactions returns a synchronizer for one subject kind. Failed toggles are
// reported through report.
func (a *app) reactions(kind api.SubjectKind, report func(subjectID int64, err error)) *reaction.Synchronizer {
	return reaction.New(a.client.Reactions(kind), a.sessions, a.bus, a.logger,
		reaction.WithTimeout(a.cfg.MutationTimeout),
		reaction.WithFailureHandler(report))
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
