package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nigersavoir/savoir-client/internal/api"
	"github.com/nigersavoir/savoir-client/internal/cart"
	"github.com/nigersavoir/savoir-client/internal/domain"
	"github.com/nigersavoir/savoir-client/internal/session"
	"go.uber.org/zap"
)

type OrderAPI interface {
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (api.Order, error)
}

// CheckoutService turns the local cart into an order. The cart is cleared only
// once the server has accepted the order; on failure it is left untouched.
type CheckoutService struct {
	api      OrderAPI
	sessions *session.Manager
	cart     *cart.Manager
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCheckoutService(orderAPI OrderAPI, sessions *session.Manager, c *cart.Manager, timeout time.Duration, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		api:      orderAPI,
		sessions: sessions,
		cart:     c,
		timeout:  timeout,
		logger:   logger,
	}
}

func (s *CheckoutService) Checkout(ctx context.Context) (api.Order, error) {
	if !s.sessions.IsAuthenticated(ctx) {
		return api.Order{}, domain.ErrAuthenticationRequired
	}

	lines := s.cart.Lines(ctx)
	if len(lines) == 0 {
		return api.Order{}, ErrEmptyCart
	}

	req := api.CreateOrderRequest{Items: make([]api.OrderItemRequest, 0, len(lines))}
	for _, l := range lines {
		req.Items = append(req.Items, api.OrderItemRequest{BookID: l.ItemID, Quantity: l.Quantity})
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	order, err := s.api.CreateOrder(ctx, req)
	if err != nil {
		return api.Order{}, fmt.Errorf("create order: %w", err)
	}

	if err := s.cart.Clear(ctx); err != nil {
		s.logger.Warn("order placed but cart not cleared", zap.Int64("order_id", order.ID), zap.Error(err))
	}
	s.logger.Info("order placed", zap.Int64("order_id", order.ID), zap.String("status", order.Status))
	return order, nil
}
