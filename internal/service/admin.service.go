package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/observability"
	"storefront/internal/repo"
)

type AdminService interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string) (*domain.Order, error)
	AddTracking(ctx context.Context, orderID, link string) (*domain.Order, error)
}

type adminService struct {
	orders   repo.OrderRepo
	notifier notify.Notifier
	deliver  bestEffort
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewAdminService(
	orders repo.OrderRepo,
	notifier notify.Notifier,
	logger *zap.Logger,
	metrics *observability.Metrics,
) AdminService {
	logger = nopIfNil(logger).Named("admin")
	return &adminService{
		orders:   orders,
		notifier: notifier,
		deliver:  bestEffort{logger: logger, metrics: metrics},
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *adminService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, storeErr("list orders", err)
	}
	return orders, nil
}

func (s *adminService) UpdateStatus(ctx context.Context, orderID, status string) (*domain.Order, error) {
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	current, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, storeErr("find order", err)
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, current.Status, next)
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, current.Status, next)
	if err != nil {
		return nil, storeErr("update status", err)
	}

	s.metrics.StatusUpdated(string(next))
	s.logger.Info("order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next)),
	)

	s.deliver.send(ctx, "status_update", orderID, func(ctx context.Context) error {
		return s.notifier.SendStatusUpdate(ctx, *updated)
	})
	return updated, nil
}

func (s *adminService) AddTracking(ctx context.Context, orderID, link string) (*domain.Order, error) {
	link = strings.TrimSpace(link)
	if err := validateTrackingLink(link); err != nil {
		return nil, err
	}

	updated, err := s.orders.SetTrackingLink(ctx, orderID, link)
	if err != nil {
		return nil, storeErr("set tracking link", err)
	}
	s.logger.Info("tracking link set", zap.String("order_id", orderID))

	// Covers shipments declared before a tracking link was known.
	if updated.Status == domain.OrderShipped {
		s.deliver.send(ctx, "status_update", orderID, func(ctx context.Context) error {
			return s.notifier.SendStatusUpdate(ctx, *updated)
		})
	}
	return updated, nil
}

func validateTrackingLink(link string) error {
	if link == "" {
		return &domain.ValidationError{Field: "tracking_link", Reason: "is required"}
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &domain.ValidationError{Field: "tracking_link", Reason: "must be an absolute http(s) URL"}
	}
	return nil
}
