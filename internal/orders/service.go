package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshpress-app/freshpress-backend/internal/dispatch"
	"github.com/freshpress-app/freshpress-backend/pkg/db/models"
	"github.com/freshpress-app/freshpress-backend/pkg/enums"
	"github.com/freshpress-app/freshpress-backend/pkg/errors"
	"github.com/freshpress-app/freshpress-backend/pkg/logger"
)

// Service is the storefront order intake: it persists checkouts and hands
// them to the dispatch engine.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderView, error)
}

// ServiceParams configure the orders service.
type ServiceParams struct {
	Logger   *logger.Logger
	Repo     Repository
	Notifier dispatch.Notifier
	Dispatch dispatch.Repository
}

type service struct {
	logg     *logger.Logger
	repo     Repository
	notifier dispatch.Notifier
	dispatch dispatch.Repository
}

// NewService wires the orders service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("dispatch notifier required")
	}
	if params.Dispatch == nil {
		return nil, fmt.Errorf("dispatch repository required")
	}
	return &service{
		logg:     params.Logger,
		repo:     params.Repo,
		notifier: params.Notifier,
		dispatch: params.Dispatch,
	}, nil
}

// CreateOrder persists the checkout and triggers dispatch. A dispatch failure
// never fails the checkout; the order is stored either way and the response
// reports whether couriers were notified.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error) {
	order := buildOrder(input)

	created, err := s.repo.Create(ctx, order)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "creating order")
	}

	ctx = s.logg.WithOrderID(ctx, created.ID.String())
	s.logg.Info(ctx, fmt.Sprintf("order #%d created", created.OrderNumber))

	notified, err := s.notifier.NotifyOrder(ctx, created.ID)
	if err != nil {
		s.logg.Error(ctx, "dispatching order notification failed", err)
		notified = false
	}

	view := NewOrderView(created, notified)
	return &view, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, errors.New(errors.CodeNotFound, "order not found")
	}

	notified := false
	if row, err := s.dispatch.FindByOrder(ctx, orderID); err == nil && row != nil {
		notified = row.LastNotificationAt != nil
	}

	view := NewOrderView(order, notified)
	return &view, nil
}

// buildOrder computes line totals and the order total from the payload. Money
// math stays in decimals end to end.
func buildOrder(input CreateOrderInput) *models.Order {
	items := make([]models.OrderItem, 0, len(input.Items))
	total := decimal.Zero
	for _, item := range input.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty)))
		total = total.Add(lineTotal)
		items = append(items, models.OrderItem{
			Name:      item.Name,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Total:     lineTotal,
		})
	}
	return &models.Order{
		CustomerName:    input.CustomerName,
		CustomerPhone:   input.CustomerPhone,
		CustomerEmail:   input.CustomerEmail,
		DeliveryAddress: input.DeliveryAddress,
		Notes:           input.Notes,
		TotalAmount:     total,
		Status:          enums.OrderStatusPending,
		Items:           items,
	}
}
