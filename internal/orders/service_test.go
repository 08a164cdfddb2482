package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshpress-app/freshpress-backend/internal/dispatch"
	"github.com/freshpress-app/freshpress-backend/pkg/db/models"
	"github.com/freshpress-app/freshpress-backend/pkg/enums"
	pkgerrors "github.com/freshpress-app/freshpress-backend/pkg/errors"
	"github.com/freshpress-app/freshpress-backend/pkg/logger"
)

type fakeOrdersRepo struct {
	orders    map[uuid.UUID]*models.Order
	createErr error
	nextNum   int64
}

func newFakeOrdersRepo() *fakeOrdersRepo {
	return &fakeOrdersRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (f *fakeOrdersRepo) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextNum++
	order.ID = uuid.New()
	order.OrderNumber = f.nextNum
	order.CreatedAt = time.Now().UTC()
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeOrdersRepo) Find(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	return f.orders[orderID], nil
}

func (f *fakeOrdersRepo) UpdateStatus(_ context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	if order, ok := f.orders[orderID]; ok {
		order.Status = status
	}
	return nil
}

type fakeNotifier struct {
	sent bool
	err  error

	notified []uuid.UUID
}

func (f *fakeNotifier) NotifyOrder(_ context.Context, orderID uuid.UUID) (bool, error) {
	f.notified = append(f.notified, orderID)
	return f.sent, f.err
}

type stubDispatchRepo struct {
	rows map[uuid.UUID]*models.OrderDispatch
}

func (s *stubDispatchRepo) FindByOrder(_ context.Context, orderID uuid.UUID) (*models.OrderDispatch, error) {
	return s.rows[orderID], nil
}

func (s *stubDispatchRepo) UpsertPending(context.Context, uuid.UUID, time.Time) error { return nil }

func (s *stubDispatchRepo) Claim(context.Context, uuid.UUID, int64, time.Time) (bool, error) {
	return false, nil
}

func (s *stubDispatchRepo) MarkDelivered(context.Context, uuid.UUID, int64, time.Time) (bool, error) {
	return false, nil
}

func (s *stubDispatchRepo) TouchReminder(context.Context, uuid.UUID, time.Time) error { return nil }

func (s *stubDispatchRepo) ListActive(context.Context) ([]dispatch.ActiveDispatch, error) {
	return nil, nil
}

func (s *stubDispatchRepo) Expire(context.Context, uuid.UUID) error { return nil }

type ordersFixture struct {
	svc      Service
	repo     *fakeOrdersRepo
	notifier *fakeNotifier
	dispatch *stubDispatchRepo
}

func ordersTestFixture(t *testing.T) *ordersFixture {
	t.Helper()

	fx := &ordersFixture{
		repo:     newFakeOrdersRepo(),
		notifier: &fakeNotifier{sent: true},
		dispatch: &stubDispatchRepo{rows: map[uuid.UUID]*models.OrderDispatch{}},
	}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Repo:     fx.repo,
		Notifier: fx.notifier,
		Dispatch: fx.dispatch,
	})
	require.NoError(t, err)
	fx.svc = svc
	return fx
}

func checkoutInput() CreateOrderInput {
	return CreateOrderInput{
		CustomerName:    "Grace",
		CustomerPhone:   "+15550001111",
		DeliveryAddress: "12 Main St",
		Items: []CreateOrderItem{
			{Name: "Green Detox", Qty: 2, UnitPrice: decimal.RequireFromString("7.25")},
			{Name: "Berry Blast", Qty: 1, UnitPrice: decimal.RequireFromString("10.00")},
		},
	}
}

func TestCreateOrder_ComputesDecimalTotals(t *testing.T) {
	fx := ordersTestFixture(t)

	view, err := fx.svc.CreateOrder(context.Background(), checkoutInput())
	require.NoError(t, err)

	assert.True(t, view.TotalAmount.Equal(decimal.RequireFromString("24.50")),
		"got total %s", view.TotalAmount)
	require.Len(t, view.Items, 2)
	assert.True(t, view.Items[0].Total.Equal(decimal.RequireFromString("14.50")))
	assert.True(t, view.Items[1].Total.Equal(decimal.RequireFromString("10.00")))
	assert.EqualValues(t, 1, view.OrderNumber)
	assert.True(t, view.Notified)
	assert.Equal(t, []uuid.UUID{view.ID}, fx.notifier.notified)
}

func TestCreateOrder_NotifierFailureDoesNotFailCheckout(t *testing.T) {
	fx := ordersTestFixture(t)
	fx.notifier.sent = false
	fx.notifier.err = errors.New("telegram unavailable")

	view, err := fx.svc.CreateOrder(context.Background(), checkoutInput())
	require.NoError(t, err, "dispatch failures must never lose the order")

	assert.False(t, view.Notified)
	stored, err := fx.repo.Find(context.Background(), view.ID)
	require.NoError(t, err)
	require.NotNil(t, stored, "order must be persisted despite the notifier error")
}

func TestCreateOrder_RepoErrorSurfaces(t *testing.T) {
	fx := ordersTestFixture(t)
	fx.repo.createErr = errors.New("connection reset")

	_, err := fx.svc.CreateOrder(context.Background(), checkoutInput())
	require.Error(t, err)
	assert.Empty(t, fx.notifier.notified, "no dispatch attempt for an unsaved order")
}

func TestGetOrder_NotifiedReflectsDispatchRow(t *testing.T) {
	fx := ordersTestFixture(t)

	view, err := fx.svc.CreateOrder(context.Background(), checkoutInput())
	require.NoError(t, err)

	got, err := fx.svc.GetOrder(context.Background(), view.ID)
	require.NoError(t, err)
	assert.False(t, got.Notified, "no dispatch row yet")

	now := time.Now().UTC()
	fx.dispatch.rows[view.ID] = &models.OrderDispatch{
		OrderID:            view.ID,
		Status:             enums.DispatchStatusPending,
		LastNotificationAt: &now,
	}

	got, err = fx.svc.GetOrder(context.Background(), view.ID)
	require.NoError(t, err)
	assert.True(t, got.Notified)
	assert.Equal(t, "Grace", got.CustomerName)
	require.Len(t, got.Items, 2)
}

func TestGetOrder_Missing(t *testing.T) {
	fx := ordersTestFixture(t)

	_, err := fx.svc.GetOrder(context.Background(), uuid.New())
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}
