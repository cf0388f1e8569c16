package refund

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storecraft/refund-server/internal/module/order"
	"github.com/storecraft/refund-server/internal/module/refund/gateway"
	apperrors "github.com/storecraft/refund-server/internal/shared/errors"
	"github.com/storecraft/refund-server/internal/shared/metrics"
)

// --- Mocks ---

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if ord := args.Get(0); ord != nil {
		return ord.(*order.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepo) GetOrderByNo(ctx context.Context, orderNo string) (*order.Order, error) {
	args := m.Called(ctx, orderNo)
	if ord := args.Get(0); ord != nil {
		return ord.(*order.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepo) MarkAsRefunded(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockRefundRepo struct {
	mock.Mock
}

func (m *mockRefundRepo) Create(ctx context.Context, refund *Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

func (m *mockRefundRepo) GetByID(ctx context.Context, id uuid.UUID) (*Refund, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*Refund), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRefundRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Refund, error) {
	args := m.Called(ctx, orderID)
	if r := args.Get(0); r != nil {
		return r.([]Refund), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRefundRepo) TotalRefunded(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockRefundRepo) RefundedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int64, error) {
	args := m.Called(ctx, orderID)
	if r := args.Get(0); r != nil {
		return r.(map[uuid.UUID]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

// stubGateway runs fn for each refund call.
type stubGateway struct {
	name string
	fn   func(ctx context.Context, req *gateway.Request) (*gateway.Result, error)
}

func (g *stubGateway) Name() string { return g.name }

func (g *stubGateway) CreateRefund(ctx context.Context, req *gateway.Request) (*gateway.Result, error) {
	return g.fn(ctx, req)
}

// --- Fixtures ---

var testOrderID = uuid.MustParse("99999999-9999-9999-9999-999999999999")

func testOrder() *order.Order {
	return &order.Order{
		ID:       testOrderID,
		OrderNo:  "ORD-1001",
		Status:   order.OrderStatusPaid,
		Total:    decimal.RequireFromString("117.30"),
		Currency: "USD",
		Gateway:  "manual",
		LineItems: []order.LineItem{
			{
				ID:        testItemID,
				OrderID:   testOrderID,
				ProductID: uuid.New(),
				Name:      "Blue Hoodie",
				UnitPrice: decimal.RequireFromString("20.00"),
				Quantity:  3,
				TotalTax:  decimal.RequireFromString("10.00"),
			},
		},
	}
}

func newTestService(t *testing.T, orderRepo order.Repository, refundRepo Repository, gateways ...gateway.Gateway) *Service {
	t.Helper()
	log := zap.NewNop()
	orders := order.NewService(orderRepo, refundRepo, log)
	registry := gateway.NewRegistry()
	registry.Register(gateway.NewManualGateway())
	for _, gw := range gateways {
		registry.Register(gw)
	}
	m := metrics.New("test", prometheus.NewRegistry())
	return NewService(orders, refundRepo, registry, m, log, Config{
		SessionTTL:    time.Minute,
		SweepInterval: time.Minute,
	})
}

// --- Tests ---

func TestStartSessionMethodNotRegistered(t *testing.T) {
	svc := newTestService(t, new(mockOrderRepo), new(mockRefundRepo))

	_, err := svc.StartSession(context.Background(), testOrderID, MethodStripe)
	assert.ErrorIs(t, err, ErrMethodNotAllowed)
}

func TestStartSessionGatewayMismatch(t *testing.T) {
	orderRepo := new(mockOrderRepo)
	refundRepo := new(mockRefundRepo)
	// Order was paid through the manual gateway; a stripe refund has no
	// charge to draw from even though stripe is registered.
	orderRepo.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(), nil)
	refundRepo.On("TotalRefunded", mock.Anything, testOrderID).Return(decimal.Zero, nil)
	refundRepo.On("RefundedQuantities", mock.Anything, testOrderID).Return(map[uuid.UUID]int64{}, nil)

	stripe := &stubGateway{name: "stripe", fn: func(ctx context.Context, req *gateway.Request) (*gateway.Result, error) {
		return &gateway.Result{GatewayRefundNo: "re_1"}, nil
	}}
	svc := newTestService(t, orderRepo, refundRepo, stripe)

	_, err := svc.StartSession(context.Background(), testOrderID, MethodStripe)
	assert.ErrorIs(t, err, ErrMethodNotAllowed)
}

func TestStartSessionUnpaidOrder(t *testing.T) {
	orderRepo := new(mockOrderRepo)
	unpaid := testOrder()
	unpaid.Status = order.OrderStatusPending
	orderRepo.On("GetOrder", mock.Anything, testOrderID).Return(unpaid, nil)

	svc := newTestService(t, orderRepo, new(mockRefundRepo))

	_, err := svc.StartSession(context.Background(), testOrderID, MethodManual)
	assert.ErrorIs(t, err, order.ErrOrderNotPaid)
}

func TestStartSessionFullyRefundedConflict(t *testing.T) {
	orderRepo := new(mockOrderRepo)
	refundRepo := new(mockRefundRepo)
	orderRepo.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(), nil)
	// Previous refunds already consumed the whole order total.
	refundRepo.On("TotalRefunded", mock.Anything, testOrderID).Return(decimal.RequireFromString("117.30"), nil)
	refundRepo.On("RefundedQuantities", mock.Anything, testOrderID).Return(map[uuid.UUID]int64{}, nil)

	svc := newTestService(t, orderRepo, refundRepo)

	_, err := svc.StartSession(context.Background(), testOrderID, MethodManual)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode)
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestSessionLifecycle(t *testing.T) {
	orderRepo := new(mockOrderRepo)
	refundRepo := new(mockRefundRepo)
	orderRepo.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(), nil)
	refundRepo.On("TotalRefunded", mock.Anything, testOrderID).Return(decimal.Zero, nil)
	refundRepo.On("RefundedQuantities", mock.Anything, testOrderID).Return(map[uuid.UUID]int64{}, nil)

	svc := newTestService(t, orderRepo, refundRepo)

	session, err := svc.StartSession(context.Background(), testOrderID, MethodManual)
	require.NoError(t, err)
	assert.Equal(t, StateAmountEntry, session.State())

	got, err := svc.Session(session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)

	require.NoError(t, svc.EndSession(session.ID()))
	_, err = svc.Session(session.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.EndSession(session.ID()), ErrSessionNotFound)
}

func TestSweepDropsStaleSessionsButNotCommitting(t *testing.T) {
	orderRepo := new(mockOrderRepo)
	refundRepo := new(mockRefundRepo)
	orderRepo.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(), nil)
	refundRepo.On("TotalRefunded", mock.Anything, testOrderID).Return(decimal.Zero, nil)
	refundRepo.On("RefundedQuantities", mock.Anything, testOrderID).Return(map[uuid.UUID]int64{}, nil)

	svc := newTestService(t, orderRepo, refundRepo)

	stale, err := svc.StartSession(context.Background(), testOrderID, MethodManual)
	require.NoError(t, err)
	fresh, err := svc.StartSession(context.Background(), testOrderID, MethodManual)
	require.NoError(t, err)
	committing, err := svc.StartSession(context.Background(), testOrderID, MethodManual)
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	stale.mu.Lock()
	stale.lastActivity = past
	stale.mu.Unlock()
	committing.mu.Lock()
	committing.lastActivity = past
	committing.state = StateCommitting
	committing.mu.Unlock()

	svc.sweepSessions()

	_, err = svc.Session(stale.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound, "stale session is abandoned")
	_, err = svc.Session(fresh.ID())
	assert.NoError(t, err)
	_, err = svc.Session(committing.ID())
	assert.NoError(t, err, "sessions mid-commit are never swept")
}

func TestSubmitManualRefund(t *testing.T) {
	orderRepo := new(mockOrderRepo)
	refundRepo := new(mockRefundRepo)
	orderRepo.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(), nil)
	refundRepo.On("Create", mock.Anything, mock.AnythingOfType("*refund.Refund")).Return(nil)
	refundRepo.On("TotalRefunded", mock.Anything, testOrderID).Return(decimal.RequireFromString("46.66"), nil)

	svc := newTestService(t, orderRepo, refundRepo)

	req := &Request{
		OrderID:   testOrderID,
		SessionID: uuid.New(),
		Amount:    decimal.RequireFromString("46.66"),
		Currency:  "USD",
		Reason:    "damaged",
		Method:    MethodManual,
		Lines: []RequestLine{
			{Type: LineTypeProduct, RefID: testItemID, Quantity: 2, Amount: decimal.RequireFromString("40.00"), Tax: decimal.RequireFromString("6.66")},
		},
	}

	record, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, record.Amount.Equal(req.Amount))
	assert.Equal(t, MethodManual, record.Method)
	assert.Equal(t, RefundStatusIssued, record.Status)
	assert.NotEmpty(t, record.GatewayRefundNo)
	require.Len(t, record.Lines, 1)
	assert.Equal(t, testItemID, record.Lines[0].LineRef)

	// Partial refund: order must not be marked refunded.
	orderRepo.AssertNotCalled(t, "MarkAsRefunded", mock.Anything, mock.Anything)
	refundRepo.AssertExpectations(t)
}

func TestSubmitFullRefundMarksOrder(t *testing.T) {
	orderRepo := new(mockOrderRepo)
	refundRepo := new(mockRefundRepo)
	orderRepo.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(), nil)
	orderRepo.On("MarkAsRefunded", mock.Anything, testOrderID).Return(nil)
	refundRepo.On("Create", mock.Anything, mock.AnythingOfType("*refund.Refund")).Return(nil)
	refundRepo.On("TotalRefunded", mock.Anything, testOrderID).Return(decimal.RequireFromString("117.30"), nil)

	svc := newTestService(t, orderRepo, refundRepo)

	req := &Request{
		OrderID:   testOrderID,
		SessionID: uuid.New(),
		Amount:    decimal.RequireFromString("117.30"),
		Currency:  "USD",
		Method:    MethodManual,
	}

	_, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	orderRepo.AssertCalled(t, "MarkAsRefunded", mock.Anything, testOrderID)
}

func TestSubmitGatewayRejection(t *testing.T) {
	orderRepo := new(mockOrderRepo)
	refundRepo := new(mockRefundRepo)
	ord := testOrder()
	ord.Gateway = "stripe"
	ord.ChargeRef = "ch_test_1001"
	orderRepo.On("GetOrder", mock.Anything, testOrderID).Return(ord, nil)

	rejecting := &stubGateway{name: "stripe", fn: func(ctx context.Context, req *gateway.Request) (*gateway.Result, error) {
		return nil, &gateway.RejectionError{Gateway: "stripe", Code: "charge_already_refunded", Message: "charge already refunded"}
	}}
	svc := newTestService(t, orderRepo, refundRepo, rejecting)

	req := &Request{
		OrderID:   testOrderID,
		SessionID: uuid.New(),
		Amount:    decimal.RequireFromString("10.00"),
		Currency:  "USD",
		Method:    MethodStripe,
		ChargeRef: "ch_test_1001",
	}

	_, err := svc.Submit(context.Background(), req)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, ErrorKindServerRejected, remote.Kind)
	refundRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitZeroMinorUnitsRejected(t *testing.T) {
	orderRepo := new(mockOrderRepo)
	orderRepo.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(), nil)
	svc := newTestService(t, orderRepo, new(mockRefundRepo))

	req := &Request{
		OrderID:   testOrderID,
		SessionID: uuid.New(),
		Amount:    decimal.RequireFromString("0.001"), // below one cent
		Currency:  "USD",
		Method:    MethodManual,
	}

	_, err := svc.Submit(context.Background(), req)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, ErrorKindValidation, remote.Kind)
}

func TestSubmitPersistFailureSurfacesGap(t *testing.T) {
	orderRepo := new(mockOrderRepo)
	refundRepo := new(mockRefundRepo)
	orderRepo.On("GetOrder", mock.Anything, testOrderID).Return(testOrder(), nil)
	refundRepo.On("Create", mock.Anything, mock.AnythingOfType("*refund.Refund")).Return(errors.New("connection lost"))

	svc := newTestService(t, orderRepo, refundRepo)

	req := &Request{
		OrderID:   testOrderID,
		SessionID: uuid.New(),
		Amount:    decimal.RequireFromString("10.00"),
		Currency:  "USD",
		Method:    MethodManual,
	}

	_, err := svc.Submit(context.Background(), req)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, ErrorKindNetwork, remote.Kind)
}

func TestClassifyGatewayError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"rejection", &gateway.RejectionError{Gateway: "stripe", Code: "invalid", Message: "no"}, ErrorKindServerRejected},
		{"breaker open", gobreaker.ErrOpenState, ErrorKindNetwork},
		{"too many requests", gobreaker.ErrTooManyRequests, ErrorKindNetwork},
		{"deadline", context.DeadlineExceeded, ErrorKindNetwork},
		{"canceled", context.Canceled, ErrorKindNetwork},
		{"plain error", errors.New("tcp reset"), ErrorKindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyGatewayError("stripe", tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestBreakerIgnoresRejections(t *testing.T) {
	svc := newTestService(t, new(mockOrderRepo), new(mockRefundRepo))
	breaker := svc.getOrCreateBreaker("stripe")

	// Ten consecutive business rejections must not open the breaker.
	for i := 0; i < 10; i++ {
		_, err := breaker.Execute(func() (*gateway.Result, error) {
			return nil, &gateway.RejectionError{Gateway: "stripe", Code: "invalid", Message: "no"}
		})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, breaker.State())

	// Transport failures do.
	for i := 0; i < 5; i++ {
		breaker.Execute(func() (*gateway.Result, error) {
			return nil, errors.New("tcp reset")
		})
	}
	assert.Equal(t, gobreaker.StateOpen, breaker.State())
}
