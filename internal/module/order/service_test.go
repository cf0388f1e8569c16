package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	args := m.Called(ctx, id)
	if ord := args.Get(0); ord != nil {
		return ord.(*Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) GetOrderByNo(ctx context.Context, orderNo string) (*Order, error) {
	args := m.Called(ctx, orderNo)
	if ord := args.Get(0); ord != nil {
		return ord.(*Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) MarkAsRefunded(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) TotalRefunded(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockHistory) RefundedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int64, error) {
	args := m.Called(ctx, orderID)
	if q := args.Get(0); q != nil {
		return q.(map[uuid.UUID]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

var (
	orderID = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	itemA   = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	itemB   = uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc")
)

func paidOrder() *Order {
	return &Order{
		ID:       orderID,
		OrderNo:  "ORD-2002",
		Status:   OrderStatusPaid,
		Total:    decimal.RequireFromString("100.00"),
		Currency: "USD",
		Gateway:  "stripe",
		LineItems: []LineItem{
			{ID: itemA, OrderID: orderID, Name: "Mug", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 5, TotalTax: decimal.RequireFromString("2.50")},
			{ID: itemB, OrderID: orderID, Name: "Poster", UnitPrice: decimal.RequireFromString("25.00"), Quantity: 2, TotalTax: decimal.RequireFromString("5.00")},
		},
		FeeLines: []FeeLine{
			{ID: uuid.New(), OrderID: orderID, Name: "Handling", Total: decimal.RequireFromString("3.00"), TotalTax: decimal.Zero},
		},
	}
}

func TestSnapshotSubtractsRefundedQuantities(t *testing.T) {
	repo := new(mockRepo)
	history := new(mockHistory)
	repo.On("GetOrder", mock.Anything, orderID).Return(paidOrder(), nil)
	history.On("TotalRefunded", mock.Anything, orderID).Return(decimal.RequireFromString("30.00"), nil)
	history.On("RefundedQuantities", mock.Anything, orderID).Return(map[uuid.UUID]int64{
		itemA: 2,
	}, nil)

	svc := NewService(repo, history, zap.NewNop())
	snap, err := svc.Snapshot(context.Background(), orderID)
	require.NoError(t, err)

	assert.True(t, snap.AvailableForRefund().Equal(decimal.RequireFromString("70.00")))

	require.Len(t, snap.LineItems, 2)
	byID := map[uuid.UUID]ProductSnapshot{}
	for _, li := range snap.LineItems {
		byID[li.ItemID] = li
	}
	assert.Equal(t, int64(3), byID[itemA].MaxQuantity, "two of five already refunded")
	assert.Equal(t, int64(2), byID[itemB].MaxQuantity, "untouched line keeps full quantity")
	require.Len(t, snap.FeeLines, 1)
}

func TestSnapshotClampsOverRefundedLine(t *testing.T) {
	repo := new(mockRepo)
	history := new(mockHistory)
	repo.On("GetOrder", mock.Anything, orderID).Return(paidOrder(), nil)
	history.On("TotalRefunded", mock.Anything, orderID).Return(decimal.Zero, nil)
	history.On("RefundedQuantities", mock.Anything, orderID).Return(map[uuid.UUID]int64{
		itemA: 7, // more than ever ordered, e.g. refunds recorded out of band
	}, nil)

	svc := NewService(repo, history, zap.NewNop())
	snap, err := svc.Snapshot(context.Background(), orderID)
	require.NoError(t, err)

	for _, li := range snap.LineItems {
		if li.ItemID == itemA {
			assert.Equal(t, int64(0), li.MaxQuantity)
		}
	}
}

func TestSnapshotRejectsUnpaidOrder(t *testing.T) {
	repo := new(mockRepo)
	history := new(mockHistory)
	unpaid := paidOrder()
	unpaid.Status = OrderStatusPending
	repo.On("GetOrder", mock.Anything, orderID).Return(unpaid, nil)

	svc := NewService(repo, history, zap.NewNop())
	_, err := svc.Snapshot(context.Background(), orderID)
	assert.ErrorIs(t, err, ErrOrderNotPaid)
}

func TestSnapshotAllowsRefundedOrder(t *testing.T) {
	// A partially refunded order stays refundable until headroom is gone.
	repo := new(mockRepo)
	history := new(mockHistory)
	refunded := paidOrder()
	refunded.Status = OrderStatusRefunded
	repo.On("GetOrder", mock.Anything, orderID).Return(refunded, nil)
	history.On("TotalRefunded", mock.Anything, orderID).Return(decimal.RequireFromString("100.00"), nil)
	history.On("RefundedQuantities", mock.Anything, orderID).Return(map[uuid.UUID]int64{}, nil)

	svc := NewService(repo, history, zap.NewNop())
	snap, err := svc.Snapshot(context.Background(), orderID)
	require.NoError(t, err)
	assert.True(t, snap.AvailableForRefund().IsZero())
}

func TestSnapshotPropagatesNotFound(t *testing.T) {
	repo := new(mockRepo)
	repo.On("GetOrder", mock.Anything, orderID).Return(nil, ErrOrderNotFound)

	svc := NewService(repo, new(mockHistory), zap.NewNop())
	_, err := svc.Snapshot(context.Background(), orderID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
