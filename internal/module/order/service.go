package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RefundHistory reports refunds already issued against an order. It is
// implemented by the refund module's repository.
type RefundHistory interface {
	// TotalRefunded returns the sum of all refund amounts issued for the order.
	TotalRefunded(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)

	// RefundedQuantities returns, per order line item, how many units have
	// been refunded so far.
	RefundedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int64, error)
}

// Service implements order lookup operations.
type Service struct {
	repo    Repository
	history RefundHistory
	logger  *zap.Logger
}

// NewService creates a new order service.
func NewService(repo Repository, history RefundHistory, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		history: history,
		logger:  logger,
	}
}

// GetOrder returns an order by ID.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// MarkAsRefunded marks an order as fully refunded.
func (s *Service) MarkAsRefunded(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkAsRefunded(ctx, id)
}

// Snapshot builds the refund-flow view of an order: its totals, the sum of
// previously issued refunds, and every line with its remaining refundable
// quantity. The snapshot is taken once at flow start; refund headroom must be
// re-read after any refund settles.
func (s *Service) Snapshot(ctx context.Context, orderID uuid.UUID) (*Snapshot, error) {
	ord, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ord.IsPaid() {
		return nil, ErrOrderNotPaid
	}

	refunded, err := s.history.TotalRefunded(ctx, orderID)
	if err != nil {
		return nil, err
	}

	refundedQty, err := s.history.RefundedQuantities(ctx, orderID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		OrderID:     ord.ID,
		OrderNo:     ord.OrderNo,
		Total:       ord.Total,
		RefundTotal: refunded,
		Currency:    ord.Currency,
		Gateway:     ord.Gateway,
		ChargeRef:   ord.ChargeRef,
	}

	for _, li := range ord.LineItems {
		maxQty := li.Quantity - refundedQty[li.ID]
		if maxQty < 0 {
			maxQty = 0
		}
		snap.LineItems = append(snap.LineItems, ProductSnapshot{
			ItemID:      li.ID,
			ProductID:   li.ProductID,
			Name:        li.Name,
			UnitPrice:   li.UnitPrice,
			Quantity:    li.Quantity,
			TotalTax:    li.TotalTax,
			MaxQuantity: maxQty,
		})
	}
	for _, fl := range ord.FeeLines {
		snap.FeeLines = append(snap.FeeLines, FeeSnapshot{
			FeeID:    fl.ID,
			Name:     fl.Name,
			Total:    fl.Total,
			TotalTax: fl.TotalTax,
		})
	}
	for _, sl := range ord.ShippingLines {
		snap.ShippingLines = append(snap.ShippingLines, ShippingSnapshot{
			ShippingID:  sl.ID,
			MethodTitle: sl.MethodTitle,
			Total:       sl.Total,
			TotalTax:    sl.TotalTax,
		})
	}

	s.logger.Debug("order snapshot built",
		zap.String("order_id", ord.ID.String()),
		zap.String("refund_total", refunded.String()),
		zap.Int("line_items", len(snap.LineItems)),
	)

	return snap, nil
}
