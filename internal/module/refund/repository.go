package refund

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository defines refund data access. It also serves the order module's
// RefundHistory interface so snapshots can account for prior refunds.
type Repository interface {
	Create(ctx context.Context, refund *Refund) error
	GetByID(ctx context.Context, id uuid.UUID) (*Refund, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Refund, error)
	TotalRefunded(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
	RefundedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a refund repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create persists a refund and its lines in one transaction.
func (r *repository) Create(ctx context.Context, refund *Refund) error {
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}

// GetByID returns a refund with its lines.
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Refund, error) {
	var refund Refund
	err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&refund, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return &refund, nil
}

// ListByOrder returns all refunds issued against an order, newest first.
func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Refund, error) {
	var refunds []Refund
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&refunds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return refunds, nil
}

// TotalRefunded sums the amounts of all refunds issued for an order.
func (r *repository) TotalRefunded(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&Refund{}).
		Where("order_id = ?", orderID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum refunds: %w", err)
	}
	return total, nil
}

// RefundedQuantities returns how many units of each product line have been
// refunded so far, keyed by the order line item ID.
func (r *repository) RefundedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int64, error) {
	type row struct {
		LineRef  uuid.UUID
		Quantity int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&RefundLine{}).
		Joins("JOIN refunds ON refunds.id = refund_lines.refund_id").
		Where("refunds.order_id = ? AND refund_lines.line_type = ?", orderID, LineTypeProduct).
		Select("refund_lines.line_ref AS line_ref, COALESCE(SUM(refund_lines.quantity), 0) AS quantity").
		Group("refund_lines.line_ref").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum refunded quantities: %w", err)
	}

	quantities := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		quantities[r.LineRef] = r.Quantity
	}
	return quantities, nil
}
