package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for order data access.
type Repository interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderByNo(ctx context.Context, orderNo string) (*Order, error)
	MarkAsRefunded(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new order repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var ord Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Preload("FeeLines").
		Preload("ShippingLines").
		First(&ord, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &ord, nil
}

func (r *repository) GetOrderByNo(ctx context.Context, orderNo string) (*Order, error) {
	var ord Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Preload("FeeLines").
		Preload("ShippingLines").
		First(&ord, "order_no = ?", orderNo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by no: %w", err)
	}
	return &ord, nil
}

func (r *repository) MarkAsRefunded(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": OrderStatusRefunded}).Error
	if err != nil {
		return fmt.Errorf("mark order refunded: %w", err)
	}
	return nil
}
