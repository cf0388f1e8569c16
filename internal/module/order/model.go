package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRefunded OrderStatus = "refunded"
)

// Order represents a paid order eligible for refunds.
type Order struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderNo   string          `json:"order_no" gorm:"uniqueIndex;not null"`
	Status    OrderStatus     `json:"status" gorm:"not null;default:pending"`
	Total     decimal.Decimal `json:"total" gorm:"type:numeric(18,6);not null"`
	Currency  string          `json:"currency" gorm:"not null;default:usd"`
	Gateway   string          `json:"gateway" gorm:"default:manual"` // gateway the order was paid through
	ChargeRef string          `json:"-" gorm:"index"`                // gateway charge/trade reference
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Relations
	LineItems     []LineItem     `json:"line_items,omitempty" gorm:"foreignKey:OrderID"`
	FeeLines      []FeeLine      `json:"fee_lines,omitempty" gorm:"foreignKey:OrderID"`
	ShippingLines []ShippingLine `json:"shipping_lines,omitempty" gorm:"foreignKey:OrderID"`
}

// TableName returns the database table name.
func (Order) TableName() string {
	return "orders"
}

// IsPaid returns true if the order has been paid.
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusRefunded
}

// LineItem is a product line on an order.
type LineItem struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID   uuid.UUID       `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `json:"product_id" gorm:"type:uuid;not null"`
	Name      string          `json:"name" gorm:"not null"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:numeric(18,6);not null"`
	Quantity  int64           `json:"quantity" gorm:"not null"`
	TotalTax  decimal.Decimal `json:"total_tax" gorm:"type:numeric(18,6);not null"`
}

// TableName returns the database table name.
func (LineItem) TableName() string {
	return "order_line_items"
}

// FeeLine is an extra fee charged on an order.
type FeeLine struct {
	ID       uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID  uuid.UUID       `json:"order_id" gorm:"type:uuid;not null;index"`
	Name     string          `json:"name" gorm:"not null"`
	Total    decimal.Decimal `json:"total" gorm:"type:numeric(18,6);not null"`
	TotalTax decimal.Decimal `json:"total_tax" gorm:"type:numeric(18,6);not null"`
}

// TableName returns the database table name.
func (FeeLine) TableName() string {
	return "order_fee_lines"
}

// ShippingLine is a shipping charge on an order.
type ShippingLine struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID     uuid.UUID       `json:"order_id" gorm:"type:uuid;not null;index"`
	MethodTitle string          `json:"method_title" gorm:"not null"`
	Total       decimal.Decimal `json:"total" gorm:"type:numeric(18,6);not null"`
	TotalTax    decimal.Decimal `json:"total_tax" gorm:"type:numeric(18,6);not null"`
}

// TableName returns the database table name.
func (ShippingLine) TableName() string {
	return "order_shipping_lines"
}

// --- Snapshot ---

// ProductSnapshot is a product line as seen by a refund flow. MaxQuantity
// is the order line quantity minus units already refunded.
type ProductSnapshot struct {
	ItemID      uuid.UUID       `json:"item_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int64           `json:"quantity"`
	TotalTax    decimal.Decimal `json:"total_tax"`
	MaxQuantity int64           `json:"max_quantity"`
}

// FeeSnapshot is a fee line as seen by a refund flow.
type FeeSnapshot struct {
	FeeID    uuid.UUID       `json:"fee_id"`
	Name     string          `json:"name"`
	Total    decimal.Decimal `json:"total"`
	TotalTax decimal.Decimal `json:"total_tax"`
}

// ShippingSnapshot is a shipping line as seen by a refund flow.
type ShippingSnapshot struct {
	ShippingID  uuid.UUID       `json:"shipping_id"`
	MethodTitle string          `json:"method_title"`
	Total       decimal.Decimal `json:"total"`
	TotalTax    decimal.Decimal `json:"total_tax"`
}

// Snapshot is a read-only view of an order taken at the start of a refund
// flow: totals, refund history and the refundable lines.
type Snapshot struct {
	OrderID       uuid.UUID          `json:"order_id"`
	OrderNo       string             `json:"order_no"`
	Total         decimal.Decimal    `json:"total"`
	RefundTotal   decimal.Decimal    `json:"refund_total"`
	Currency      string             `json:"currency"`
	Gateway       string             `json:"gateway"`
	ChargeRef     string             `json:"-"`
	LineItems     []ProductSnapshot  `json:"line_items"`
	FeeLines      []FeeSnapshot      `json:"fee_lines"`
	ShippingLines []ShippingSnapshot `json:"shipping_lines"`
}

// AvailableForRefund returns the remaining refundable headroom:
// order total minus the sum of previously issued refunds.
func (s *Snapshot) AvailableForRefund() decimal.Decimal {
	return s.Total.Sub(s.RefundTotal)
}
