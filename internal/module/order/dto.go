package order

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storecraft/refund-server/internal/module/currency"
)

// SnapshotResponse is the API view of an order snapshot.
type SnapshotResponse struct {
	OrderID            uuid.UUID          `json:"order_id"`
	OrderNo            string             `json:"order_no"`
	Total              decimal.Decimal    `json:"total"`
	RefundTotal        decimal.Decimal    `json:"refund_total"`
	AvailableForRefund decimal.Decimal    `json:"available_for_refund"`
	Currency           string             `json:"currency"`
	Gateway            string             `json:"gateway"`
	TotalFormatted     string             `json:"total_formatted"`
	AvailableFormatted string             `json:"available_for_refund_formatted"`
	LineItems          []ProductSnapshot  `json:"line_items"`
	FeeLines           []FeeSnapshot      `json:"fee_lines"`
	ShippingLines      []ShippingSnapshot `json:"shipping_lines"`
}

// ToResponse converts a snapshot to its API representation.
func (s *Snapshot) ToResponse() *SnapshotResponse {
	available := s.AvailableForRefund()
	return &SnapshotResponse{
		OrderID:            s.OrderID,
		OrderNo:            s.OrderNo,
		Total:              s.Total,
		RefundTotal:        s.RefundTotal,
		AvailableForRefund: available,
		Currency:           s.Currency,
		Gateway:            s.Gateway,
		TotalFormatted:     currency.Format(s.Total, s.Currency),
		AvailableFormatted: currency.Format(available, s.Currency),
		LineItems:          s.LineItems,
		FeeLines:           s.FeeLines,
		ShippingLines:      s.ShippingLines,
	}
}
