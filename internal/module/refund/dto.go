package refund

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storecraft/refund-server/internal/module/currency"
)

// StartSessionRequest opens a refund session for an order.
type StartSessionRequest struct {
	Method Method `json:"method" binding:"required,oneof=manual stripe alipay"`
}

// QuantityRequest sets the refund quantity of a product line.
type QuantityRequest struct {
	Quantity *int64 `json:"quantity" binding:"required"`
}

// ToggleRequest selects or deselects a fee or shipping line.
type ToggleRequest struct {
	Selected *bool `json:"selected" binding:"required"`
}

// AmountRequest overrides the selection-derived refund amount.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// ConfirmRequest confirms a validated refund and opens the undo window.
type ConfirmRequest struct {
	Reason string `json:"reason"`
}

// TotalsResponse carries the selection-derived amounts.
type TotalsResponse struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	Tax               decimal.Decimal `json:"tax"`
	Total             decimal.Decimal `json:"total"`
	SubtotalFormatted string          `json:"subtotal_formatted"`
	TaxFormatted      string          `json:"tax_formatted"`
	TotalFormatted    string          `json:"total_formatted"`
}

// SessionResponse is the API view of a refund session.
type SessionResponse struct {
	ID                 uuid.UUID       `json:"id"`
	OrderID            uuid.UUID       `json:"order_id"`
	State              SessionState    `json:"state"`
	Totals             TotalsResponse  `json:"totals"`
	Amount             decimal.Decimal `json:"amount"`
	AmountFormatted    string          `json:"amount_formatted"`
	MaxRefund          decimal.Decimal `json:"max_refund"`
	MaxRefundFormatted string          `json:"max_refund_formatted"`
	SubmitEnabled      bool            `json:"submit_enabled"`
	Validation         string          `json:"validation,omitempty"`
	ValidationMessage  string          `json:"validation_message,omitempty"`
	Outcome            *Outcome        `json:"outcome,omitempty"`
}

// NewSessionResponse builds the API view of a session.
func NewSessionResponse(c *Coordinator) *SessionResponse {
	code := c.Snapshot().Currency
	totals := c.Totals()
	amount := c.Amount()
	maxRefund := c.MaxRefund()
	validation := c.Validation()

	return &SessionResponse{
		ID:      c.ID(),
		OrderID: c.OrderID(),
		State:   c.State(),
		Totals: TotalsResponse{
			Subtotal:          totals.Subtotal,
			Tax:               totals.Tax,
			Total:             totals.Total,
			SubtotalFormatted: currency.Format(totals.Subtotal, code),
			TaxFormatted:      currency.Format(totals.Tax, code),
			TotalFormatted:    currency.Format(totals.Total, code),
		},
		Amount:             amount,
		AmountFormatted:    currency.Format(amount, code),
		MaxRefund:          maxRefund,
		MaxRefundFormatted: currency.Format(maxRefund, code),
		SubmitEnabled:      c.SubmitEnabled(),
		Validation:         string(validation),
		ValidationMessage:  validation.Message(),
		Outcome:            c.Outcome(),
	}
}

// RefundLineResponse is the API view of one refund line.
type RefundLineResponse struct {
	LineType LineType        `json:"line_type"`
	LineRef  uuid.UUID       `json:"line_ref"`
	Quantity int64           `json:"quantity,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Tax      decimal.Decimal `json:"tax"`
}

// RefundResponse is the API view of an issued refund.
type RefundResponse struct {
	ID              uuid.UUID            `json:"id"`
	OrderID         uuid.UUID            `json:"order_id"`
	Amount          decimal.Decimal      `json:"amount"`
	AmountFormatted string               `json:"amount_formatted"`
	Currency        string               `json:"currency"`
	Reason          string               `json:"reason,omitempty"`
	Method          Method               `json:"method"`
	Status          RefundStatus         `json:"status"`
	GatewayRefundNo string               `json:"gateway_refund_no,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	Lines           []RefundLineResponse `json:"lines,omitempty"`
}

// ToResponse converts a refund record to its API view.
func (r *Refund) ToResponse() *RefundResponse {
	resp := &RefundResponse{
		ID:              r.ID,
		OrderID:         r.OrderID,
		Amount:          r.Amount,
		AmountFormatted: currency.Format(r.Amount, r.Currency),
		Currency:        r.Currency,
		Reason:          r.Reason,
		Method:          r.Method,
		Status:          r.Status,
		GatewayRefundNo: r.GatewayRefundNo,
		CreatedAt:       r.CreatedAt,
	}
	for _, line := range r.Lines {
		resp.Lines = append(resp.Lines, RefundLineResponse{
			LineType: line.LineType,
			LineRef:  line.LineRef,
			Quantity: line.Quantity,
			Amount:   line.Amount,
			Tax:      line.Tax,
		})
	}
	return resp
}
