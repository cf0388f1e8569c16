package refund

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Method identifies how a refund is returned to the customer.
type Method string

const (
	MethodManual Method = "manual" // recorded store-side, no gateway call
	MethodStripe Method = "stripe"
	MethodAlipay Method = "alipay"
)

// LineType identifies the kind of order line a refund line points at.
type LineType string

const (
	LineTypeProduct  LineType = "product"
	LineTypeFee      LineType = "fee"
	LineTypeShipping LineType = "shipping"
)

// RefundStatus represents the status of an issued refund record.
type RefundStatus string

const (
	RefundStatusIssued RefundStatus = "issued"
)

// Refund is an issued refund record.
type Refund struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID         uuid.UUID       `json:"order_id" gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(18,6);not null"`
	Currency        string          `json:"currency" gorm:"not null"`
	Reason          string          `json:"reason"`
	Method          Method          `json:"method" gorm:"not null;default:manual"`
	Status          RefundStatus    `json:"status" gorm:"not null;default:issued"`
	GatewayRefundNo string          `json:"gateway_refund_no,omitempty" gorm:"index"`
	CreatedAt       time.Time       `json:"created_at"`

	// Relations
	Lines []RefundLine `json:"lines,omitempty" gorm:"foreignKey:RefundID"`
}

// TableName returns the database table name.
func (Refund) TableName() string {
	return "refunds"
}

// RefundLine records which order line a refund drew from and by how much.
type RefundLine struct {
	ID       uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RefundID uuid.UUID       `json:"refund_id" gorm:"type:uuid;not null;index"`
	LineType LineType        `json:"line_type" gorm:"not null"`
	LineRef  uuid.UUID       `json:"line_ref" gorm:"type:uuid;not null;index"` // order line item / fee / shipping ID
	Quantity int64           `json:"quantity"`                                 // product lines only; fees/shipping are all-or-nothing
	Amount   decimal.Decimal `json:"amount" gorm:"type:numeric(18,6);not null"`
	Tax      decimal.Decimal `json:"tax" gorm:"type:numeric(18,6);not null"`
}

// TableName returns the database table name.
func (RefundLine) TableName() string {
	return "refund_lines"
}

// Request is the immutable payload of a single submission attempt. One
// Request maps to exactly one remote refund-creation call.
type Request struct {
	OrderID   uuid.UUID
	SessionID uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Reason    string
	Method    Method
	Gateway   string // gateway name for non-manual methods
	ChargeRef string // gateway charge/trade reference of the original payment
	Lines     []RequestLine
}

// RequestLine is one selected line within a Request.
type RequestLine struct {
	Type     LineType
	RefID    uuid.UUID
	Quantity int64
	Amount   decimal.Decimal
	Tax      decimal.Decimal
}

// ErrorKind classifies a failed submission.
type ErrorKind string

const (
	ErrorKindNetwork        ErrorKind = "network"
	ErrorKindValidation     ErrorKind = "validation"
	ErrorKindServerRejected ErrorKind = "server_rejected"
)

// OutcomeStatus is the terminal status of a submission attempt.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome is the result of a submission attempt. Failures are values, not
// exceptions: the caller decides whether to retry.
type Outcome struct {
	Status    OutcomeStatus `json:"status"`
	RefundID  uuid.UUID     `json:"refund_id,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// SuccessOutcome builds a success outcome carrying the new refund ID.
func SuccessOutcome(refundID uuid.UUID) *Outcome {
	return &Outcome{Status: OutcomeSuccess, RefundID: refundID}
}

// FailureOutcome builds a failure outcome with an error kind and message.
func FailureOutcome(kind ErrorKind, message string) *Outcome {
	return &Outcome{Status: OutcomeFailure, ErrorKind: kind, Message: message}
}

// IsSuccess returns true for a successful outcome.
func (o *Outcome) IsSuccess() bool {
	return o != nil && o.Status == OutcomeSuccess
}

// RemoteError is a failure reported by the persistence/gateway boundary
// during commit. It is surfaced as an Outcome, never retried automatically.
type RemoteError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}
