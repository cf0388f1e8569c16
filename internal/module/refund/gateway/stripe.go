package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/refund"
)

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	APIKey string
}

// StripeGateway creates refunds against Stripe charges.
type StripeGateway struct {
	apiKey string
}

// NewStripeGateway creates a new Stripe gateway.
func NewStripeGateway(config *StripeConfig) *StripeGateway {
	stripe.Key = config.APIKey
	return &StripeGateway{apiKey: config.APIKey}
}

// Name returns the gateway name.
func (g *StripeGateway) Name() string {
	return "stripe"
}

// CreateRefund refunds part or all of a Stripe charge.
func (g *StripeGateway) CreateRefund(ctx context.Context, req *Request) (*Result, error) {
	params := &stripe.RefundParams{
		Charge: stripe.String(req.ChargeRef),
	}
	params.Context = ctx
	if req.AmountMinor > 0 {
		params.Amount = stripe.Int64(req.AmountMinor)
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	params.AddMetadata("refund_no", req.RefundNo)

	r, err := refund.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode < 500 {
			return nil, &RejectionError{
				Gateway: g.Name(),
				Code:    string(stripeErr.Code),
				Message: stripeErr.Msg,
			}
		}
		return nil, fmt.Errorf("create refund: %w", err)
	}

	return &Result{
		GatewayRefundNo: r.ID,
		Status:          string(r.Status),
	}, nil
}
