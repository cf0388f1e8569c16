package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ManualGateway records refunds that are returned to the customer outside
// any payment processor (cash, bank transfer, store credit). It never talks
// to a remote system, so it always succeeds.
type ManualGateway struct{}

// NewManualGateway creates a manual gateway.
func NewManualGateway() *ManualGateway {
	return &ManualGateway{}
}

// Name returns the gateway name.
func (g *ManualGateway) Name() string {
	return "manual"
}

// CreateRefund records a manual refund and mints a local reference.
func (g *ManualGateway) CreateRefund(ctx context.Context, req *Request) (*Result, error) {
	return &Result{
		GatewayRefundNo: fmt.Sprintf("manual-%s", uuid.NewString()),
		Status:          "succeeded",
	}, nil
}
