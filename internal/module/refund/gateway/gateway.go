package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Request is a refund-creation call against a payment gateway. Amounts are
// in the currency's minor units.
type Request struct {
	RefundNo    string // our idempotent reference for this refund attempt
	OrderNo     string
	ChargeRef   string // gateway charge/trade reference of the original payment
	AmountMinor int64
	TotalMinor  int64 // original payment total, for gateways that need it
	Currency    string
	Reason      string
}

// Result is a successful gateway refund.
type Result struct {
	GatewayRefundNo string
	Status          string
}

// RejectionError reports that the gateway understood the request and
// refused it. Distinguished from transport failures so callers can classify.
type RejectionError struct {
	Gateway string
	Code    string
	Message string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected refund: %s - %s", e.Gateway, e.Code, e.Message)
}

// Gateway creates refunds against one payment processor.
type Gateway interface {
	// Name returns the gateway name.
	Name() string

	// CreateRefund issues a single refund-creation call. A *RejectionError
	// means the gateway refused the refund; any other error is a transport
	// or processor failure.
	CreateRefund(ctx context.Context, req *Request) (*Result, error)
}

// Registry manages available payment gateways.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRegistry creates a new gateway registry.
func NewRegistry() *Registry {
	return &Registry{
		gateways: make(map[string]Gateway),
	}
}

// Register adds a gateway to the registry.
func (r *Registry) Register(gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[gw.Name()] = gw
}

// Get returns a gateway by name.
func (r *Registry) Get(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("gateway not registered: %s", name)
	}
	return gw, nil
}

// Has reports whether a gateway is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.gateways[name]
	return ok
}

// Names returns the registered gateway names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	return names
}
