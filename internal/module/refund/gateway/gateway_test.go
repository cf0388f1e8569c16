package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewManualGateway())

	assert.True(t, r.Has("manual"))
	assert.False(t, r.Has("stripe"))

	gw, err := r.Get("manual")
	require.NoError(t, err)
	assert.Equal(t, "manual", gw.Name())

	_, err = r.Get("stripe")
	assert.Error(t, err)

	assert.ElementsMatch(t, []string{"manual"}, r.Names())
}

func TestManualGatewayAlwaysSucceeds(t *testing.T) {
	gw := NewManualGateway()

	res, err := gw.CreateRefund(context.Background(), &Request{
		RefundNo:    "sess-1",
		OrderNo:     "ORD-1001",
		AmountMinor: 4666,
		Currency:    "USD",
		Reason:      "damaged",
	})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", res.Status)
	assert.NotEmpty(t, res.GatewayRefundNo)

	// References are unique per refund.
	res2, err := gw.CreateRefund(context.Background(), &Request{RefundNo: "sess-2"})
	require.NoError(t, err)
	assert.NotEqual(t, res.GatewayRefundNo, res2.GatewayRefundNo)
}

func TestRejectionErrorMessage(t *testing.T) {
	err := &RejectionError{Gateway: "stripe", Code: "charge_already_refunded", Message: "already refunded"}
	assert.Equal(t, "stripe rejected refund: charge_already_refunded - already refunded", err.Error())
}
