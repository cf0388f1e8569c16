package gateway

import (
	"context"
	"fmt"

	"github.com/go-pay/gopay"
	"github.com/go-pay/gopay/alipay"
)

// AlipayConfig holds Alipay configuration.
type AlipayConfig struct {
	AppID           string // Application ID
	PrivateKey      string // RSA2 private key (PEM format)
	AlipayPublicKey string // Alipay public key for verification (PEM format)
	IsProd          bool   // Production environment flag
}

// AlipayGateway creates refunds against Alipay trades.
type AlipayGateway struct {
	client *alipay.Client
}

// NewAlipayGateway creates a new Alipay gateway.
func NewAlipayGateway(config *AlipayConfig) (*AlipayGateway, error) {
	client, err := alipay.NewClient(config.AppID, config.PrivateKey, config.IsProd)
	if err != nil {
		return nil, fmt.Errorf("create alipay client: %w", err)
	}
	client.AutoVerifySign([]byte(config.AlipayPublicKey))

	return &AlipayGateway{client: client}, nil
}

// Name returns the gateway name.
func (g *AlipayGateway) Name() string {
	return "alipay"
}

// CreateRefund refunds part or all of an Alipay trade. Alipay amounts are
// yuan with two decimal places; minor units are converted on the way in.
func (g *AlipayGateway) CreateRefund(ctx context.Context, req *Request) (*Result, error) {
	bm := make(gopay.BodyMap)
	if req.ChargeRef != "" {
		bm.Set("trade_no", req.ChargeRef)
	} else {
		bm.Set("out_trade_no", req.OrderNo)
	}
	bm.Set("out_request_no", req.RefundNo)
	bm.Set("refund_amount", fmt.Sprintf("%.2f", float64(req.AmountMinor)/100))
	if req.Reason != "" {
		bm.Set("refund_reason", req.Reason)
	}

	resp, err := g.client.TradeRefund(ctx, bm)
	if err != nil {
		return nil, fmt.Errorf("refund payment: %w", err)
	}

	if resp.Response.Code != "10000" {
		return nil, &RejectionError{
			Gateway: g.Name(),
			Code:    resp.Response.Code,
			Message: resp.Response.Msg,
		}
	}

	return &Result{
		GatewayRefundNo: resp.Response.TradeNo,
		Status:          "succeeded",
	}, nil
}
