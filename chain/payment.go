package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	verifyPaymentPath     = "verify-payment"
	settlePaymentPath     = "settle-payment"
	verifyDealPaymentPath = "verify-deal-payment"
)

const (
	verifyTimeout = 15 * time.Second
	settleTimeout = 45 * time.Second
)

// VerifyResult reports whether a payment payload authorizes at least
// the required amount.
type VerifyResult struct {
	IsValid       bool   `json:"is_valid"`
	Payer         string `json:"payer"`
	Amount        string `json:"amount"`
	InvalidReason string `json:"invalid_reason,omitempty"`
}

// SettleResult reports the outcome of settling a payment.
type SettleResult struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	ErrorReason string `json:"error_reason,omitempty"`
}

// PaymentClient talks to the payment authorization and settlement
// service. The wire format of the payload is owned by that service and
// passed through opaquely.
type PaymentClient struct {
	endpoint string
}

// NewPaymentClient returns a new payment service client instance.
func NewPaymentClient(endpoint string) *PaymentClient {
	return &PaymentClient{endpoint: endpoint}
}

// VerifyPayment checks a payment payload against the given tier.
func (p *PaymentClient) VerifyPayment(
	ctx context.Context,
	payload json.RawMessage,
	tier string,
) (*VerifyResult, error) {
	u := fmt.Sprintf("%s/%s?tier=%s", p.endpoint, verifyPaymentPath, tier)
	result := &VerifyResult{}
	return result, httpPost(ctx, u, verifyTimeout, payload, result)
}

// SettlePayment settles the payment described by the payload.
func (p *PaymentClient) SettlePayment(
	ctx context.Context,
	payload json.RawMessage,
) (*SettleResult, error) {
	u := fmt.Sprintf("%s/%s", p.endpoint, settlePaymentPath)
	result := &SettleResult{}
	return result, httpPost(ctx, u, settleTimeout, payload, result)
}

// VerifyDealPayment checks a payment payload against the required
// atomic USDC amount for a deal.
func (p *PaymentClient) VerifyDealPayment(
	ctx context.Context,
	payload json.RawMessage,
	requiredAtomicAmount decimal.Decimal,
) (*VerifyResult, error) {
	u := fmt.Sprintf("%s/%s?required=%s",
		p.endpoint,
		verifyDealPaymentPath,
		requiredAtomicAmount.String(),
	)
	result := &VerifyResult{}
	return result, httpPost(ctx, u, verifyTimeout, payload, result)
}
