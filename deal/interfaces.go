package deal

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/scobru/shogun-relay/chain"
)

// Registry is the on-chain deal registry consumed by the manager and
// the reconciler.
type Registry interface {
	RegisterDeal(ctx context.Context, params chain.RegisterParams) (*chain.RegisterResult, error)
	Deal(ctx context.Context, onChainID string) (*chain.DealRecord, error)
	ClientDeals(ctx context.Context, address string) ([]*chain.DealRecord, error)
	Allowance(ctx context.Context, client string) (decimal.Decimal, error)
	Grief(ctx context.Context, onChainID, slashAmount, reason string) (string, error)
}

// PaymentService is the external payment verification and settlement
// service.
type PaymentService interface {
	VerifyDealPayment(ctx context.Context, payload json.RawMessage, requiredAtomicAmount decimal.Decimal) (*chain.VerifyResult, error)
	SettlePayment(ctx context.Context, payload json.RawMessage) (*chain.SettleResult, error)
}

// ObjectStorage is the content-addressed storage network data plane.
type ObjectStorage interface {
	Add(ctx context.Context, data []byte) (string, error)
	Cat(ctx context.Context, cid string, offset, length int64) ([]byte, error)
	Pin(ctx context.Context, cid string) error
	PinLs(ctx context.Context, cid string) (bool, error)
	BlockStat(ctx context.Context, cid string) (int64, error)
}

// GraphStore is the replicated graph store holding frozen deal
// records.
type GraphStore interface {
	Put(ctx context.Context, path string, record interface{}) error
	Get(ctx context.Context, path string, out interface{}) (bool, error)
	MapOnce(ctx context.Context, path string, visit func(key string, raw json.RawMessage) error) error
}
