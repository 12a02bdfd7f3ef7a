package chain

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const (
	registerDealPath = "register-deal"
	dealPath         = "deal"
	clientDealsPath  = "client-deals"
	allowancePath    = "allowance"
	griefPath        = "grief"
)

const (
	readTimeout     = 10 * time.Second
	registerTimeout = 60 * time.Second
	griefTimeout    = 30 * time.Second
)

// DealRecord is the registry contract's view of a deal. The contract
// stores only the 32-byte hash of the relay deal id.
type DealRecord struct {
	OnChainID    string `json:"on_chain_id"`
	Client       string `json:"client"`
	CID          string `json:"cid"`
	SizeMB       uint64 `json:"size_mb"`
	PriceUSDC    string `json:"price_usdc"`
	DurationDays uint64 `json:"duration_days"`
	StartTime    int64  `json:"start_time"`
	EndTime      int64  `json:"end_time"`
	Active       bool   `json:"active"`
	Relay        string `json:"relay"`
}

// RegisterParams are the arguments to the registry registerDeal call.
type RegisterParams struct {
	DealID       string `json:"deal_id"`
	Client       string `json:"client"`
	CID          string `json:"cid"`
	SizeMB       uint64 `json:"size_mb"`
	PriceUSDC    string `json:"price_usdc"`
	DurationDays uint64 `json:"duration_days"`
	ClientStake  string `json:"client_stake"`
}

// RegisterResult is returned by a successful on-chain registration.
// Registration atomically pulls the approved payment from the client.
type RegisterResult struct {
	TxHash    string `json:"tx_hash"`
	OnChainID string `json:"on_chain_id"`
}

// RegistryClient talks to the registry contract through its HTTP
// gateway.
type RegistryClient struct {
	endpoint string
}

// NewRegistryClient returns a new registry client instance.
func NewRegistryClient(endpoint string) *RegistryClient {
	return &RegistryClient{endpoint: endpoint}
}

// RegisterDeal registers the deal on-chain and pulls the client
// payment in the same transaction.
func (r *RegistryClient) RegisterDeal(
	ctx context.Context,
	params RegisterParams,
) (*RegisterResult, error) {
	u := fmt.Sprintf("%s/%s", r.endpoint, registerDealPath)
	result := &RegisterResult{}
	return result, httpPost(ctx, u, registerTimeout, params, result)
}

// Deal requests the registry record for the given on-chain deal id.
// A missing record yields (nil, nil).
func (r *RegistryClient) Deal(
	ctx context.Context,
	onChainID string,
) (*DealRecord, error) {
	u := fmt.Sprintf("%s/%s?id=%s", r.endpoint, dealPath, onChainID)
	record := &DealRecord{}
	if err := httpGet(ctx, u, readTimeout, record); err != nil {
		return nil, err
	}

	if record.OnChainID == "" {
		return nil, nil
	}

	return record, nil
}

// ClientDeals enumerates the registry records owned by the given
// client address.
func (r *RegistryClient) ClientDeals(
	ctx context.Context,
	address string,
) ([]*DealRecord, error) {
	u := fmt.Sprintf("%s/%s?address=%s",
		r.endpoint,
		clientDealsPath,
		url.QueryEscape(address),
	)
	records := make([]*DealRecord, 0)
	return records, httpGet(ctx, u, readTimeout, &records)
}

// Allowance returns the atomic USDC amount the client has approved
// for transfer to the registry contract.
func (r *RegistryClient) Allowance(
	ctx context.Context,
	client string,
) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/%s?address=%s",
		r.endpoint,
		allowancePath,
		url.QueryEscape(client),
	)
	resp := new(struct {
		Amount string `json:"amount"`
	})
	if err := httpGet(ctx, u, readTimeout, resp); err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromString(resp.Amount)
}

// Grief submits a dispute against the deal, slashing the given atomic
// amount from the relay stake.
func (r *RegistryClient) Grief(
	ctx context.Context,
	onChainID string,
	slashAmount string,
	reason string,
) (string, error) {
	u := fmt.Sprintf("%s/%s", r.endpoint, griefPath)
	resp := new(struct {
		TxHash string `json:"tx_hash"`
	})
	err := httpPost(ctx, u, griefTimeout, map[string]string{
		"id":     onChainID,
		"amount": slashAmount,
		"reason": reason,
	}, resp)
	return resp.TxHash, err
}
