package deal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/photon-storage/go-common/log"

	"github.com/scobru/shogun-relay/chain"
	"github.com/scobru/shogun-relay/config"
	"github.com/scobru/shogun-relay/erasure"
	"github.com/scobru/shogun-relay/worker"
)

const (
	// allowanceAttempts bounds the allowance polling. Registry read
	// nodes may lag a just-confirmed approval by several seconds.
	allowanceAttempts = 3
	// allowanceBackoff is the linear backoff unit between attempts.
	allowanceBackoff = 2 * time.Second
)

// ActorAdmin terminates deals on behalf of the relay operator.
const ActorAdmin = "admin"

// Manager orchestrates the deal lifecycle.
type Manager struct {
	relayAddress string
	registryCfg  config.Registry
	pricing      *PricingEngine
	erasureCfg   erasure.Params
	store        *Store
	registry     Registry
	payments     PaymentService
	storage      ObjectStorage
	graph        GraphStore
	mappings     *Mappings
	tasks        *worker.Runner
	admins       map[string]bool
	backoff      time.Duration
}

// ManagerOpts collects the manager's collaborators.
type ManagerOpts struct {
	RelayAddress string
	RegistryCfg  config.Registry
	Pricing      *PricingEngine
	ErasureCfg   erasure.Params
	Store        *Store
	Registry     Registry
	Payments     PaymentService
	Storage      ObjectStorage
	Graph        GraphStore
	Mappings     *Mappings
	Tasks        *worker.Runner
	Admins       []string
	// AllowanceBackoff overrides the default linear backoff unit.
	AllowanceBackoff time.Duration
}

// NewManager returns a new deal lifecycle manager.
func NewManager(opts ManagerOpts) *Manager {
	admins := make(map[string]bool, len(opts.Admins))
	for _, a := range opts.Admins {
		admins[a] = true
	}

	backoff := opts.AllowanceBackoff
	if backoff == 0 {
		backoff = allowanceBackoff
	}

	return &Manager{
		relayAddress: opts.RelayAddress,
		registryCfg:  opts.RegistryCfg,
		pricing:      opts.Pricing,
		erasureCfg:   opts.ErasureCfg,
		store:        opts.Store,
		registry:     opts.Registry,
		payments:     opts.Payments,
		storage:      opts.Storage,
		graph:        opts.Graph,
		mappings:     opts.Mappings,
		tasks:        opts.Tasks,
		admins:       admins,
		backoff:      backoff,
	}
}

// CreateParams describe a new deal request.
type CreateParams struct {
	CID               string
	ClientAddress     string
	ProviderPublicKey string
	SizeMB            uint64
	DurationDays      uint64
	Tier              Tier
}

// PaymentInstructions tell the client how to fund a pending deal.
type PaymentInstructions struct {
	AmountUSDC   decimal.Decimal `json:"amount_usdc"`
	AtomicAmount string          `json:"atomic_amount"`
	Recipient    string          `json:"recipient"`
	ChainID      uint64          `json:"chain_id"`
	TokenAddress string          `json:"token_address"`
}

// Create prices and persists a new pending deal, returning the payment
// instructions the client must follow before activation.
func (m *Manager) Create(
	ctx context.Context,
	p CreateParams,
) (*Deal, *PaymentInstructions, error) {
	pricing, err := m.pricing.DealPrice(p.SizeMB, p.DurationDays, p.Tier)
	if err != nil {
		return nil, nil, err
	}

	d := &Deal{
		ID:                uuid.NewString(),
		ClientAddress:     p.ClientAddress,
		ProviderPublicKey: p.ProviderPublicKey,
		CID:               p.CID,
		SizeMB:            p.SizeMB,
		DurationDays:      p.DurationDays,
		Tier:              p.Tier,
		Pricing:           pricing,
		Status:            StatusPending,
		CreatedAt:         time.Now().UTC(),
	}

	if err := m.store.Save(ctx, d); err != nil {
		return nil, nil, err
	}

	// Persist the id mapping as soon as the id exists; the on-chain
	// hash cannot be inverted later.
	m.mappings.Record(d.ID, OnChainID(d.ID), d.ClientAddress, d.CID)

	return d, &PaymentInstructions{
		AmountUSDC:   pricing.TotalPriceUSDC,
		AtomicAmount: AtomicUSDC(pricing.TotalPriceUSDC).String(),
		Recipient:    m.registryCfg.ContractAddress,
		ChainID:      m.registryCfg.ChainID,
		TokenAddress: m.registryCfg.TokenAddress,
	}, nil
}

// Activate registers a pending deal on-chain. Registration atomically
// pulls the client payment; any registry failure leaves the deal
// pending. Pinning and tier features are scheduled asynchronously and
// never fail activation.
func (m *Manager) Activate(
	ctx context.Context,
	dealID string,
	paymentProof json.RawMessage,
) (*Deal, error) {
	d, err := m.store.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if d == nil {
		return nil, ErrDealNotFound
	}

	if d.Status != StatusPending {
		return nil, ErrNotPending
	}

	// The graph store replicates records field by field; one without
	// its quote is not yet activatable.
	if d.Pricing == nil {
		return nil, ErrNotPending
	}

	required := AtomicUSDC(d.Pricing.TotalPriceUSDC)
	if err := m.checkAllowance(ctx, d.ClientAddress, required); err != nil {
		return nil, err
	}

	if len(paymentProof) > 0 {
		vr, err := m.payments.VerifyDealPayment(ctx, paymentProof, required)
		if err != nil {
			return nil, &PaymentError{Reason: err.Error()}
		}

		if !vr.IsValid {
			return nil, &PaymentError{Reason: vr.InvalidReason}
		}
	}

	result, err := m.registry.RegisterDeal(ctx, chain.RegisterParams{
		DealID:       d.ID,
		Client:       d.ClientAddress,
		CID:          d.CID,
		SizeMB:       d.SizeMB,
		PriceUSDC:    required.String(),
		DurationDays: d.DurationDays,
		ClientStake:  "0",
	})
	if err != nil {
		return nil, &LedgerError{Op: "register deal", Err: err}
	}

	now := time.Now().UTC()
	expires := now.Add(time.Duration(d.DurationDays) * 24 * time.Hour)
	d.Status = StatusActive
	d.ActivatedAt = &now
	d.ExpiresAt = &expires
	d.OnChainDealID = result.OnChainID
	d.OnChainRelay = m.relayAddress
	d.OnChainRegistered = true
	d.PaymentTx = result.TxHash

	if err := m.store.Save(ctx, d); err != nil {
		// The registration already pulled payment; the record will be
		// rebuilt from the ledger by reconciliation.
		log.Error("fail to persist activated deal",
			"deal_id", d.ID,
			"error", err,
		)
	}

	m.mappings.Record(d.ID, d.OnChainDealID, d.ClientAddress, d.CID)
	m.schedulePin(d.CID)
	m.scheduleTierFeatures(d)
	return d, nil
}

// checkAllowance polls the registry until the client's approved amount
// covers the price, with bounded linear backoff to absorb read-replica
// lag.
func (m *Manager) checkAllowance(
	ctx context.Context,
	client string,
	required decimal.Decimal,
) error {
	var lastErr error
	var allowance decimal.Decimal
	for attempt := 1; attempt <= allowanceAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * m.backoff):
			}
		}

		allowance, lastErr = m.registry.Allowance(ctx, client)
		if lastErr != nil {
			continue
		}

		if allowance.GreaterThanOrEqual(required) {
			return nil
		}
	}

	if lastErr != nil {
		return &PaymentError{
			Reason: errors.Wrap(lastErr, "read allowance").Error(),
		}
	}

	return &PaymentError{
		Reason: "approved amount " + allowance.String() +
			" is below required " + required.String(),
	}
}

// Renew extends an active deal after the additional days are paid for.
func (m *Manager) Renew(
	ctx context.Context,
	dealID string,
	additionalDays uint64,
	settlementPayload json.RawMessage,
) (*Deal, error) {
	d, err := m.store.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if d == nil {
		return nil, ErrDealNotFound
	}

	if d.Status != StatusActive {
		return nil, ErrNotActive
	}

	// An active record without an expiry has nothing to extend.
	if d.ExpiresAt == nil {
		return nil, ErrNotActive
	}

	if d.Expired(time.Now().UTC()) {
		return nil, ErrDealExpired
	}

	if _, err := m.pricing.RenewalPrice(d, additionalDays); err != nil {
		return nil, err
	}

	sr, err := m.payments.SettlePayment(ctx, settlementPayload)
	if err != nil {
		return nil, &PaymentError{Reason: err.Error()}
	}

	if !sr.Success {
		return nil, &PaymentError{Reason: sr.ErrorReason}
	}

	extended := d.ExpiresAt.Add(time.Duration(additionalDays) * 24 * time.Hour)
	d.ExpiresAt = &extended
	if err := m.store.Save(ctx, d); err != nil {
		return nil, err
	}

	return d, nil
}

// Terminate cancels a pending or active deal. Only the owning client
// or an admin may terminate; terminating twice is an error.
func (m *Manager) Terminate(
	ctx context.Context,
	dealID string,
	reason string,
	actor string,
) (*Deal, error) {
	d, err := m.store.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if d == nil {
		return nil, ErrDealNotFound
	}

	if actor != d.ClientAddress && !m.admins[actor] && actor != ActorAdmin {
		return nil, ErrTerminateNotAllowed
	}

	if d.Status == StatusTerminated {
		return nil, ErrAlreadyTerminated
	}

	if !ValidTransition(d.Status, StatusTerminated) {
		return nil, ErrAlreadyTerminated
	}

	now := time.Now().UTC()
	d.Status = StatusTerminated
	d.TerminatedAt = &now
	d.TerminationReason = reason
	if err := m.store.Save(ctx, d); err != nil {
		return nil, err
	}

	return d, nil
}

// Get reads a deal by id, falling back to a ledger stub when only the
// registry knows it.
func (m *Manager) Get(ctx context.Context, dealID string) (*Deal, error) {
	d, err := m.store.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if d != nil {
		return d, nil
	}

	record, err := m.registry.Deal(ctx, OnChainID(dealID))
	if err != nil || record == nil {
		return nil, ErrDealNotFound
	}

	stub := stubFromRecord(record)
	stub.ID = dealID
	return stub, nil
}

// Report submits a dispute for a registered deal through the registry
// grief call.
func (m *Manager) Report(
	ctx context.Context,
	dealID string,
	slashAmount string,
	reason string,
) (string, error) {
	d, err := m.Get(ctx, dealID)
	if err != nil {
		return "", err
	}

	if d.OnChainDealID == "" {
		return "", ErrNotRegistered
	}

	tx, err := m.registry.Grief(ctx, d.OnChainDealID, slashAmount, reason)
	if err != nil {
		return "", &LedgerError{Op: "grief", Err: err}
	}

	return tx, nil
}
