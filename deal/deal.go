// Package deal implements the storage deal lifecycle: pricing,
// creation, activation against the on-chain registry, renewal,
// termination, and the reconciliation of the three deal record sources
// (pending cache, graph store, registry).
package deal

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scobru/shogun-relay/erasure"
)

// Status is the lifecycle state of a deal.
type Status string

const (
	// StatusPending is a created deal awaiting payment and on-chain
	// registration.
	StatusPending Status = "pending"
	// StatusActive is a registered deal within its paid duration.
	StatusActive Status = "active"
	// StatusExpired is derived, never stored: an active deal past its
	// expiry time.
	StatusExpired Status = "expired"
	// StatusTerminated is a deal cancelled by its client or an admin.
	StatusTerminated Status = "terminated"
)

// ValidTransition reports whether the status change is admitted by the
// lifecycle graph. Renewal is not a transition: the deal stays active.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusActive || to == StatusTerminated
	case StatusActive:
		return to == StatusTerminated
	default:
		return false
	}
}

// Tier is a pricing and feature bucket.
type Tier string

const (
	TierStandard   Tier = "standard"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierStandard, TierPremium, TierEnterprise:
		return Tier(s), nil
	default:
		return "", ErrInvalidTier
	}
}

// Features are the redundancy capabilities a tier enables.
type Features struct {
	ErasureCoding bool `json:"erasure_coding"`
}

// Pricing is the reproducible price breakdown of a deal.
type Pricing struct {
	Tier              Tier            `json:"tier"`
	SizeMB            uint64          `json:"size_mb"`
	DurationDays      uint64          `json:"duration_days"`
	TotalPriceUSDC    decimal.Decimal `json:"total_price_usdc"`
	Features          Features        `json:"features"`
	ReplicationFactor int             `json:"replication_factor"`
}

// Deal is the relay's record of one storage agreement. It is persisted
// as a frozen graph store record and cached in process while the store
// replicates.
type Deal struct {
	ID                string `json:"id"`
	OnChainDealID     string `json:"on_chain_deal_id,omitempty"`
	ClientAddress     string `json:"client_address"`
	ProviderPublicKey string `json:"provider_public_key"`
	OnChainRelay      string `json:"on_chain_relay,omitempty"`

	CID    string `json:"cid"`
	SizeMB uint64 `json:"size_mb"`

	DurationDays uint64   `json:"duration_days"`
	Tier         Tier     `json:"tier"`
	Pricing      *Pricing `json:"pricing,omitempty"`

	Status            Status     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	ActivatedAt       *time.Time `json:"activated_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	TerminatedAt      *time.Time `json:"terminated_at,omitempty"`
	TerminationReason string     `json:"termination_reason,omitempty"`
	PaymentTx         string     `json:"payment_tx,omitempty"`

	ErasureMetadata    *erasure.Metadata `json:"erasure_metadata,omitempty"`
	ErasureCodingError string            `json:"erasure_coding_error,omitempty"`

	ReplicationRequestID   string     `json:"replication_request_id,omitempty"`
	ReplicationRequestedAt *time.Time `json:"replication_requested_at,omitempty"`

	// Provenance flags, populated during reconciliation only.
	OnChainRegistered bool     `json:"on_chain_registered"`
	FromOnChainOnly   bool     `json:"from_on_chain_only,omitempty"`
	Sources           []string `json:"sources,omitempty"`
}

// Clone returns a deep copy of the deal. Records cross goroutine
// boundaries through the store cache, so no two holders may alias one
// struct.
func (d *Deal) Clone() *Deal {
	if d == nil {
		return nil
	}

	c := *d
	if d.Pricing != nil {
		p := *d.Pricing
		c.Pricing = &p
	}

	c.ActivatedAt = cloneTime(d.ActivatedAt)
	c.ExpiresAt = cloneTime(d.ExpiresAt)
	c.TerminatedAt = cloneTime(d.TerminatedAt)
	c.ReplicationRequestedAt = cloneTime(d.ReplicationRequestedAt)

	if d.ErasureMetadata != nil {
		m := *d.ErasureMetadata
		m.Chunks = make([]*erasure.Chunk, len(d.ErasureMetadata.Chunks))
		for i, chunk := range d.ErasureMetadata.Chunks {
			cc := *chunk
			m.Chunks[i] = &cc
		}

		c.ErasureMetadata = &m
	}

	if d.Sources != nil {
		c.Sources = append([]string(nil), d.Sources...)
	}

	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	v := *t
	return &v
}

// OnChainID derives the fixed-size deal identifier stored by the
// registry contract. The hash is one way: a lost id cannot be
// recovered from it, which is why learned mappings are persisted.
func OnChainID(dealID string) string {
	sum := sha256.Sum256([]byte(dealID))
	return hex.EncodeToString(sum[:])
}

// Expired reports whether an active deal is past its paid duration.
// Expiry is derived, not a stored transition.
func (d *Deal) Expired(now time.Time) bool {
	return d.Status == StatusActive &&
		d.ExpiresAt != nil &&
		now.After(*d.ExpiresAt)
}

// NeedsRenewal reports whether the deal expires within the threshold.
func (d *Deal) NeedsRenewal(now time.Time, thresholdDays uint64) bool {
	if d.Status != StatusActive || d.ExpiresAt == nil {
		return false
	}

	return d.ExpiresAt.Sub(now) <= time.Duration(thresholdDays)*24*time.Hour
}

// EffectiveStatus folds the derived expired state into the stored
// status for presentation.
func (d *Deal) EffectiveStatus(now time.Time) Status {
	if d.Expired(now) {
		return StatusExpired
	}

	return d.Status
}
