package deal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/photon-storage/go-common/log"

	"github.com/scobru/shogun-relay/chain"
)

// Source labels for deal provenance.
const (
	SourceChain = "chain"
	SourceStore = "store"
	SourceCache = "cache"
)

// SourceCounts reports how many records each origin contributed to a
// reconciled view.
type SourceCounts struct {
	OnChain int `json:"on_chain"`
	Store   int `json:"store"`
	Cache   int `json:"cache"`
}

// ReconciledDeals is one consistent view over the three deal sources.
type ReconciledDeals struct {
	Deals   []*Deal      `json:"deals"`
	Sources SourceCounts `json:"sources"`
}

// Reconciler merges deal records from the pending cache, the graph
// store and the registry into one view. The registry list is
// authoritative and ordered first, so repeated calls are stable modulo
// new data.
type Reconciler struct {
	store    *Store
	registry Registry
	mappings *Mappings
}

// NewReconciler returns a new reconciler.
func NewReconciler(store *Store, registry Registry, mappings *Mappings) *Reconciler {
	return &Reconciler{
		store:    store,
		registry: registry,
		mappings: mappings,
	}
}

// ClientDeals reconciles every deal of a client. A source that cannot
// be reached contributes zero records; partial unavailability is
// reported through the provenance counts, never as an error.
func (r *Reconciler) ClientDeals(
	ctx context.Context,
	client string,
) (*ReconciledDeals, error) {
	onChain, err := r.registry.ClientDeals(ctx, client)
	if err != nil {
		log.Warn("registry unavailable during reconciliation",
			"client", client,
			"error", err,
		)
		onChain = nil
	}

	offChain := make([]*Deal, 0)
	stored, err := r.store.List(ctx)
	if err != nil {
		log.Warn("graph store unavailable during reconciliation",
			"client", client,
			"error", err,
		)
	} else {
		for _, d := range stored {
			if d.ClientAddress == client {
				offChain = append(offChain, d)
			}
		}
	}

	cached := make([]*Deal, 0)
	for _, d := range r.store.CachedDeals() {
		if d.ClientAddress == client {
			cached = append(cached, d)
		}
	}

	out := &ReconciledDeals{
		Deals: make([]*Deal, 0, len(onChain)+len(offChain)),
		Sources: SourceCounts{
			OnChain: len(onChain),
			Store:   len(offChain),
			Cache:   len(cached),
		},
	}

	seen := make(map[string]bool)
	for _, record := range onChain {
		match, source := matchOffChain(record, offChain, cached)
		if match == nil {
			stub := stubFromRecord(record)
			if id, ok := r.mappings.DealIDFor(record.OnChainID); ok {
				stub.ID = id
			}

			out.Deals = append(out.Deals, stub)
			continue
		}

		merged := mergeDeal(match, record)
		merged.Sources = []string{SourceChain, source}
		seen[match.ID] = true
		r.mappings.Record(merged.ID, merged.OnChainDealID,
			merged.ClientAddress, merged.CID)
		out.Deals = append(out.Deals, merged)
	}

	// Off-chain and cached deals the ledger has not observed: created
	// but not yet paid or activated.
	for _, d := range offChain {
		if seen[d.ID] {
			continue
		}

		seen[d.ID] = true
		copied := *d
		copied.OnChainRegistered = false
		copied.Sources = []string{SourceStore}
		out.Deals = append(out.Deals, &copied)
	}

	for _, d := range cached {
		if seen[d.ID] {
			continue
		}

		seen[d.ID] = true
		copied := *d
		copied.OnChainRegistered = false
		copied.Sources = []string{SourceCache}
		out.Deals = append(out.Deals, &copied)
	}

	return out, nil
}

// matchOffChain finds the off-chain counterpart of a registry record:
// exact on-chain id, then (cid, client), then recomputed id hash, each
// cascade tried against the store before the cache.
func matchOffChain(
	record *chain.DealRecord,
	offChain []*Deal,
	cached []*Deal,
) (*Deal, string) {
	if d := matchInList(record, offChain); d != nil {
		return d, SourceStore
	}

	if d := matchInList(record, cached); d != nil {
		return d, SourceCache
	}

	return nil, ""
}

func matchInList(record *chain.DealRecord, list []*Deal) *Deal {
	for _, d := range list {
		if d.OnChainDealID != "" && d.OnChainDealID == record.OnChainID {
			return d
		}
	}

	for _, d := range list {
		if d.CID == record.CID && d.ClientAddress == record.Client {
			return d
		}
	}

	for _, d := range list {
		if OnChainID(d.ID) == record.OnChainID {
			return d
		}
	}

	return nil
}

// mergeDeal combines an off-chain record with its registry record. The
// off-chain copy wins descriptive fields; the ledger is authoritative
// for registration, status and expiry.
func mergeDeal(off *Deal, record *chain.DealRecord) *Deal {
	merged := *off
	merged.OnChainDealID = record.OnChainID
	merged.OnChainRegistered = true
	merged.FromOnChainOnly = false
	if record.Relay != "" {
		merged.OnChainRelay = record.Relay
	}

	// Once on-chain, the ledger owns status and expiry. A stale
	// off-chain copy must never contradict it.
	if merged.Status != StatusTerminated {
		if record.Active {
			merged.Status = StatusActive
		}

		if record.EndTime > 0 {
			expires := time.Unix(record.EndTime, 0).UTC()
			merged.ExpiresAt = &expires
		}

		if record.StartTime > 0 && merged.ActivatedAt == nil {
			activated := time.Unix(record.StartTime, 0).UTC()
			merged.ActivatedAt = &activated
		}
	}

	return &merged
}

// stubFromRecord synthesizes a deal from ledger fields alone, so the
// client sees the deal exists before the graph store replicates it.
// Tier is unknown and pricing is best-effort.
func stubFromRecord(record *chain.DealRecord) *Deal {
	// Expiry stays derived: the stub is stored active with the
	// ledger's end time, EffectiveStatus folds in the rest.
	stub := &Deal{
		OnChainDealID:     record.OnChainID,
		ClientAddress:     record.Client,
		OnChainRelay:      record.Relay,
		CID:               record.CID,
		SizeMB:            record.SizeMB,
		DurationDays:      record.DurationDays,
		Status:            StatusActive,
		OnChainRegistered: true,
		FromOnChainOnly:   true,
		Sources:           []string{SourceChain},
	}

	if record.StartTime > 0 {
		activated := time.Unix(record.StartTime, 0).UTC()
		stub.ActivatedAt = &activated
		stub.CreatedAt = activated
	}

	if record.EndTime > 0 {
		expires := time.Unix(record.EndTime, 0).UTC()
		stub.ExpiresAt = &expires
	}

	if price, err := decimal.NewFromString(record.PriceUSDC); err == nil {
		stub.Pricing = &Pricing{
			SizeMB:            record.SizeMB,
			DurationDays:      record.DurationDays,
			TotalPriceUSDC:    price.Shift(-usdcDecimals),
			ReplicationFactor: 1,
		}
	}

	return stub
}
