// Package sync runs the periodic deal synchronization job that keeps
// the storage network consistent with the deal ledger: content backing
// an active deal must stay pinned, and deals whose on-chain record has
// been deactivated are flagged.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/photon-storage/go-common/log"

	"github.com/scobru/shogun-relay/chain"
	"github.com/scobru/shogun-relay/deal"
)

// DealSource lists the deals the job reconciles against storage.
type DealSource interface {
	List(ctx context.Context) ([]*deal.Deal, error)
}

// Registry is the subset of the deal ledger the job reads.
type Registry interface {
	Deal(ctx context.Context, onChainID string) (*chain.DealRecord, error)
}

// Storage is the subset of the storage network the job needs to
// check and restore pins.
type Storage interface {
	PinLs(ctx context.Context, cid string) (bool, error)
	Pin(ctx context.Context, cid string) error
}

// Status is a snapshot of the most recent sync run.
type Status struct {
	Running      bool      `json:"running"`
	LastRunAt    time.Time `json:"last_run_at"`
	LastDuration string    `json:"last_duration"`
	DealsChecked int       `json:"deals_checked"`
	Repinned     int       `json:"repinned"`
	Deactivated  int       `json:"deactivated"`
	Failures     int       `json:"failures"`
	LastError    string    `json:"last_error,omitempty"`
}

// EventProcessor is the processor for the timed deal sync task.
type EventProcessor struct {
	syncSeconds uint64
	deals       DealSource
	registry    Registry
	storage     Storage

	mu     sync.Mutex
	status Status
}

// NewEventProcessor returns the new instance of EventProcessor.
func NewEventProcessor(
	syncSeconds uint64,
	deals DealSource,
	registry Registry,
	storage Storage,
) *EventProcessor {
	return &EventProcessor{
		syncSeconds: syncSeconds,
		deals:       deals,
		registry:    registry,
		storage:     storage,
	}
}

// Run executes the timed deal sync task until the context is done.
func (e *EventProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(e.syncSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := e.RunOnce(ctx); err != nil {
				log.Error("fail on deal sync run", "error", err)
			}

		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs a single sync pass and returns the resulting
// status snapshot. Per-deal failures are counted, not fatal; only a
// failure to list deals aborts the pass.
func (e *EventProcessor) RunOnce(ctx context.Context) (Status, error) {
	e.mu.Lock()
	if e.status.Running {
		status := e.status
		e.mu.Unlock()
		return status, nil
	}

	e.status.Running = true
	e.mu.Unlock()

	started := time.Now()
	status := Status{LastRunAt: started.UTC()}

	deals, err := e.deals.List(ctx)
	if err != nil {
		status.Failures++
		status.LastError = err.Error()
		status.LastDuration = time.Since(started).String()
		e.finish(status)
		return status, err
	}

	for _, d := range deals {
		if d.Status != deal.StatusActive || d.Expired(time.Now()) {
			continue
		}

		status.DealsChecked++
		e.checkDeal(ctx, d, &status)
	}

	status.LastDuration = time.Since(started).String()
	e.finish(status)

	log.Info("deal sync pass complete",
		"checked", status.DealsChecked,
		"repinned", status.Repinned,
		"deactivated", status.Deactivated,
		"failures", status.Failures,
	)
	return status, nil
}

func (e *EventProcessor) checkDeal(
	ctx context.Context,
	d *deal.Deal,
	status *Status,
) {
	if d.OnChainDealID != "" {
		rec, err := e.registry.Deal(ctx, d.OnChainDealID)
		if err != nil {
			log.Warn("fail to read deal from ledger",
				"deal_id", d.ID,
				"error", err,
			)
			status.Failures++
			status.LastError = err.Error()
		} else if rec != nil && !rec.Active {
			log.Warn("deal deactivated on ledger",
				"deal_id", d.ID,
				"on_chain_id", d.OnChainDealID,
			)
			status.Deactivated++
			return
		}
	}

	pinned, err := e.storage.PinLs(ctx, d.CID)
	if err != nil {
		status.Failures++
		status.LastError = err.Error()
		return
	}

	if pinned {
		return
	}

	log.Warn("active deal content lost its pin, restoring",
		"deal_id", d.ID,
		"cid", d.CID,
	)
	if err := e.storage.Pin(ctx, d.CID); err != nil {
		status.Failures++
		status.LastError = err.Error()
		return
	}

	status.Repinned++
}

func (e *EventProcessor) finish(status Status) {
	e.mu.Lock()
	e.status = status
	e.status.Running = false
	e.mu.Unlock()
}

// Status returns the snapshot of the latest sync run.
func (e *EventProcessor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}
