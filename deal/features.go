package deal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/photon-storage/go-common/log"

	"github.com/scobru/shogun-relay/erasure"
	"github.com/scobru/shogun-relay/worker"
)

// replicationRequestPath is the shared broadcast namespace other nodes
// watch for replication work.
const replicationRequestPath = "replication/requests"

// ReplicationRequest is the record broadcast to peer nodes when a
// deal's tier demands cross-node copies.
type ReplicationRequest struct {
	ID          string    `json:"id"`
	CID         string    `json:"cid"`
	Requester   string    `json:"requester"`
	Factor      int       `json:"factor"`
	Priority    string    `json:"priority"`
	RequestedAt time.Time `json:"requested_at"`
}

// schedulePin queues a best-effort pin of the deal content. Failures,
// including "already pinned" and timeouts, never surface to the
// caller.
func (m *Manager) schedulePin(cid string) {
	m.tasks.Submit(worker.Task{
		Name: fmt.Sprintf("pin %s", cid),
		Run: func(ctx context.Context) error {
			if err := m.storage.Pin(ctx, cid); err != nil {
				log.Warn("best-effort pin failed", "cid", cid, "error", err)
			}

			return nil
		},
	})
}

// scheduleTierFeatures queues erasure coding and replication broadcast
// for deals whose tier enables them. Invoked only after activation and
// never blocks the activation response.
func (m *Manager) scheduleTierFeatures(d *Deal) {
	if d.Pricing == nil {
		return
	}

	if d.Pricing.Features.ErasureCoding {
		id := d.ID
		m.tasks.Submit(worker.Task{
			Name: fmt.Sprintf("erasure-code deal %s", id),
			Run: func(ctx context.Context) error {
				return m.applyErasureCoding(ctx, id)
			},
		})
	}

	if d.Pricing.ReplicationFactor > 1 {
		id := d.ID
		m.tasks.Submit(worker.Task{
			Name: fmt.Sprintf("replicate deal %s", id),
			Run: func(ctx context.Context) error {
				return m.publishReplicationRequest(ctx, id)
			},
		})
	}
}

// applyErasureCoding fetches the full object, encodes it, uploads
// every chunk, and persists the metadata on the deal. Failures are
// recorded on the deal, never rolled back into activation.
func (m *Manager) applyErasureCoding(ctx context.Context, dealID string) error {
	d, err := m.store.Get(ctx, dealID)
	if err != nil {
		return err
	}

	if d == nil {
		return ErrDealNotFound
	}

	if d.ErasureMetadata != nil {
		return nil
	}

	meta, err := m.encodeAndUpload(ctx, d.CID)
	if err != nil {
		d.ErasureCodingError = err.Error()
		if saveErr := m.store.Save(ctx, d); saveErr != nil {
			log.Warn("fail to record erasure coding error",
				"deal_id", d.ID,
				"error", saveErr,
			)
		}

		return err
	}

	d.ErasureMetadata = meta
	d.ErasureCodingError = ""
	return m.store.Save(ctx, d)
}

func (m *Manager) encodeAndUpload(
	ctx context.Context,
	cid string,
) (*erasure.Metadata, error) {
	data, err := m.storage.Cat(ctx, cid, 0, 0)
	if err != nil {
		return nil, errors.Wrap(err, "fetch object")
	}

	meta, err := erasure.Encode(data, m.erasureCfg)
	if err != nil {
		return nil, errors.Wrap(err, "encode object")
	}

	meta.OriginalCID = cid
	for _, c := range meta.Chunks {
		chunkCID, err := m.storage.Add(ctx, c.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "upload chunk %d", c.Index)
		}

		c.CID = chunkCID
	}

	return meta, nil
}

// publishReplicationRequest broadcasts a replication record for other
// nodes to pick up. Fire and forget: nothing waits for replicas.
func (m *Manager) publishReplicationRequest(
	ctx context.Context,
	dealID string,
) error {
	d, err := m.store.Get(ctx, dealID)
	if err != nil {
		return err
	}

	if d == nil {
		return ErrDealNotFound
	}

	if d.ReplicationRequestID != "" {
		return nil
	}

	req := &ReplicationRequest{
		ID:          uuid.NewString(),
		CID:         d.CID,
		Requester:   m.relayAddress,
		Factor:      d.Pricing.ReplicationFactor,
		Priority:    string(d.Tier),
		RequestedAt: time.Now().UTC(),
	}
	path := fmt.Sprintf("%s/%s", replicationRequestPath, req.ID)
	if err := m.graph.Put(ctx, path, req); err != nil {
		return errors.Wrap(err, "publish replication request")
	}

	d.ReplicationRequestID = req.ID
	d.ReplicationRequestedAt = &req.RequestedAt
	return m.store.Save(ctx, d)
}
