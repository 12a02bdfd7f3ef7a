package deal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/photon-storage/go-common/log"
)

// frozenDealPath is the signed, immutable graph store namespace for
// deal records.
const frozenDealPath = "deals/frozen"

// listTimeout bounds the best-effort snapshot iteration, since the
// graph store has no bounded list primitive.
const listTimeout = 30 * time.Second

// Store persists deals to the replicated graph store and keeps a
// short-TTL in-process copy that bridges the store's replication lag.
// The cache is never the system of record.
type Store struct {
	graph GraphStore
	cache *gocache.Cache
}

// NewStore returns a new deal store adapter.
func NewStore(graph GraphStore, cache *gocache.Cache) *Store {
	return &Store{
		graph: graph,
		cache: cache,
	}
}

func dealPath(id string) string {
	return fmt.Sprintf("%s/%s", frozenDealPath, id)
}

// Save writes the deal to the graph store and refreshes the cached
// copy.
func (s *Store) Save(ctx context.Context, d *Deal) error {
	if err := s.graph.Put(ctx, dealPath(d.ID), d); err != nil {
		return errors.Wrap(err, "put deal record")
	}

	// Cache a snapshot: the caller keeps mutating its own record.
	s.cache.SetDefault(d.ID, d.Clone())
	return nil
}

// Get reads a deal by id, preferring the in-process copy. A miss in
// both sources yields (nil, nil). The returned record is the caller's
// own copy.
func (s *Store) Get(ctx context.Context, id string) (*Deal, error) {
	if cached, ok := s.cache.Get(id); ok {
		return cached.(*Deal).Clone(), nil
	}

	d := &Deal{}
	found, err := s.graph.Get(ctx, dealPath(id), d)
	if err != nil {
		return nil, errors.Wrap(err, "get deal record")
	}

	if !found {
		return nil, nil
	}

	return d, nil
}

// List snapshots the deal records the graph store has replicated so
// far.
func (s *Store) List(ctx context.Context) ([]*Deal, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	deals := make([]*Deal, 0)
	err := s.graph.MapOnce(ctx, frozenDealPath,
		func(key string, raw json.RawMessage) error {
			d := &Deal{}
			if err := json.Unmarshal(raw, d); err != nil {
				log.Warn("skip undecodable deal record",
					"key", key,
					"error", err,
				)
				return nil
			}

			deals = append(deals, d)
			return nil
		})
	if err != nil {
		return nil, errors.Wrap(err, "snapshot deal records")
	}

	return deals, nil
}

// FindByCID scans the replicated records for a (cid, client) match.
func (s *Store) FindByCID(
	ctx context.Context,
	cid string,
	client string,
) (*Deal, error) {
	deals, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, d := range deals {
		if d.CID == cid && (client == "" || d.ClientAddress == client) {
			return d, nil
		}
	}

	return nil, nil
}

// CachedDeals snapshots the pending cache. Expired entries are evicted
// lazily by the cache itself.
func (s *Store) CachedDeals() []*Deal {
	items := s.cache.Items()
	deals := make([]*Deal, 0, len(items))
	for _, item := range items {
		if d, ok := item.Object.(*Deal); ok {
			deals = append(deals, d.Clone())
		}
	}

	return deals
}
