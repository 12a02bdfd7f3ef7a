package deal

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/scobru/shogun-relay/chain"
	"github.com/scobru/shogun-relay/config"
	"github.com/scobru/shogun-relay/erasure"
	"github.com/scobru/shogun-relay/worker"
)

var errRegistryDown = errors.New("registry rpc unavailable")

type fakeGraph struct {
	mu      sync.Mutex
	records map[string]json.RawMessage
	putErr  error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{records: make(map[string]json.RawMessage)}
}

func (g *fakeGraph) Put(_ context.Context, path string, record interface{}) error {
	if g.putErr != nil {
		return g.putErr
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[path] = raw
	return nil
}

func (g *fakeGraph) Get(_ context.Context, path string, out interface{}) (bool, error) {
	g.mu.Lock()
	raw, ok := g.records[path]
	g.mu.Unlock()
	if !ok {
		return false, nil
	}

	return true, json.Unmarshal(raw, out)
}

func (g *fakeGraph) MapOnce(
	_ context.Context,
	path string,
	visit func(key string, raw json.RawMessage) error,
) error {
	g.mu.Lock()
	snapshot := make(map[string]json.RawMessage, len(g.records))
	for k, v := range g.records {
		snapshot[k] = v
	}
	g.mu.Unlock()

	for k, v := range snapshot {
		if !strings.HasPrefix(k, path+"/") {
			continue
		}

		if err := visit(strings.TrimPrefix(k, path+"/"), v); err != nil {
			return err
		}
	}

	return nil
}

type fakeRegistry struct {
	mu          sync.Mutex
	allowance   decimal.Decimal
	registerErr error
	records     map[string]*chain.DealRecord
	registered  []chain.RegisterParams
	griefed     []string
	listErr     error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{records: make(map[string]*chain.DealRecord)}
}

func (r *fakeRegistry) RegisterDeal(
	_ context.Context,
	params chain.RegisterParams,
) (*chain.RegisterResult, error) {
	if r.registerErr != nil {
		return nil, r.registerErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	onChainID := OnChainID(params.DealID)
	if _, ok := r.records[onChainID]; ok {
		return nil, errors.New("duplicate registration")
	}

	now := time.Now().UTC()
	r.records[onChainID] = &chain.DealRecord{
		OnChainID:    onChainID,
		Client:       params.Client,
		CID:          params.CID,
		SizeMB:       params.SizeMB,
		PriceUSDC:    params.PriceUSDC,
		DurationDays: params.DurationDays,
		StartTime:    now.Unix(),
		EndTime:      now.Add(time.Duration(params.DurationDays) * 24 * time.Hour).Unix(),
		Active:       true,
		Relay:        "relay-1",
	}
	r.registered = append(r.registered, params)
	return &chain.RegisterResult{
		TxHash:    "0xtx-" + params.DealID,
		OnChainID: onChainID,
	}, nil
}

func (r *fakeRegistry) Deal(
	_ context.Context,
	onChainID string,
) (*chain.DealRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[onChainID], nil
}

func (r *fakeRegistry) ClientDeals(
	_ context.Context,
	address string,
) ([]*chain.DealRecord, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*chain.DealRecord, 0)
	for _, rec := range r.records {
		if rec.Client == address {
			out = append(out, rec)
		}
	}

	return out, nil
}

func (r *fakeRegistry) Allowance(
	_ context.Context,
	_ string,
) (decimal.Decimal, error) {
	return r.allowance, nil
}

func (r *fakeRegistry) Grief(
	_ context.Context,
	onChainID, _, _ string,
) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.griefed = append(r.griefed, onChainID)
	return "0xgrief", nil
}

type fakePayments struct {
	verifyValid   bool
	invalidReason string
	settleOK      bool
	settleReason  string
}

func (p *fakePayments) VerifyDealPayment(
	_ context.Context,
	_ json.RawMessage,
	_ decimal.Decimal,
) (*chain.VerifyResult, error) {
	return &chain.VerifyResult{
		IsValid:       p.verifyValid,
		InvalidReason: p.invalidReason,
	}, nil
}

func (p *fakePayments) SettlePayment(
	_ context.Context,
	_ json.RawMessage,
) (*chain.SettleResult, error) {
	return &chain.SettleResult{
		Success:     p.settleOK,
		Transaction: "0xsettle",
		ErrorReason: p.settleReason,
	}, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	pinned  map[string]bool
	nextCID int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects: make(map[string][]byte),
		pinned:  make(map[string]bool),
	}
}

func (s *fakeStorage) put(cid string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[cid] = data
}

func (s *fakeStorage) Add(_ context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCID++
	cid := "bafychunk" + string(rune('a'+s.nextCID%26)) + string(rune('a'+s.nextCID/26))
	s.objects[cid] = data
	return cid, nil
}

func (s *fakeStorage) Cat(
	_ context.Context,
	cid string,
	offset, length int64,
) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[cid]
	if !ok {
		return nil, errors.New("not found")
	}

	if length <= 0 {
		return data, nil
	}

	end := offset + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}

	return data[offset:end], nil
}

func (s *fakeStorage) Pin(_ context.Context, cid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned[cid] = true
	return nil
}

func (s *fakeStorage) PinLs(_ context.Context, cid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinned[cid], nil
}

func (s *fakeStorage) BlockStat(_ context.Context, cid string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[cid]
	if !ok {
		return 0, errors.New("not found")
	}

	return int64(len(data)), nil
}

type testEnv struct {
	graph    *fakeGraph
	registry *fakeRegistry
	payments *fakePayments
	storage  *fakeStorage
	store    *Store
	manager  *Manager
	tasks    *worker.Runner
}

func newTestEnv() *testEnv {
	graph := newFakeGraph()
	registry := newFakeRegistry()
	payments := &fakePayments{verifyValid: true, settleOK: true}
	storage := newFakeStorage()
	store := NewStore(graph, gocache.New(10*time.Minute, 0))
	pricing, err := NewPricingEngine(config.DefaultPricing())
	if err != nil {
		panic(err)
	}

	tasks := worker.NewRunner(16, 2, time.Millisecond, 5*time.Second)
	tasks.Start()

	manager := NewManager(ManagerOpts{
		RelayAddress: "relay-1",
		RegistryCfg: config.Registry{
			ContractAddress: "0xregistry",
			ChainID:         8453,
			TokenAddress:    "0xusdc",
		},
		Pricing:          pricing,
		ErasureCfg:       erasure.Params{ChunkSize: 64, DataChunks: 4, ParityChunks: 2},
		Store:            store,
		Registry:         registry,
		Payments:         payments,
		Storage:          storage,
		Graph:            graph,
		Mappings:         NewMappings(nil),
		Tasks:            tasks,
		Admins:           []string{"0xoperator"},
		AllowanceBackoff: time.Millisecond,
	})

	return &testEnv{
		graph:    graph,
		registry: registry,
		payments: payments,
		storage:  storage,
		store:    store,
		manager:  manager,
		tasks:    tasks,
	}
}

func (e *testEnv) close() {
	e.tasks.Stop()
}
