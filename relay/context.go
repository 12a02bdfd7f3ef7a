// Package relay wires the relay's identity and collaborators together
// for the command entry points.
package relay

import (
	"crypto/ed25519"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/scobru/shogun-relay/chain"
	"github.com/scobru/shogun-relay/config"
	"github.com/scobru/shogun-relay/database/mysql"
	"github.com/scobru/shogun-relay/deal"
	"github.com/scobru/shogun-relay/erasure"
	"github.com/scobru/shogun-relay/graph"
	"github.com/scobru/shogun-relay/ipfs"
	"github.com/scobru/shogun-relay/proof"
	"github.com/scobru/shogun-relay/reputation"
	"github.com/scobru/shogun-relay/sync"
	"github.com/scobru/shogun-relay/worker"
)

const (
	taskQueueSize   = 256
	taskMaxAttempts = 3
	taskRetryDelay  = 5 * time.Second
	taskTimeout     = 5 * time.Minute
)

// Identity is the relay's address and graph store signing key.
type Identity struct {
	Address    string
	SigningKey ed25519.PrivateKey
}

// Context holds every constructed collaborator of a running relay.
// It is passed into the entry points explicitly; there are no package
// level singletons.
type Context struct {
	Identity Identity
	DB       *gorm.DB

	Registry *chain.RegistryClient
	Payments *chain.PaymentClient
	Storage  *ipfs.Client
	Graph    *graph.Client

	Store      *deal.Store
	Mappings   *deal.Mappings
	Pricing    *deal.PricingEngine
	Manager    *deal.Manager
	Reconciler *deal.Reconciler
	Verifier   *proof.Verifier
	Tracker    *reputation.Tracker
	Tasks      *worker.Runner
	SyncJob    *sync.EventProcessor
}

// NewContext constructs the relay from its config. The MySQL handle is
// optional: without it, mappings and reputation degrade to no-ops.
func NewContext(cfg *config.RelayConfig, db *gorm.DB) (*Context, error) {
	cfg.Normalize()

	identity, err := ParseIdentity(cfg.Identity)
	if err != nil {
		return nil, err
	}

	pricing, err := deal.NewPricingEngine(cfg.Pricing)
	if err != nil {
		return nil, errors.Wrap(err, "build pricing engine")
	}

	erasureParams := erasure.Params{
		ChunkSize:    cfg.Erasure.ChunkSize,
		DataChunks:   cfg.Erasure.DataChunks,
		ParityChunks: cfg.Erasure.ParityChunks,
	}
	if err := erasureParams.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid erasure config")
	}

	registry := chain.NewRegistryClient(cfg.Registry.Endpoint)
	payments := chain.NewPaymentClient(cfg.PaymentEndpoint)
	storage := ipfs.NewClient(cfg.StorageEndpoint)
	graphClient := graph.NewClient(cfg.GraphEndpoint, identity.SigningKey)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	store := deal.NewStore(graphClient, gocache.New(cacheTTL, cacheTTL))
	mappings := deal.NewMappings(db)
	tasks := worker.NewRunner(
		taskQueueSize,
		taskMaxAttempts,
		taskRetryDelay,
		taskTimeout,
	)

	manager := deal.NewManager(deal.ManagerOpts{
		RelayAddress: identity.Address,
		RegistryCfg:  cfg.Registry,
		Pricing:      pricing,
		ErasureCfg:   erasureParams,
		Store:        store,
		Registry:     registry,
		Payments:     payments,
		Storage:      storage,
		Graph:        graphClient,
		Mappings:     mappings,
		Tasks:        tasks,
		Admins:       cfg.AdminAddresses,
	})

	tracker := reputation.NewTracker(db)
	return &Context{
		Identity:   identity,
		DB:         db,
		Registry:   registry,
		Payments:   payments,
		Storage:    storage,
		Graph:      graphClient,
		Store:      store,
		Mappings:   mappings,
		Pricing:    pricing,
		Manager:    manager,
		Reconciler: deal.NewReconciler(store, registry, mappings),
		Verifier:   proof.NewVerifier(storage, tracker, cfg.StorageEndpoint),
		Tracker:    tracker,
		Tasks:      tasks,
		SyncJob: sync.NewEventProcessor(
			cfg.SyncSeconds,
			store,
			registry,
			storage,
		),
	}, nil
}

// NewDB opens the MySQL handle and runs migrations. A blank config
// disables persistence.
func NewDB(cfg mysql.Config) (*gorm.DB, error) {
	if cfg.Master.Host == "" {
		return nil, nil
	}

	db, err := mysql.NewMySQLDB(cfg)
	if err != nil {
		return nil, err
	}

	if err := mysql.Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// ParseIdentity derives the relay identity from the configured hex
// seed.
func ParseIdentity(cfg config.Identity) (Identity, error) {
	if cfg.SigningKeySeed == "" {
		return Identity{}, errors.New("missing identity signing key seed")
	}

	seed, err := hex.DecodeString(cfg.SigningKeySeed)
	if err != nil {
		return Identity{}, errors.Wrap(err, "decode signing key seed")
	}

	if len(seed) != ed25519.SeedSize {
		return Identity{}, errors.Errorf(
			"signing key seed must be %d bytes, got %d",
			ed25519.SeedSize,
			len(seed),
		)
	}

	return Identity{
		Address:    cfg.Address,
		SigningKey: ed25519.NewKeyFromSeed(seed),
	}, nil
}
