package config

import "github.com/scobru/shogun-relay/database/mysql"

// RelayConfig defines the config for the relay API service.
type RelayConfig struct {
	Port             int           `yaml:"port"`
	MySQL            mysql.Config  `yaml:"mysql"`
	Identity         Identity      `yaml:"identity"`
	Registry         Registry      `yaml:"registry"`
	PaymentEndpoint  string        `yaml:"payment_endpoint"`
	StorageEndpoint  string        `yaml:"storage_endpoint"`
	GraphEndpoint    string        `yaml:"graph_endpoint"`
	Pricing          Pricing       `yaml:"pricing"`
	Erasure          Erasure       `yaml:"erasure"`
	CacheTTLSeconds  uint64        `yaml:"cache_ttl_seconds"`
	SyncSeconds      uint64        `yaml:"sync_seconds"`
	AdminAddresses   []string      `yaml:"admin_addresses"`
}

// Identity holds the relay identity used to sign graph store records.
type Identity struct {
	Address        string `yaml:"address"`
	SigningKeySeed string `yaml:"signing_key_seed"`
}

// Registry holds the on-chain registry contract endpoint and chain
// parameters returned to clients in payment instructions.
type Registry struct {
	Endpoint        string `yaml:"endpoint"`
	ContractAddress string `yaml:"contract_address"`
	ChainID         uint64 `yaml:"chain_id"`
	TokenAddress    string `yaml:"token_address"`
}

// Pricing holds the per-tier USDC rate per MB per day.
type Pricing struct {
	StandardRate   string `yaml:"standard_rate"`
	PremiumRate    string `yaml:"premium_rate"`
	EnterpriseRate string `yaml:"enterprise_rate"`
}

// Erasure holds the redundancy parameters applied to deals whose tier
// enables erasure coding.
type Erasure struct {
	DataChunks   int `yaml:"data_chunks"`
	ParityChunks int `yaml:"parity_chunks"`
	ChunkSize    int `yaml:"chunk_size"`
}

// DefaultPricing is used when the pricing section is absent.
func DefaultPricing() Pricing {
	return Pricing{
		StandardRate:   "0.00005",
		PremiumRate:    "0.00015",
		EnterpriseRate: "0.0004",
	}
}

// DefaultErasure is the reference redundancy configuration: any 10 of
// 14 chunks recover the original object.
func DefaultErasure() Erasure {
	return Erasure{
		DataChunks:   10,
		ParityChunks: 4,
		ChunkSize:    256 << 10,
	}
}

// Normalize fills zero-valued sections with their defaults.
func (c *RelayConfig) Normalize() {
	if c.Pricing == (Pricing{}) {
		c.Pricing = DefaultPricing()
	}

	if c.Erasure == (Erasure{}) {
		c.Erasure = DefaultErasure()
	}

	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 600
	}

	if c.SyncSeconds == 0 {
		c.SyncSeconds = 300
	}
}
