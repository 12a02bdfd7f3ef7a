package config

import "github.com/scobru/shogun-relay/database/mysql"

// SyncerConfig defines the config for the standalone deal sync job.
type SyncerConfig struct {
	MySQL           mysql.Config `yaml:"mysql"`
	Identity        Identity     `yaml:"identity"`
	Registry        Registry     `yaml:"registry"`
	StorageEndpoint string       `yaml:"storage_endpoint"`
	GraphEndpoint   string       `yaml:"graph_endpoint"`
	SyncSeconds     uint64       `yaml:"sync_seconds"`
}
