package orm

import "time"

// DealMapping is a gorm table definition represents the deal_mappings.
// The registry contract only stores the hash of a deal id, so the
// id to hash mapping is persisted from every code path that learns it.
type DealMapping struct {
	ID            uint64 `gorm:"primary_key"`
	DealID        string `gorm:"uniqueIndex;size:64"`
	OnChainDealID string `gorm:"uniqueIndex;size:64"`
	ClientAddress string `gorm:"index;size:64"`
	CID           string `gorm:"size:128"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
