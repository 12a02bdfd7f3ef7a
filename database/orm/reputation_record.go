package orm

import "time"

// ReputationRecord is a gorm table definition represents the
// reputation_records. One row per storage host, counters are folded
// in place and never reset.
type ReputationRecord struct {
	ID                uint64 `gorm:"primary_key"`
	Host              string `gorm:"uniqueIndex;size:255"`
	ProofsTotal       uint64
	ProofsSuccessful  uint64
	AvgResponseTimeMs float64
	UptimePercent     float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
