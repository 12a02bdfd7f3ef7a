package orm

import "time"

// ProofEvent is a gorm table definition represents the proof_events.
// Append-only audit trail of storage proof outcomes per host.
type ProofEvent struct {
	ID             uint64 `gorm:"primary_key"`
	Host           string `gorm:"index;size:255"`
	CID            string `gorm:"size:128"`
	Success        bool
	ResponseTimeMs float64
	Reason         string `gorm:"size:255"`
	CreatedAt      time.Time
}
