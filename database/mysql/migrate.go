package mysql

import (
	"gorm.io/gorm"

	"github.com/scobru/shogun-relay/database/orm"
)

// Migrate creates or updates the relay tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&orm.ReputationRecord{},
		&orm.DealMapping{},
		&orm.ProofEvent{},
	)
}
