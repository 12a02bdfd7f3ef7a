package deal

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/photon-storage/go-common/log"

	"github.com/scobru/shogun-relay/database/orm"
)

// Mappings durably records the deal id to on-chain id mapping. The
// on-chain id is a one-way hash, so every code path that learns a
// mapping writes it here rather than relying on recomputation.
type Mappings struct {
	db *gorm.DB
}

// NewMappings returns the mapping store. A nil db disables persistence.
func NewMappings(db *gorm.DB) *Mappings {
	return &Mappings{db: db}
}

// Record upserts a learned mapping. Failures are logged, not
// propagated: losing a write here degrades reconciliation, it must
// never fail the operation that learned the mapping.
func (m *Mappings) Record(dealID, onChainID, client, cid string) {
	if m.db == nil || dealID == "" || onChainID == "" {
		return
	}

	if err := m.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "deal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"on_chain_deal_id", "client_address", "cid"}),
	}).Create(&orm.DealMapping{
		DealID:        dealID,
		OnChainDealID: onChainID,
		ClientAddress: client,
		CID:           cid,
	}).Error; err != nil {
		log.Warn("fail to persist deal id mapping",
			"deal_id", dealID,
			"error", err,
		)
	}
}

// DealIDFor resolves an on-chain id back to the relay deal id, when
// the mapping was ever observed.
func (m *Mappings) DealIDFor(onChainID string) (string, bool) {
	if m.db == nil {
		return "", false
	}

	mapping := &orm.DealMapping{}
	if err := m.db.Model(&orm.DealMapping{}).
		Where("on_chain_deal_id = ?", onChainID).
		First(mapping).
		Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Warn("fail to resolve deal id mapping",
				"on_chain_id", onChainID,
				"error", err,
			)
		}

		return "", false
	}

	return mapping.DealID, true
}
