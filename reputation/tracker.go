// Package reputation folds storage proof outcomes into per-host
// reputation records. The proof verifier is the sole writer.
package reputation

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/scobru/shogun-relay/database/orm"
)

// Tracker persists reputation counters keyed by host. Counters are
// merged in place; history is never overwritten destructively.
type Tracker struct {
	db *gorm.DB
}

// NewTracker returns a new reputation tracker.
func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// ApplyOutcome folds one proof outcome into a record. Pure fold,
// exported for the score pipeline tests.
func ApplyOutcome(rec *orm.ReputationRecord, success bool, responseTimeMs float64) {
	rec.ProofsTotal++
	if success {
		rec.ProofsSuccessful++
		// Running average over successful proofs only; failures have
		// no meaningful response time.
		n := float64(rec.ProofsSuccessful)
		rec.AvgResponseTimeMs += (responseTimeMs - rec.AvgResponseTimeMs) / n
	}

	rec.UptimePercent = float64(rec.ProofsSuccessful) /
		float64(rec.ProofsTotal) * 100
}

// RecordProofSuccess folds a successful proof for the host.
func (t *Tracker) RecordProofSuccess(
	host string,
	cid string,
	responseTime time.Duration,
) error {
	return t.record(host, cid, true, float64(responseTime.Milliseconds()), "")
}

// RecordProofFailure folds a failed proof for the host.
func (t *Tracker) RecordProofFailure(host, cid, reason string) error {
	return t.record(host, cid, false, 0, reason)
}

func (t *Tracker) record(
	host string,
	cid string,
	success bool,
	responseTimeMs float64,
	reason string,
) error {
	if t.db == nil {
		return nil
	}

	err := t.db.Transaction(func(tx *gorm.DB) error {
		rec := &orm.ReputationRecord{}
		err := tx.Model(&orm.ReputationRecord{}).
			Where("host = ?", host).
			First(rec).
			Error
		if err == gorm.ErrRecordNotFound {
			rec = &orm.ReputationRecord{Host: host}
		} else if err != nil {
			return err
		}

		ApplyOutcome(rec, success, responseTimeMs)
		if err := tx.Save(rec).Error; err != nil {
			return err
		}

		return tx.Create(&orm.ProofEvent{
			Host:           host,
			CID:            cid,
			Success:        success,
			ResponseTimeMs: responseTimeMs,
			Reason:         reason,
		}).Error
	})
	return errors.Wrap(err, "record proof outcome")
}

// Record reads the folded counters for a host.
func (t *Tracker) Record(host string) (*orm.ReputationRecord, error) {
	if t.db == nil {
		return nil, nil
	}

	rec := &orm.ReputationRecord{}
	err := t.db.Model(&orm.ReputationRecord{}).
		Where("host = ?", host).
		First(rec).
		Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Score derives the host's current reputation score.
func (t *Tracker) Score(host string) (*Score, error) {
	rec, err := t.Record(host)
	if err != nil {
		return nil, err
	}

	return Calculate(rec), nil
}
