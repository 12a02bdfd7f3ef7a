package reputation

import "github.com/scobru/shogun-relay/database/orm"

// minProofsForScore is the sample size below which a score is
// reported but flagged as low-confidence.
const minProofsForScore = 10

// Score tiers.
const (
	TierBronze = "bronze"
	TierSilver = "silver"
	TierGold   = "gold"
)

// Breakdown itemizes the score components, each already weighted.
type Breakdown struct {
	SuccessRate  float64 `json:"success_rate"`
	ResponseTime float64 `json:"response_time"`
	Uptime       float64 `json:"uptime"`
}

// Score is the derived reputation of a storage host. Deal creation
// flows use it to select among candidate relays.
type Score struct {
	Total         float64   `json:"total"`
	Tier          string    `json:"tier"`
	Breakdown     Breakdown `json:"breakdown"`
	HasEnoughData bool      `json:"has_enough_data"`
}

// Component weights, summing to 100.
const (
	successWeight  = 50.0
	responseWeight = 30.0
	uptimeWeight   = 20.0
)

// responseBaselineMs is the response time scoring full marks; scores
// decay linearly to zero at ten times the baseline.
const responseBaselineMs = 200.0

// Calculate derives the score from folded proof counters. Pure
// function of the record.
func Calculate(rec *orm.ReputationRecord) *Score {
	if rec == nil || rec.ProofsTotal == 0 {
		return &Score{Tier: TierBronze}
	}

	successRate := float64(rec.ProofsSuccessful) / float64(rec.ProofsTotal)
	successScore := successRate * successWeight

	responseScore := responseWeight
	if rec.AvgResponseTimeMs > responseBaselineMs {
		excess := rec.AvgResponseTimeMs - responseBaselineMs
		span := responseBaselineMs * 9
		factor := 1 - excess/span
		if factor < 0 {
			factor = 0
		}

		responseScore = factor * responseWeight
	}

	uptimeScore := rec.UptimePercent / 100 * uptimeWeight

	total := successScore + responseScore + uptimeScore
	tier := TierBronze
	switch {
	case total >= 80:
		tier = TierGold
	case total >= 50:
		tier = TierSilver
	}

	return &Score{
		Total: total,
		Tier:  tier,
		Breakdown: Breakdown{
			SuccessRate:  successScore,
			ResponseTime: responseScore,
			Uptime:       uptimeScore,
		},
		HasEnoughData: rec.ProofsTotal >= minProofsForScore,
	}
}
