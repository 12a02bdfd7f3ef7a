package deal

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/scobru/shogun-relay/config"
)

// usdcDecimals is the atomic unit precision of the payment token.
const usdcDecimals = 6

// PricingEngine computes deterministic deal prices from size, duration
// and tier. Rates are fixed at construction so quotes are reproducible.
type PricingEngine struct {
	rates map[Tier]decimal.Decimal
}

// NewPricingEngine parses the per-tier USDC/MB/day rates.
func NewPricingEngine(cfg config.Pricing) (*PricingEngine, error) {
	rates := make(map[Tier]decimal.Decimal, 3)
	for tier, raw := range map[Tier]string{
		TierStandard:   cfg.StandardRate,
		TierPremium:    cfg.PremiumRate,
		TierEnterprise: cfg.EnterpriseRate,
	} {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s rate", tier)
		}

		if rate.IsNegative() {
			return nil, errors.Errorf("%s rate is negative", tier)
		}

		rates[tier] = rate
	}

	return &PricingEngine{rates: rates}, nil
}

func tierFeatures(tier Tier) (Features, int) {
	switch tier {
	case TierPremium:
		return Features{ErasureCoding: true}, 3
	case TierEnterprise:
		return Features{ErasureCoding: true}, 5
	default:
		return Features{}, 1
	}
}

// DealPrice quotes a new deal. Pure function of its inputs.
func (p *PricingEngine) DealPrice(
	sizeMB uint64,
	durationDays uint64,
	tier Tier,
) (*Pricing, error) {
	rate, ok := p.rates[tier]
	if !ok {
		return nil, ErrInvalidTier
	}

	if sizeMB == 0 {
		return nil, errors.New("size must be positive")
	}

	if durationDays == 0 {
		return nil, errors.New("duration must be positive")
	}

	features, replication := tierFeatures(tier)
	total := rate.
		Mul(decimal.NewFromInt(int64(sizeMB))).
		Mul(decimal.NewFromInt(int64(durationDays)))
	return &Pricing{
		Tier:              tier,
		SizeMB:            sizeMB,
		DurationDays:      durationDays,
		TotalPriceUSDC:    total,
		Features:          features,
		ReplicationFactor: replication,
	}, nil
}

// RenewalPrice quotes extending a deal, reusing the per-day rate of
// the original deal's tier.
func (p *PricingEngine) RenewalPrice(
	d *Deal,
	additionalDays uint64,
) (*Pricing, error) {
	return p.DealPrice(d.SizeMB, additionalDays, d.Tier)
}

// AtomicUSDC converts a USDC amount to atomic token units, rounding up
// so the required allowance always covers the quoted price.
func AtomicUSDC(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(usdcDecimals).Ceil()
}
