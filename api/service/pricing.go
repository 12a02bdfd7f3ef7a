package service

import (
	"github.com/docker/go-units"
	"github.com/gin-gonic/gin"

	"github.com/scobru/shogun-relay/deal"
	"github.com/scobru/shogun-relay/erasure"
)

type pricingReq struct {
	SizeMB       uint64 `form:"size_mb" binding:"required,min=1"`
	DurationDays uint64 `form:"duration_days" binding:"required,min=1"`
	Tier         string `form:"tier" binding:"required"`
}

type pricingResp struct {
	*deal.Pricing
	AtomicAmount string `json:"atomic_amount"`
	SizeHuman    string `json:"size_human"`
}

// Pricing handles the GET /pricing request: a reproducible quote for
// the given size, duration and tier.
func (s *Service) Pricing(
	_ *gin.Context,
	req *pricingReq,
) (*pricingResp, error) {
	tier, err := deal.ParseTier(req.Tier)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricing.DealPrice(req.SizeMB, req.DurationDays, tier)
	if err != nil {
		return nil, err
	}

	return &pricingResp{
		Pricing:      quote,
		AtomicAmount: deal.AtomicUSDC(quote.TotalPriceUSDC).String(),
		SizeHuman:    units.HumanSize(float64(req.SizeMB) * units.MB),
	}, nil
}

type overheadReq struct {
	SizeBytes int64 `form:"size_bytes" binding:"required,min=1"`
}

type overheadResp struct {
	*erasure.Overhead
	StoredHuman string `json:"stored_human"`
}

// Overhead handles the GET /overhead request: the storage cost of
// erasure coding an object of the given size under the configured
// redundancy parameters.
func (s *Service) Overhead(
	_ *gin.Context,
	req *overheadReq,
) (*overheadResp, error) {
	overhead, err := erasure.CalculateOverhead(req.SizeBytes, s.erasureParams())
	if err != nil {
		return nil, err
	}

	return &overheadResp{
		Overhead:    overhead,
		StoredHuman: units.HumanSize(float64(overhead.StoredBytes)),
	}, nil
}
