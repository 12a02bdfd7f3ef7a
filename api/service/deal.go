package service

import (
	"encoding/json"
	"time"

	"github.com/docker/go-units"
	"github.com/gin-gonic/gin"

	"github.com/scobru/shogun-relay/api/pagination"
	"github.com/scobru/shogun-relay/deal"
)

// dealResp decorates a deal record with presentation fields.
type dealResp struct {
	*deal.Deal
	EffectiveStatus deal.Status `json:"effective_status"`
	SizeHuman       string      `json:"size_human"`
}

func newDealResp(d *deal.Deal) *dealResp {
	return &dealResp{
		Deal:            d,
		EffectiveStatus: d.EffectiveStatus(time.Now()),
		SizeHuman:       units.HumanSize(float64(d.SizeMB) * units.MB),
	}
}

type createDealReq struct {
	CID               string `json:"cid" binding:"required,cid"`
	ClientAddress     string `json:"client_address" binding:"required"`
	ProviderPublicKey string `json:"provider_public_key"`
	SizeMB            uint64 `json:"size_mb" binding:"required,min=1"`
	DurationDays      uint64 `json:"duration_days" binding:"required,min=1"`
	Tier              string `json:"tier" binding:"required"`
}

type createDealResp struct {
	Deal    *dealResp                 `json:"deal"`
	Payment *deal.PaymentInstructions `json:"payment"`
}

// CreateDeal handles the POST /deals request.
func (s *Service) CreateDeal(
	c *gin.Context,
	req *createDealReq,
) (*createDealResp, error) {
	tier, err := deal.ParseTier(req.Tier)
	if err != nil {
		return nil, err
	}

	d, payment, err := s.manager.Create(c.Request.Context(), deal.CreateParams{
		CID:               req.CID,
		ClientAddress:     req.ClientAddress,
		ProviderPublicKey: req.ProviderPublicKey,
		SizeMB:            req.SizeMB,
		DurationDays:      req.DurationDays,
		Tier:              tier,
	})
	if err != nil {
		return nil, err
	}

	return &createDealResp{
		Deal:    newDealResp(d),
		Payment: payment,
	}, nil
}

type activateDealReq struct {
	DealID       string          `json:"deal_id" binding:"required"`
	PaymentProof json.RawMessage `json:"payment_proof"`
}

// ActivateDeal handles the POST /deals/activate request.
func (s *Service) ActivateDeal(
	c *gin.Context,
	req *activateDealReq,
) (*dealResp, error) {
	d, err := s.manager.Activate(c.Request.Context(), req.DealID, req.PaymentProof)
	if err != nil {
		return nil, err
	}

	return newDealResp(d), nil
}

type renewDealReq struct {
	DealID         string          `json:"deal_id" binding:"required"`
	AdditionalDays uint64          `json:"additional_days" binding:"required,min=1"`
	Settlement     json.RawMessage `json:"settlement"`
}

// RenewDeal handles the POST /deals/renew request.
func (s *Service) RenewDeal(
	c *gin.Context,
	req *renewDealReq,
) (*dealResp, error) {
	d, err := s.manager.Renew(
		c.Request.Context(),
		req.DealID,
		req.AdditionalDays,
		req.Settlement,
	)
	if err != nil {
		return nil, err
	}

	return newDealResp(d), nil
}

type terminateDealReq struct {
	DealID string `json:"deal_id" binding:"required"`
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason"`
}

// TerminateDeal handles the POST /deals/terminate request.
func (s *Service) TerminateDeal(
	c *gin.Context,
	req *terminateDealReq,
) (*dealResp, error) {
	d, err := s.manager.Terminate(
		c.Request.Context(),
		req.DealID,
		req.Reason,
		req.Actor,
	)
	if err != nil {
		return nil, err
	}

	return newDealResp(d), nil
}

// Deal handles the GET /deal request, looking up one deal by id or by
// cid.
func (s *Service) Deal(c *gin.Context) (*dealResp, error) {
	if id := c.Query("id"); id != "" {
		d, err := s.manager.Get(c.Request.Context(), id)
		if err != nil {
			return nil, err
		}

		return newDealResp(d), nil
	}

	cid := c.Query("cid")
	if cid == "" {
		return nil, errMissingDealRef
	}

	if err := validCID(cid); err != nil {
		return nil, err
	}

	d, err := s.store.FindByCID(c.Request.Context(), cid, c.Query("client"))
	if err != nil {
		return nil, err
	}

	if d == nil {
		return nil, deal.ErrDealNotFound
	}

	return newDealResp(d), nil
}

type clientDealsReq struct {
	Client string `form:"client" binding:"required"`
}

type clientDealsResp struct {
	Deals   []*dealResp       `json:"deals"`
	Sources *deal.SourceCounts `json:"sources"`
}

// ClientDeals handles the GET /deals request: the reconciled view of
// every deal the client holds, with provenance counters.
func (s *Service) ClientDeals(
	c *gin.Context,
	req *clientDealsReq,
	page *pagination.Query,
) (*pagination.Result, error) {
	reconciled, err := s.reconciler.ClientDeals(c.Request.Context(), req.Client)
	if err != nil {
		return nil, err
	}

	deals := reconciled.Deals
	total := int64(len(deals))
	if page.Start >= len(deals) {
		deals = nil
	} else {
		deals = deals[page.Start:]
	}

	if len(deals) > page.Limit {
		deals = deals[:page.Limit]
	}

	resp := &clientDealsResp{
		Deals:   make([]*dealResp, 0, len(deals)),
		Sources: &reconciled.Sources,
	}
	for _, d := range deals {
		resp.Deals = append(resp.Deals, newDealResp(d))
	}

	return &pagination.Result{
		Data:  resp,
		Total: total,
	}, nil
}
