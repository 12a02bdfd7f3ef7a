package service

import (
	"github.com/gin-gonic/gin"
)

type reportReq struct {
	DealID      string `json:"deal_id" binding:"required"`
	SlashAmount string `json:"slash_amount" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
}

type reportResp struct {
	TxHash string `json:"tx_hash"`
}

// Report handles the POST /report request: a storage failure report
// that griefs the deal on the registry, slashing the relay stake.
func (s *Service) Report(
	c *gin.Context,
	req *reportReq,
) (*reportResp, error) {
	tx, err := s.manager.Report(
		c.Request.Context(),
		req.DealID,
		req.SlashAmount,
		req.Reason,
	)
	if err != nil {
		return nil, err
	}

	return &reportResp{TxHash: tx}, nil
}
