package service

import (
	"github.com/gin-gonic/gin"

	"github.com/scobru/shogun-relay/reputation"
)

type reputationReq struct {
	Host string `form:"host" binding:"required"`
}

type reputationResp struct {
	Host             string             `json:"host"`
	Score            *reputation.Score  `json:"score"`
	ProofsTotal      uint64             `json:"proofs_total"`
	ProofsSuccessful uint64             `json:"proofs_successful"`
	AvgResponseMs    float64            `json:"avg_response_ms"`
	UptimePercent    float64            `json:"uptime_percent"`
}

// Reputation handles the GET /reputation request.
func (s *Service) Reputation(
	_ *gin.Context,
	req *reputationReq,
) (*reputationResp, error) {
	rec, err := s.tracker.Record(req.Host)
	if err != nil {
		return nil, err
	}

	score, err := s.tracker.Score(req.Host)
	if err != nil {
		return nil, err
	}

	resp := &reputationResp{
		Host:  req.Host,
		Score: score,
	}
	if rec != nil {
		resp.ProofsTotal = rec.ProofsTotal
		resp.ProofsSuccessful = rec.ProofsSuccessful
		resp.AvgResponseMs = rec.AvgResponseTimeMs
		resp.UptimePercent = rec.UptimePercent
	}

	return resp, nil
}
