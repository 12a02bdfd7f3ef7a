package service

import (
	"github.com/gin-gonic/gin"

	"github.com/scobru/shogun-relay/proof"
)

type verifyReq struct {
	CID string `form:"cid" binding:"required,cid"`
}

// Verify handles the GET /verify request: the three independent
// storage checks for one content identifier.
func (s *Service) Verify(
	c *gin.Context,
	req *verifyReq,
) (*proof.VerifyResult, error) {
	return s.verifier.Verify(c.Request.Context(), req.CID)
}

type verifyProofReq struct {
	CID       string `json:"cid" binding:"required,cid"`
	Challenge string `json:"challenge"`
}

// VerifyProof handles the POST /verify-proof request: a challenge
// bound existence proof over a stored object.
func (s *Service) VerifyProof(
	c *gin.Context,
	req *verifyProofReq,
) (*proof.Proof, error) {
	return s.verifier.GenerateProof(c.Request.Context(), req.CID, req.Challenge)
}
