package service

import (
	"github.com/gin-gonic/gin"

	"github.com/scobru/shogun-relay/sync"
)

// TriggerSync handles the POST /sync request: one synchronous deal
// sync pass.
func (s *Service) TriggerSync(c *gin.Context) (*sync.Status, error) {
	if s.syncJob == nil {
		return nil, errSyncDisabled
	}

	status, err := s.syncJob.RunOnce(c.Request.Context())
	if err != nil {
		return nil, err
	}

	return &status, nil
}

// SyncStatus handles the GET /sync-status request.
func (s *Service) SyncStatus(_ *gin.Context) (*sync.Status, error) {
	if s.syncJob == nil {
		return nil, errSyncDisabled
	}

	status := s.syncJob.Status()
	return &status, nil
}
