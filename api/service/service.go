// Package service implements the relay API handlers.
package service

import (
	"github.com/gin-gonic/gin"
	ipfscid "github.com/ipfs/go-cid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/scobru/shogun-relay/config"
	"github.com/scobru/shogun-relay/deal"
	"github.com/scobru/shogun-relay/erasure"
	"github.com/scobru/shogun-relay/proof"
	"github.com/scobru/shogun-relay/reputation"
	"github.com/scobru/shogun-relay/sync"
)

// Service defines an instance of service that handles relay requests.
type Service struct {
	db         *gorm.DB
	manager    *deal.Manager
	store      *deal.Store
	reconciler *deal.Reconciler
	pricing    *deal.PricingEngine
	verifier   *proof.Verifier
	tracker    *reputation.Tracker
	erasureCfg config.Erasure
	syncJob    *sync.EventProcessor
}

// Opts collects the service dependencies.
type Opts struct {
	DB         *gorm.DB
	Manager    *deal.Manager
	Store      *deal.Store
	Reconciler *deal.Reconciler
	Pricing    *deal.PricingEngine
	Verifier   *proof.Verifier
	Tracker    *reputation.Tracker
	ErasureCfg config.Erasure
	SyncJob    *sync.EventProcessor
}

// New creates a new service instance.
func New(opts Opts) *Service {
	return &Service{
		db:         opts.DB,
		manager:    opts.Manager,
		store:      opts.Store,
		reconciler: opts.Reconciler,
		pricing:    opts.Pricing,
		verifier:   opts.Verifier,
		tracker:    opts.Tracker,
		erasureCfg: opts.ErasureCfg,
		syncJob:    opts.SyncJob,
	}
}

func (s *Service) erasureParams() erasure.Params {
	return erasure.Params{
		ChunkSize:    s.erasureCfg.ChunkSize,
		DataChunks:   s.erasureCfg.DataChunks,
		ParityChunks: s.erasureCfg.ParityChunks,
	}
}

// validCID rejects content identifiers the storage network would not
// accept.
func validCID(s string) error {
	if _, err := ipfscid.Decode(s); err != nil {
		return errors.Wrap(errInvalidCID, err.Error())
	}

	return nil
}

type pingResp struct {
	Pong string `json:"pong"`
}

func (s *Service) Ping(_ *gin.Context) (*pingResp, error) {
	return &pingResp{Pong: "pong"}, nil
}
