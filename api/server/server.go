package server

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/photon-storage/go-common/log"

	"github.com/scobru/shogun-relay/api/service"
)

// Server defines an instance of a server that handles the requests of
// the relay API.
type Server struct {
	port   int
	engine *gin.Engine
}

// New returns a new instance of the server.
func New(port int, service *service.Service) *Server {
	server := &Server{
		port:   port,
		engine: gin.Default(),
	}

	registerValidations()
	server.registerRouter(service)
	return server
}

func (s *Server) registerRouter(service *service.Service) {
	s.engine.Use(handleError())
	g := s.engine.Group("relay/v1")

	g.GET("ping", s.handle(service.Ping))

	g.POST("deals", s.handle(service.CreateDeal))
	g.POST("deals/activate", s.handle(service.ActivateDeal))
	g.POST("deals/renew", s.handle(service.RenewDeal))
	g.POST("deals/terminate", s.handle(service.TerminateDeal))
	g.GET("deal", s.handle(service.Deal))
	g.GET("deals", s.handle(service.ClientDeals))

	g.GET("pricing", s.handle(service.Pricing))
	g.GET("overhead", s.handle(service.Overhead))

	g.GET("verify", s.handle(service.Verify))
	g.POST("verify-proof", s.handle(service.VerifyProof))
	g.POST("report", s.handle(service.Report))
	g.GET("reputation", s.handle(service.Reputation))

	g.POST("sync", s.handle(service.TriggerSync))
	g.GET("sync-status", s.handle(service.SyncStatus))
}

// Run the server
func (s *Server) Run() {
	if err := s.engine.Run(fmt.Sprintf(":%d", s.port)); err != nil {
		log.Error("run the server failed", "error", err)
		os.Exit(1)
	}
}
