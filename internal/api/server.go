package api

import (
	"go.uber.org/zap"

	"roadmapper/internal/auth"
	"roadmapper/internal/config"
	"roadmapper/internal/graph"
	"roadmapper/internal/planning"
)

// Server holds the application dependencies
type Server struct {
	store     graph.Store
	ledger    *planning.Ledger
	bandwidth *planning.Aggregator
	rollup    *planning.Rollup
	queue     *planning.WriteQueue
	config    *config.Config
	logger    *zap.Logger
	auth      *auth.Service
}

// NewServer creates a new API server. The write queue is the same one
// the ledger persists through, so Flush covers everything.
func NewServer(store graph.Store, queue *planning.WriteQueue, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		store:     store,
		ledger:    planning.NewLedger(store, queue, logger),
		bandwidth: planning.NewAggregator(store, logger),
		rollup:    planning.NewRollup(store, logger),
		queue:     queue,
		config:    cfg,
		logger:    logger,
	}
}

// SetAuthService sets the auth service
func (s *Server) SetAuthService(authService *auth.Service) {
	s.auth = authService
}
