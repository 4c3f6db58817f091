// Package api provides the HTTP report server: ledgers, Cardano daily and
// reward reports, the cross-chain portfolio and the Copper wallet proxy.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chain-ledger/internal/adapter"
	"github.com/chain-ledger/internal/logging"
	"github.com/chain-ledger/internal/service"
	"github.com/chain-ledger/internal/storage"
	"github.com/chain-ledger/internal/types"
)

// Service interfaces for dependency injection and testing

// LedgerBuilder builds running-balance ledgers
type LedgerBuilder interface {
	BuildLedger(ctx context.Context, category types.Category, account string, descending bool) ([]types.LedgerRow, error)
}

// ReportBuilder values an address book
type ReportBuilder interface {
	BuildReport(ctx context.Context, book types.AddressBook) (*types.PortfolioReport, error)
}

// RewardSource lists the staking rewards of a stake key
type RewardSource interface {
	RewardHistory(ctx context.Context, stake string) ([]adapter.Reward, error)
}

// RewardWalletLister lists the stake keys registered for reward reporting
type RewardWalletLister interface {
	RewardWallets(ctx context.Context) ([]types.RewardWallet, error)
}

// DailySourceFunc resolves the daily walk inputs of a Cardano account
type DailySourceFunc func(ctx context.Context, account string) (service.DailySource, error)

// Dependencies are the services behind the routes. A nil member makes the
// routes that need it answer 503.
type Dependencies struct {
	Ledger        LedgerBuilder
	Portfolio     ReportBuilder
	Rewards       RewardSource
	RewardWallets RewardWalletLister
	Daily         DailySourceFunc
	Snapshots     *service.SnapshotGenerator
	AddressBook   storage.AddressBookLoader
	Copper        service.CopperSource
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	deps       Dependencies
	config     *ServerConfig
	logger     *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	ClientRPS       float64 // Requests per second per client, 0 disables throttling
	ClientBurst     int
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps Dependencies, logger *logging.Logger) *Server {
	if deps.Snapshots == nil {
		deps.Snapshots = service.NewSnapshotGenerator()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		config: config,
		logger: logger,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Set up middleware (order matters!)
	s.router.Use(RequestIDMiddleware(s.logger))
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(MetricsMiddleware)
	s.router.Use(CORSMiddleware)
	if s.config.ClientRPS > 0 {
		s.router.Use(RateLimitMiddleware(NewRateLimiter(s.config.ClientRPS, s.config.ClientBurst)))
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/ledger/{category}/{account}", s.handleLedger).Methods("GET")

	// fixed paths must be registered before the {account} routes
	api.HandleFunc("/cardano/epochs", s.handleEpochs).Methods("GET")
	api.HandleFunc("/cardano/rewards", s.handleRegisteredRewards).Methods("GET")
	api.HandleFunc("/cardano/{account}/daily", s.handleCardanoDaily).Methods("GET")
	api.HandleFunc("/cardano/{stake}/rewards", s.handleRewards).Methods("GET")

	api.HandleFunc("/portfolio", s.handleBuildPortfolio).Methods("POST")
	api.HandleFunc("/portfolio", s.handleStoredPortfolio).Methods("GET")

	api.HandleFunc("/copper/wallets", s.handleCopperWallets).Methods("GET")
}

// Handler returns the router with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "chain-ledger",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
