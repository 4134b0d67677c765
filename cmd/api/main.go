package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"roadmapper/internal/api"
	"roadmapper/internal/auth"
	"roadmapper/internal/config"
	"roadmapper/internal/graph"
	"roadmapper/internal/planning"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger := config.MustInitLogger(cfg.Env, cfg.LogLevel)
	defer logger.Sync() // Flush any buffered log entries

	logger.Info("Starting Roadmapper API",
		zap.String("env", cfg.Env),
		zap.String("port", cfg.Port),
		zap.String("graph_backend", cfg.GraphBackend),
	)

	// Initialize the graph store backend
	store, healthCheck, closeStore, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize graph store", zap.Error(err))
	}
	defer closeStore()

	// Write queue shared by the ledger and the API layer. Flushed on
	// shutdown so no coalesced write is lost.
	queue := planning.NewWriteQueue(store, cfg.WriteDebounce(), logger)
	queue.SetErrorHandler(func(nodeID, field string, err error) {
		logger.Error("Projection write failed",
			zap.String("node_id", nodeID),
			zap.String("field", field),
			zap.Error(err))
	})
	defer queue.Close()

	// Initialize auth service
	authService := auth.NewService(cfg.JWTSecret, cfg.APIKey, cfg.JWTExpiry())

	// Create server with logger
	server := api.NewServer(store, queue, cfg, logger)
	server.SetAuthService(authService)

	// Setup router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Request size limit (1MB)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
			next.ServeHTTP(w, r)
		})
	})

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"message":"Roadmapper API","version":"0.1.0"}`)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := healthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"error","message":"graph store unavailable"}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","store":"connected"}`)
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Version endpoint (public)
		r.Get("/version", server.HandleVersion)

		// Token exchange (public) with strict rate limiting
		r.Route("/auth", func(r chi.Router) {
			r.Use(api.RateLimitMiddleware(20))
			r.Post("/token", server.HandleToken)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(server.JWTAuth)
			r.Use(api.RateLimitMiddleware(300))

			// Node routes
			r.Get("/nodes/{type}", server.HandleListNodes)
			r.Post("/nodes/{type}", server.HandleCreateNode)
			r.Get("/nodes/{type}/{id}", server.HandleGetNode)
			r.Patch("/nodes/{type}/{id}", server.HandleUpdateNode)
			r.Delete("/nodes/{type}/{id}", server.HandleDeleteNode)
			r.Get("/nodes/{type}/{id}/edges", server.HandleGetNodeEdges)

			// Edge routes
			r.Post("/edges", server.HandleCreateEdge)
			r.Delete("/edges", server.HandleDeleteEdge)

			// Allocation routes
			r.Post("/work-items/{id}/allocations", server.HandleRequestAllocation)
			r.Put("/teams/{teamID}/work-items/{workItemID}/members/{memberID}", server.HandleUpdateMemberAllocation)
			r.Delete("/teams/{teamID}/work-items/{workItemID}/members/{memberID}", server.HandleRemoveMemberAllocation)

			// Report routes
			r.Get("/teams/{id}/bandwidth", server.HandleTeamBandwidth)
			r.Get("/reports/over-allocations", server.HandleOverAllocations)
			r.Get("/work-items/{id}/teams", server.HandleConnectedTeams)
			r.Get("/work-items/{id}/costs", server.HandleWorkItemCosts)
			r.Get("/milestones/{id}/metrics", server.HandleMilestoneMetrics)
		})
	})

	// Create HTTP server
	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for server errors
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive shutdown signal or server error
	select {
	case err := <-serverErrors:
		logger.Fatal("Server error", zap.Error(err))
	case sig := <-shutdown:
		logger.Info("Received shutdown signal, starting graceful shutdown", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Gracefully shutdown server
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
			if err := srv.Close(); err != nil {
				logger.Fatal("Failed to close server", zap.Error(err))
			}
		}

		// Push out any writes still sitting in the debounce window
		queue.Flush()

		logger.Info("Server stopped gracefully")
	}
}

// newStore builds the configured graph store backend and returns it
// with a health check and a close function.
func newStore(cfg *config.Config, logger *zap.Logger) (graph.Store, func(context.Context) error, func(), error) {
	switch cfg.GraphBackend {
	case "memory":
		store := graph.NewMemoryStore()
		return store, func(context.Context) error { return nil }, func() {}, nil

	case "sqlite", "postgres":
		store, err := graph.NewSQLStore(graph.SQLConfig{
			Driver:         cfg.GraphBackend,
			DBPath:         cfg.DBPath,
			DSN:            cfg.DBDSN,
			MigrationsPath: cfg.MigrationsPath,
		}, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store.HealthCheck, func() { store.Close() }, nil

	case "remote":
		if cfg.GraphServiceURL == "" {
			return nil, nil, nil, fmt.Errorf("GRAPH_SERVICE_URL is required for the remote backend")
		}
		failures := graph.NewFailureTracker(cfg.FailureThreshold, cfg.FailureCooldown())
		client := graph.NewClient(cfg.GraphServiceURL, cfg.GraphServiceToken, failures, logger)
		return client, func(context.Context) error { return nil }, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown graph backend %q", cfg.GraphBackend)
	}
}
