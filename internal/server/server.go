package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/scrubworks/redactgate/internal/audit"
	"github.com/scrubworks/redactgate/internal/config"
	"github.com/scrubworks/redactgate/internal/events"
	"github.com/scrubworks/redactgate/internal/logger"
	"github.com/scrubworks/redactgate/internal/policy"
	"github.com/scrubworks/redactgate/internal/redaction"
	"github.com/scrubworks/redactgate/internal/security"
)

// Server is the redaction API server. The engine itself is stateless; the
// server owns the collaborator wiring around it.
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	engine   *redaction.Engine
	policies policy.Store
	sink     audit.Sink
	limiter  *security.RateLimiter
	router   *mux.Router
	server   *http.Server
	hub      *events.Hub
	stopCh   chan struct{}

	startedAt       time.Time
	totalRequests   atomic.Int64
	totalRedactions atomic.Int64
}

// statusInterval is how often the system status event goes out on the stream.
const statusInterval = 30 * time.Second

// New creates a redaction server wired to the given policy store and audit sink.
func New(cfg *config.Config, log *logger.Logger, policies policy.Store, sink audit.Sink) *Server {
	hub := events.NewHub(&events.HubConfig{
		BroadcastRedactions: cfg.Events.BroadcastRedactions,
		BroadcastRequests:   cfg.Events.BroadcastRequests,
		BroadcastSystem:     cfg.Events.BroadcastSystem,
		BroadcastConns:      cfg.Events.BroadcastConns,
		Username:            cfg.Events.Username,
		Password:            cfg.Events.Password,
	}, log.WithComponent("events").Logger)

	limiter := security.NewRateLimiter(
		cfg.RateLimit.Enabled,
		cfg.RateLimit.RequestsPerMin,
		cfg.RateLimit.Burst,
		cfg.RateLimit.CleanupAfter,
	)

	router := mux.NewRouter()

	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		engine:   redaction.New(log.WithComponent("engine").Logger),
		policies: policies,
		sink:     sink,
		limiter:  limiter,
		router:   router,
		hub:      hub,
		stopCh:   make(chan struct{}),

		startedAt: time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.Events.Enabled {
		s.router.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/redact", s.handleRedact).Methods("POST")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting redaction server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("rate_limit", s.config.RateLimit.Enabled),
		zap.Bool("event_stream", s.config.Events.Enabled),
	)

	go s.hub.Run()
	go s.limiter.StartCleanup(time.Minute, s.stopCh)
	go s.statusLoop(statusInterval, s.stopCh)

	return s.server.ListenAndServe()
}

// statusLoop broadcasts a periodic system status event until stop is closed.
func (s *Server) statusLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.hub.BroadcastEvent(events.Event{
				Type:      events.EventTypeSystemStatus,
				Timestamp: time.Now(),
				Data:      s.systemStatus(),
			})
		case <-stop:
			return
		}
	}
}

// systemStatus snapshots the counters carried by the status event.
func (s *Server) systemStatus() events.SystemStatusEvent {
	return events.SystemStatusEvent{
		Status:           "healthy",
		Uptime:           time.Since(s.startedAt).Round(time.Second).String(),
		TotalRequests:    s.totalRequests.Load(),
		TotalRedactions:  s.totalRedactions.Load(),
		ConnectedClients: int(s.hub.GetStats().ActiveConnections),
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping redaction server")
	close(s.stopCh)
	return s.server.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":               "redactgate",
		"version":            Version,
		"builtin_categories": redaction.BuiltinCategories(),
		"rate_limit_enabled": s.config.RateLimit.Enabled,
		"requests_per_min":   s.config.RateLimit.RequestsPerMin,
	})
}

// handleWebSocket handles event stream connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}

// Hub returns the event hub for broadcasting events.
func (s *Server) Hub() *events.Hub {
	return s.hub
}

// Version is stamped at build time.
var Version = "0.1.0"
