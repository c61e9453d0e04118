package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
	"github.com/rhx/orvibo-udp-hap/internal/bridges/orvibo"
	"github.com/rhx/orvibo-udp-hap/internal/history"
	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/config"
	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/logging"
)

// Server timeouts.
const (
	gracefulShutdownTimeout = 10 * time.Second
	readTimeout             = 10 * time.Second
	writeTimeout            = 10 * time.Second
	idleTimeout             = 60 * time.Second

	// healthCheckTimeout bounds each dependency check.
	healthCheckTimeout = 2 * time.Second
)

// StatusSource reports the bridge's view of the device. *orvibo.Bridge
// satisfies it.
type StatusSource interface {
	Status() accessory.Status
	LastSeen() time.Time
	Stats() orvibo.Stats
}

// Requester applies a status change on behalf of a client.
// *accessory.Accessory satisfies it.
type Requester interface {
	Request(s accessory.Status)
}

// HealthChecker is implemented by the MQTT, InfluxDB and database clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	BridgeID  string
	Bridge    StatusSource
	Accessory Requester

	// History is optional; without it /history answers 503.
	History history.Repository

	// Checks are optional dependency health checks keyed by name.
	Checks map[string]HealthChecker

	Version string

	// Hub streams bridge events to WebSocket clients. Register it as a
	// bridge observer; New creates an unattached one when nil.
	Hub *Hub
}

// Server is the HTTP API server.
//
// It is created with New, started with Start and stopped with Close.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	bridgeID  string
	bridge    StatusSource
	accessory Requester
	history   history.Repository
	checks    map[string]HealthChecker
	version   string
	hub       *Hub

	server    *http.Server
	listener  net.Listener
	cancelHub context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// Parameters:
//   - deps: Required dependencies (logger, bridge, accessory)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if deps.Accessory == nil {
		return nil, fmt.Errorf("accessory is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.Logger)
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		bridgeID:  deps.BridgeID,
		bridge:    deps.Bridge,
		accessory: deps.Accessory,
		history:   deps.History,
		checks:    deps.Checks,
		version:   deps.Version,
		hub:       hub,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// Start binds the listen address and serves in a background goroutine.
//
// Returns:
//   - error: If the address cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.routes(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	hubCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelHub = cancel
	go s.hub.Run(hubCtx)

	s.logger.Info("API server starting", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	// Hijacked WebSocket connections are not tracked by Shutdown.
	s.cancelHub()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
