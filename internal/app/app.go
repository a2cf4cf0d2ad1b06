// Package app wires every component together in dependency order:
// Config → Logging → Registry → SessionManager → ConnHandler → API → HTTP.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"agenthub/internal/api"
	"agenthub/internal/config"
	"agenthub/internal/connhandler"
	"agenthub/internal/logging"
	"agenthub/internal/registry"
	"agenthub/internal/session"
)

// sweepInterval is how often Application sweeps the connection handler's
// rate-limit windows for clients idle long enough to be stale.
const sweepInterval = time.Minute

// Application coordinates all system components for one running process.
type Application struct {
	config     *config.Config
	log        *zap.SugaredLogger
	registry   *registry.Registry
	sessions   *session.Manager
	connHandle *connhandler.Handler
	apiServer  *api.Server
	httpServer *http.Server
	sweepStop  chan struct{}
}

// New builds an Application from cfg, validating it first. A nil cfg uses
// config.DefaultConfig().
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(false)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	reg := registry.New(log)
	sessions := session.NewManager(log, cfg.Session.DefaultTimeout)

	connHandle := connhandler.New(
		reg,
		sessions,
		cfg.WebSocket.RegistrationTimeout,
		cfg.WebSocket.ReadTimeout,
		cfg.WebSocket.WriteTimeout,
		cfg.WebSocket.BufferSize,
		cfg.Session.DefaultPlatform,
		cfg.DeviceOverlays,
		log,
	)

	apiServer := api.NewServer(reg, sessions, cfg.Session.DefaultPlatform, log)

	mux := http.NewServeMux()
	mux.Handle("/ws", connHandle)
	mux.Handle("/", apiServer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		log:        log,
		registry:   reg,
		sessions:   sessions,
		connHandle: connHandle,
		apiServer:  apiServer,
		httpServer: httpServer,
		sweepStop:  make(chan struct{}),
	}, nil
}

// Start begins serving HTTP (including the /ws upgrade endpoint) and
// returns once the listener is confirmed up or has failed to start.
func (a *Application) Start(ctx context.Context) error {
	a.log.Infow("starting agenthub", "addr", a.httpServer.Addr)

	go a.runSweep()

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		a.log.Infow("agenthub started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop gracefully shuts down the HTTP listener, letting in-flight
// connections finish up to ctx's deadline. Background sessions are not
// force-cancelled — there is no cross-restart persistence, so a shutdown
// simply stops accepting new work and lets Go's runtime reclaim whatever
// goroutines remain when the process exits.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Infow("shutting down agenthub")
	close(a.sweepStop)
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Warnw("HTTP server shutdown error", "error", err)
		return err
	}
	a.log.Infow("agenthub shutdown complete")
	return nil
}

// Addr returns the HTTP listener address.
func (a *Application) Addr() string {
	return a.httpServer.Addr
}

// runSweep periodically drops stale rate-limit windows until Stop closes
// sweepStop.
func (a *Application) runSweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.connHandle.SweepRateLimits()
		case <-a.sweepStop:
			return
		}
	}
}
