// Package app wires the chat core into a runnable HTTP service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/internal/api"
	"github.com/Kaushik-110000/eduapp/internal/broadcast"
	"github.com/Kaushik-110000/eduapp/internal/catalog"
	"github.com/Kaushik-110000/eduapp/internal/config"
	"github.com/Kaushik-110000/eduapp/internal/hub"
	"github.com/Kaushik-110000/eduapp/internal/metrics"
	"github.com/Kaushik-110000/eduapp/internal/room"
	"github.com/Kaushik-110000/eduapp/internal/router"
	"github.com/Kaushik-110000/eduapp/internal/session"
	"github.com/Kaushik-110000/eduapp/internal/websocket"
	dbconfig "github.com/Kaushik-110000/eduapp/pkg/database"
	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
	"github.com/Kaushik-110000/eduapp/pkg/types"
)

// limiterSweepInterval is how often idle per-connection limiters are dropped.
const limiterSweepInterval = 5 * time.Minute

// ARCHITECTURAL DISCOVERY: Application coordinates all system components
// Initialization order: Catalog → Validator → Registry → Hub → Router → Gateway → HTTP
type Application struct {
	config     *config.Config
	logger     *zap.Logger
	catalog    interfaces.Catalog
	metrics    *metrics.Metrics
	hub        *hub.Hub
	limiter    *router.RateLimiter
	apiServer  *api.Server
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewApplication builds every component. A nil cfg means defaults.
func NewApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Session catalog (foundation layer)
	cat, err := catalog.New(ctx, catalogOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session catalog: %w", err)
	}

	m := metrics.New()

	// STEP 2: Validator, registry, dispatcher and hub
	validator := session.NewValidator(cat, cfg.Catalog.LookupTimeout, logger, m)
	registry := room.NewRegistry()
	dispatcher := broadcast.NewDispatcher(logger, m)
	messageHub := hub.NewHub(registry, dispatcher, validator, logger, m)

	// STEP 3: Inbound event routing
	limiter := router.NewRateLimiter(cfg.Chat.MessagesPerMinute, cfg.Chat.Burst)
	messageRouter := router.NewRouter(messageHub, types.NewDecoder(cfg.Chat.MaxTextLength), limiter, logger, m)

	// STEP 4: Connection gateway and HTTP surface
	wsHandler := websocket.NewHandler(messageHub, messageRouter, websocket.Options{
		PingInterval:    cfg.WebSocket.PingInterval,
		ReadTimeout:     cfg.WebSocket.ReadTimeout,
		WriteTimeout:    cfg.WebSocket.WriteTimeout,
		SendBufferSize:  cfg.WebSocket.BufferSize,
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
	}, logger)

	apiServer := api.NewServer(cat, registry, messageHub, m.Handler(), logger)
	apiServer.Mount("/ws", http.HandlerFunc(wsHandler.HandleWebSocket))

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		logger:     logger.Named("app"),
		catalog:    cat,
		metrics:    m,
		hub:        messageHub,
		limiter:    limiter,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

func catalogOptions(cfg *config.Config) catalog.Options {
	sqlite := dbconfig.DefaultConfig()
	sqlite.DatabasePath = cfg.Catalog.SQLitePath
	sqlite.MaxConnections = cfg.Catalog.MaxConnections

	return catalog.Options{
		Driver:          cfg.Catalog.Driver,
		SQLite:          sqlite,
		MongoURI:        cfg.Catalog.MongoURI,
		MongoDatabase:   cfg.Catalog.MongoDatabase,
		MongoCollection: cfg.Catalog.MongoCollection,
		RedisEnabled:    cfg.Cache.Enabled,
		RedisAddr:       cfg.Cache.Addr,
		RedisPassword:   cfg.Cache.Password,
		RedisDB:         cfg.Cache.DB,
		CachePrefix:     cfg.Cache.Prefix,
		CacheTTL:        cfg.Cache.TTL,
		Breaker: catalog.BreakerSettings{
			MaxFailures: cfg.Catalog.BreakerMaxFailures,
			Interval:    cfg.Catalog.BreakerInterval,
			Timeout:     cfg.Catalog.BreakerTimeout,
		},
	}
}

// Start binds the configured address and serves in the background. As with
// Serve, the application runs until Stop.
func (a *Application) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.httpServer.Addr, err)
	}
	if err := a.Serve(ctx, ln); err != nil {
		_ = ln.Close()
		return err
	}
	return nil
}

// Serve runs the hub and serves HTTP on ln in the background. The hub starts
// first so no connection can arrive before it accepts commands.
// Cancelling ctx does not tear anything down: the hub and sweeper run on a
// context owned by the application, so Stop alone decides the shutdown order.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	if err := a.hub.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start hub: %w", err)
	}

	a.mu.Lock()
	a.listener = ln
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server stopped", zap.Error(err))
		}
	}()
	go a.sweepLimiters(runCtx)

	a.logger.Info("eduapp listening", zap.String("addr", ln.Addr().String()))
	return nil
}

func (a *Application) sweepLimiters(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Cleanup(limiterSweepInterval); n > 0 {
				a.logger.Debug("dropped idle rate limiters", zap.Int("count", n))
			}
		}
	}
}

// Stop shuts down in reverse dependency order: HTTP → Hub → Catalog.
// Every step runs even when an earlier one fails; the first error is returned.
func (a *Application) Stop(ctx context.Context) error {
	a.logger.Info("shutting down")
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// STEP 1: Stop accepting new connections
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
		record(err)
	}

	// STEP 2: Stop the hub; it closes every live connection on exit
	if err := a.hub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		a.logger.Warn("hub shutdown", zap.Error(err))
		record(err)
	}

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()
	a.wg.Wait()

	// STEP 3: Release the catalog
	if err := a.catalog.Close(); err != nil {
		a.logger.Warn("catalog shutdown", zap.Error(err))
		record(err)
	}

	a.logger.Info("shutdown complete")
	return firstErr
}

// Addr is the bound listen address once started, else the configured one.
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.httpServer.Addr
}

// Handler exposes the root HTTP handler, used by in-process tests.
func (a *Application) Handler() http.Handler {
	return a.apiServer
}
