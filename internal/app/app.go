package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/channelchat/internal/auth"
	"github.com/vovakirdan/channelchat/internal/config"
	"github.com/vovakirdan/channelchat/internal/core"
	"github.com/vovakirdan/channelchat/internal/metrics"
	"github.com/vovakirdan/channelchat/internal/store"
	"github.com/vovakirdan/channelchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/channelchat/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	seeds           []core.ChannelSeed
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := cfg.HubOptions()
	opts.Logger = logger
	opts.Users = st
	opts.Catalog = st
	opts.Recorder = metrics.New(reg)
	hub := core.NewHub(opts)

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(hub, jwtConfig)

	if cfg.AdminKeyHash == "" {
		logger.Warn().Msg("admin_key_hash is empty, admin api disabled")
	}

	server := transporthttp.NewServer(hub, authService, reg, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		seeds:           cfg.SeedChannels,
		log:             logger,
	}, nil
}

// Run starts the hub and the HTTP server and blocks until context
// cancellation or a fatal error in either.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	if err := a.hub.Seed(ctx, a.seeds); err != nil {
		return fmt.Errorf("seed channels: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	hubDone := make(chan struct{})
	g.Go(func() error {
		defer close(hubDone)
		a.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)
		<-hubDone
		return err
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
