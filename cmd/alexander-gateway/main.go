// Package main is the entry point for the Alexander Gateway server.
// Alexander Gateway fronts a Wasabi/S3 object store with per-user buckets and quotas.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/prn-tf/alexander-gateway/internal/cache/memory"
	rediscache "github.com/prn-tf/alexander-gateway/internal/cache/redis"
	"github.com/prn-tf/alexander-gateway/internal/config"
	"github.com/prn-tf/alexander-gateway/internal/handler"
	"github.com/prn-tf/alexander-gateway/internal/identity"
	"github.com/prn-tf/alexander-gateway/internal/logging"
	"github.com/prn-tf/alexander-gateway/internal/metrics"
	"github.com/prn-tf/alexander-gateway/internal/objectstore"
	"github.com/prn-tf/alexander-gateway/internal/repository"
	"github.com/prn-tf/alexander-gateway/internal/repository/database"
	"github.com/prn-tf/alexander-gateway/internal/service"
	"github.com/prn-tf/alexander-gateway/internal/tracing"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Alexander Gateway %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatal().Err(err).Msg("gateway exited with error")
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting Alexander Gateway")

	traceShutdown, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Database.Close()

	cache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	var m *metrics.Metrics
	storeOpts := []objectstore.Option{}
	if cfg.Metrics.Enabled {
		m = metrics.New()
		storeOpts = append(storeOpts, objectstore.WithRecorder(m))
	}

	store, err := objectstore.New(cfg.ObjectStore, logger, storeOpts...)
	if err != nil {
		return err
	}
	if !store.Configured() {
		logger.Warn().Msg("object store credentials are not set; every operation will fail until they are")
	}

	verifier, err := identity.New(ctx, cfg.Identity, logger)
	if err != nil {
		return fmt.Errorf("failed to init identity provider: %w", err)
	}

	gatewayCfg := service.GatewayServiceConfig{
		Store:          store,
		Quotas:         db.Repos.Quota,
		Files:          db.Repos.File,
		Cache:          cache,
		QuotaMode:      cfg.Quota.Mode,
		DefaultTotalMB: cfg.Quota.DefaultTotalMB,
		QuotaCacheTTL:  cfg.Cache.QuotaTTL,
		Logger:         logger,
	}
	if m != nil {
		gatewayCfg.Observer = m
	}
	gateway := service.NewGatewayService(gatewayCfg)

	routerCfg := handler.RouterConfig{
		Gateway:       handler.NewGatewayHandler(gateway, cfg.Server.MaxBodySize, logger),
		Verifier:      verifier,
		Readiness:     db.Database,
		EndpointPath:  cfg.Server.EndpointPath,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Logger:        logger,
	}
	if cfg.Tracing.Enabled {
		routerCfg.Middlewares = append(routerCfg.Middlewares, tracing.Middleware("/health", "/ready", cfg.Metrics.Path))
	}
	if m != nil {
		routerCfg.Middlewares = append(routerCfg.Middlewares, m.Middleware)
		if cfg.Metrics.Port == 0 {
			routerCfg.MetricsHandler = m.Handler()
			routerCfg.MetricsPath = cfg.Metrics.Path
		}
	}

	servers := []*http.Server{newServer(cfg.Server, cfg.Server.Addr(), handler.NewRouter(routerCfg).Handler())}
	if m != nil && cfg.Metrics.Port != 0 {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		servers = append(servers, newServer(cfg.Server, cfg.Server.Host+":"+strconv.Itoa(cfg.Metrics.Port), mux))
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		eg.Go(func() error {
			logger.Info().Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := traceShutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return eg.Wait()
}

func newServer(cfg config.ServerConfig, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// openCache returns the quota cache selected by cache.backend, or nil for "none".
func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.Cache, func(), error) {
	switch cfg.Cache.Backend {
	case "redis":
		c, err := rediscache.NewCache(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	case "none":
		return nil, func() {}, nil
	default:
		c := memory.NewCache(cfg.Cache.CleanupInterval)
		return c, c.Stop, nil
	}
}
