package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"pointsvault/config"
	"pointsvault/core"
	"pointsvault/core/events"
	"pointsvault/gateway/middleware"
	nativecommon "pointsvault/native/common"
	"pointsvault/observability"
	"pointsvault/observability/logging"
	telemetry "pointsvault/observability/otel"
	daemonconfig "pointsvault/services/pointsd/config"
	"pointsvault/services/pointsd/custody"
	"pointsvault/services/pointsd/indexer"
	"pointsvault/services/pointsd/server"
	"pointsvault/storage"
)

const serviceName = "pointsd"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/pointsd/config.yaml", "path to pointsd config")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		slog.Error("pointsd exited", "error", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := daemonconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("POINTS_ENV"))
	logOpts := logging.Options{Service: serviceName, Env: env, Level: cfg.Log.Level}
	if cfg.Log.File != "" {
		logOpts.File = &logging.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   true,
		}
	}
	logger := logging.SetupWithOptions(logOpts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.FromEnv(serviceName, env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	protocol, err := config.Load(cfg.ProtocolPath)
	if err != nil {
		return fmt.Errorf("load protocol config: %w", err)
	}
	stakeParams, err := protocol.StakeParams()
	if err != nil {
		return fmt.Errorf("stake params: %w", err)
	}
	treasury, err := protocol.TreasuryAddress()
	if err != nil {
		return err
	}
	feed, err := protocol.PriceFeed()
	if err != nil {
		return err
	}

	db, err := storage.NewLevelDB(protocol.DataDir)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()

	if err := ensureParent(cfg.Custody.Path); err != nil {
		return err
	}
	vault, err := custody.Open(cfg.Custody.Path, nil)
	if err != nil {
		return fmt.Errorf("open custody: %w", err)
	}
	defer vault.Close()

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: serviceName,
		Enabled:     true,
	}, logger)

	emitters := events.MultiEmitter{observability.NewEventMetrics(obs.Registry())}
	var eventStore server.EventStore
	if cfg.IndexerEnabled() {
		if cfg.Indexer.SQLitePath != "" {
			if err := ensureParent(cfg.Indexer.SQLitePath); err != nil {
				return err
			}
		}
		idx, err := indexer.Open(indexer.Options{
			PostgresDSN: cfg.Indexer.PostgresDSN,
			SQLitePath:  cfg.Indexer.SQLitePath,
		}, logger)
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		defer idx.Close()
		logger.Info("event indexer enabled",
			logging.MaskField("postgres_dsn", cfg.Indexer.PostgresDSN),
			slog.String("sqlite_path", cfg.Indexer.SQLitePath))
		emitters = append(emitters, idx)
		eventStore = idx
	}

	node, err := core.NewNode(db, core.Options{
		Partner:      protocol.PartnerParams(),
		Stake:        stakeParams,
		Treasury:     treasury,
		Pauses:       nativecommon.NewStaticPauses(protocol.PausedModules),
		Prices:       feed,
		Custodian:    vault,
		StakeBackend: vault,
		Emitter:      emitters,
		Logger:       logger,
		Observer:     observability.NewOperationMetrics(obs.Registry()),
		AllowMigrate: protocol.AllowMigrate,
	})
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	limits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for key, limit := range cfg.RateLimits {
		limits[key] = middleware.RateLimit{RatePerSecond: limit.RatePerSecond, Burst: limit.Burst}
	}
	srv, err := server.New(server.Options{
		Node:      node,
		Prices:    feed,
		Events:    eventStore,
		ExportDir: cfg.Indexer.ExportDir,
		Auth: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    !cfg.Auth.Disabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		}, logger),
		RateLimiter:   middleware.NewRateLimiter(limits, logger),
		Observability: obs,
		CORS:          &middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins},
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.ListenAddress, Handler: srv.Router()}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("pointsd listening", "addr", cfg.ListenAddress, "network", protocol.NetworkName)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down pointsd")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	return nil
}
