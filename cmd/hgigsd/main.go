package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hgigs/config"
	"hgigs/core/events"
	"hgigs/core/state"
	"hgigs/native/bank"
	"hgigs/native/marketplace"
	"hgigs/observability"
	"hgigs/observability/logging"
	telemetry "hgigs/observability/otel"
	"hgigs/rpc"
	"hgigs/services/eventlog"
	"hgigs/storage"
)

const serviceName = "hgigsd"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to node configuration (TOML or YAML)")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(serviceName, cfg.Environment, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     cfg.Telemetry.Enabled && cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Enabled && cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	manager := state.NewManager(db)
	if err := manager.EnsureStateVersion(); err != nil {
		return fmt.Errorf("state version: %w", err)
	}

	var (
		journal     *eventlog.Store
		idempotency rpc.IdempotencyStore
	)
	if cfg.EventLog.Driver != "none" {
		journal, err = eventlog.Open(cfg.EventLog.Driver, cfg.EventLog.DSN)
		if err != nil {
			return fmt.Errorf("open event journal: %w", err)
		}
		defer journal.Close()
		journal.SetLogger(logger)
		idempotency = journal
	}

	hub := rpc.NewHub(logger)
	emitters := []events.Emitter{hub, observability.NewEventMetrics()}
	if journal != nil {
		emitters = append([]events.Emitter{journal}, emitters...)
	}

	engine := marketplace.NewEngine()
	engine.SetBackend(manager)
	engine.SetFunding(bank.NewLedger())
	engine.SetLogger(logger)
	engine.SetEmitter(events.NewMulti(emitters...))

	if err := bootstrap(ctx, cfg, engine, logger); err != nil {
		return err
	}

	var journalView rpc.Journal
	if journal != nil {
		journalView = journal
	}
	server, err := rpc.NewServer(rpc.Config{
		ServiceName: serviceName,
		Engine:      engine,
		Journal:     journalView,
		Hub:         hub,
		Idempotency: idempotency,
		Auth: rpc.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
		},
		RateLimit: rpc.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("configure api: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", slog.String("addr", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// bootstrap initialises the marketplace on first start and seeds the gauges
// from persisted state. The configured fee only applies to a fresh
// marketplace; later changes go through the administrator API.
func bootstrap(ctx context.Context, cfg *config.Config, engine *marketplace.Engine, logger *slog.Logger) error {
	admin, err := cfg.AdminPrincipal()
	if err != nil {
		return err
	}
	fresh := true
	if err := engine.Initialize(ctx, admin); err != nil {
		if !errors.Is(err, marketplace.ErrAlreadyInitialized) {
			return fmt.Errorf("initialize marketplace: %w", err)
		}
		fresh = false
	}
	if fresh && cfg.FeeBps != 0 && cfg.FeeBps != marketplace.DefaultFeeBps {
		if err := engine.SetFeeBps(ctx, admin, cfg.FeeBps); err != nil {
			return fmt.Errorf("apply fee: %w", err)
		}
	}
	root, err := engine.Root()
	if err != nil {
		return err
	}
	metrics := observability.Marketplace()
	metrics.SetPaused(root.Paused)
	if custody, err := engine.CustodyBalance(marketplace.NativeAsset); err == nil {
		value, _ := new(big.Float).SetInt(custody).Float64()
		metrics.SetCustody(marketplace.NativeAsset, value)
	}
	logger.Info("marketplace ready",
		slog.Bool("paused", root.Paused),
		slog.Uint64("gigs", root.GigSeq),
		slog.Uint64("orders", root.OrderSeq),
	)
	return nil
}
