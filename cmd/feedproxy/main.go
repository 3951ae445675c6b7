package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/StrathCole/feedproxy-go/pkg/api"
	"github.com/StrathCole/feedproxy-go/pkg/backend"
	"github.com/StrathCole/feedproxy-go/pkg/backend/evm"
	"github.com/StrathCole/feedproxy-go/pkg/config"
	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/logging"
	"github.com/StrathCole/feedproxy-go/pkg/metrics"
	"github.com/StrathCole/feedproxy-go/pkg/proxy"
	"github.com/StrathCole/feedproxy-go/pkg/version"

	// Import backends to register them
	_ "github.com/StrathCole/feedproxy-go/pkg/backend/facade"
	_ "github.com/StrathCole/feedproxy-go/pkg/backend/memory"
)

const decimalsRetryWindow = time.Minute

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("feedproxy version %s\n", version.Version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Starting feedproxy", "version", version.Version, "feeds", len(cfg.Feeds), "backends", backend.List())

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.Init()
		metricsServer = metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path)
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	feeds, err := buildFeeds(ctx, cfg, logger)
	if err != nil {
		evm.CloseClients()
		logger.Fatal("Failed to build feeds", "error", err)
	}

	server, err := api.NewServer(api.Options{
		Addr:        cfg.Server.HTTP.Addr,
		AdminToken:  cfg.Server.AdminToken(),
		CallTimeout: cfg.Server.CallTimeout.ToDuration(),
		TLSCert:     tlsFile(cfg.Server.HTTP.TLS, cfg.Server.HTTP.TLS.Cert),
		TLSKey:      tlsFile(cfg.Server.HTTP.TLS, cfg.Server.HTTP.TLS.Key),
	}, feeds, logger)
	if err != nil {
		evm.CloseClients()
		logger.Fatal("Failed to create server", "error", err)
	}

	// Start event stream if enabled
	if cfg.Server.WebSocket.Enabled {
		stream := api.NewEventStream(feeds, logger)
		server.SetEventStream(stream, cfg.Server.WebSocket.Path)
		go stream.Run(ctx)
		logger.Info("Event stream enabled", "path", cfg.Server.WebSocket.Path)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", "error", err)
		}
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down gracefully...")
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}
	evm.CloseClients()
	logger.Info("Shutdown complete")
}

// buildFeeds creates one proxy per configured feed.
func buildFeeds(ctx context.Context, cfg *config.Config, logger *logging.Logger) ([]api.Feed, error) {
	feeds := make([]api.Feed, 0, len(cfg.Feeds))
	for i := range cfg.Feeds {
		fc := &cfg.Feeds[i]
		feedLogger := logger.With("feed", fc.Name)

		aggregator, err := createBackend(fc.Aggregator, feedLogger)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", fc.Name, err)
		}

		decimals, err := resolveDecimals(ctx, cfg, fc, aggregator, feedLogger)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", fc.Name, err)
		}

		if !fc.IsGated() {
			p, err := proxy.NewFeedProxy(proxy.Config{
				Name:       fc.Name,
				Owner:      fc.OwnerAddress(),
				Aggregator: aggregator,
				Decimals:   decimals,
				Logger:     logger,
			})
			if err != nil {
				return nil, fmt.Errorf("feed %s: %w", fc.Name, err)
			}
			feeds = append(feeds, api.Ungated(p))
			logger.Info("Feed ready", "feed", fc.Name, "type", fc.Type, "aggregator", aggregator.Address().Hex(), "decimals", decimals)
			continue
		}

		gc := proxy.GatedConfig{
			Name:              fc.Name,
			Owner:             fc.OwnerAddress(),
			Aggregator:        aggregator,
			Decimals:          decimals,
			Whitelist:         fc.Whitelist.MemberAddresses(),
			WhitelistDisabled: !fc.Whitelist.IsEnabled(),
			Logger:            logger,
		}
		if fc.Whitelist.Authority != nil {
			authority, err := backend.CreateAuthority(fc.Whitelist.Authority.Type, withLogger(fc.Whitelist.Authority.Config, feedLogger))
			if err != nil {
				return nil, fmt.Errorf("feed %s: %w", fc.Name, err)
			}
			gc.Authority = authority
		}
		p, err := proxy.NewAccessGatedProxy(gc)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", fc.Name, err)
		}
		feeds = append(feeds, p)
		logger.Info("Feed ready", "feed", fc.Name, "type", fc.Type, "aggregator", aggregator.Address().Hex(),
			"decimals", decimals, "delegated", p.Delegated(), "whitelist_enabled", p.WhitelistEnabled())
	}
	return feeds, nil
}

func createBackend(bc config.BackendConfig, logger *logging.Logger) (feed.Backend, error) {
	return backend.Create(bc.Type, withLogger(bc.Config, logger))
}

// withLogger adds the logger to a backend config so backends don't create their own.
func withLogger(config map[string]interface{}, logger *logging.Logger) map[string]interface{} {
	if config == nil {
		config = make(map[string]interface{})
	}
	config["logger"] = logger
	return config
}

// resolveDecimals returns the configured decimals, or reads them once from
// the aggregator. Unavailable backends are retried until decimalsRetryWindow
// has passed.
func resolveDecimals(ctx context.Context, cfg *config.Config, fc *config.FeedConfig, aggregator feed.Backend, logger *logging.Logger) (uint8, error) {
	if fc.Decimals != nil {
		return *fc.Decimals, nil
	}
	return backoff.Retry(ctx, func() (uint8, error) {
		callCtx, cancel := context.WithTimeout(ctx, cfg.Server.CallTimeout.ToDuration())
		defer cancel()

		decimals, err := proxy.DecimalsFrom(callCtx, aggregator)
		if err != nil && !errors.Is(err, feed.ErrBackendUnavailable) {
			return 0, backoff.Permanent(err)
		}
		if err != nil {
			logger.Warn("Failed to read decimals, retrying", "error", err)
		}
		return decimals, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(decimalsRetryWindow))
}

func tlsFile(tls config.TLSConfig, path string) string {
	if !tls.Enabled {
		return ""
	}
	return path
}
