package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dshills/vcpkg-mcp/internal/cache"
	"github.com/dshills/vcpkg-mcp/internal/config"
	"github.com/dshills/vcpkg-mcp/internal/github"
	"github.com/dshills/vcpkg-mcp/internal/logging"
	"github.com/dshills/vcpkg-mcp/internal/mcp"
	"github.com/dshills/vcpkg-mcp/internal/metrics"
	"github.com/dshills/vcpkg-mcp/internal/packages"
	"github.com/dshills/vcpkg-mcp/internal/searcher"
	"github.com/dshills/vcpkg-mcp/internal/storage"
	"github.com/dshills/vcpkg-mcp/internal/vcpkg"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("vcpkg MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// stdout is reserved for the MCP protocol
	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		level.Error(logger).Log("msg", "server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger log.Logger) error {
	level.Info(logger).Log("msg", "starting vcpkg MCP server", "version", version,
		"build_mode", storage.BuildMode, "driver", storage.DriverName,
		"registry", cfg.Registry.Owner+"/"+cfg.Registry.Repo+"@"+cfg.Registry.Ref)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	responses := cache.New(cache.Config{
		MaxSizeBytes:    cfg.Cache.MaxSizeBytes,
		DefaultTTL:      cfg.Cache.DefaultTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Logger:          log.With(logger, "component", "cache"),
	})
	go responses.Run(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, responses)

	client, err := github.NewClient(github.Config{
		BaseURL:  cfg.GitHub.APIURL,
		Token:    cfg.GitHub.Token,
		Timeout:  cfg.GitHub.Timeout,
		Logger:   log.With(logger, "component", "github"),
		Observer: m.ObserveGitHub,
	})
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}
	defer func() { _ = client.Close() }()
	if cfg.GitHub.Token == "" {
		level.Warn(logger).Log("msg", "no GitHub token configured; code search requires authentication and rate limits are low")
	}

	registryCfg := vcpkg.Config{
		Owner:  cfg.Registry.Owner,
		Repo:   cfg.Registry.Repo,
		Ref:    cfg.Registry.Ref,
		Logger: log.With(logger, "component", "registry"),
	}
	if store != nil {
		registryCfg.Store = store
	}
	registry := vcpkg.NewRegistry(client, registryCfg)

	srch := searcher.NewSearcher(registry, registry, responses, searcher.Config{
		CacheTTL:    cfg.Search.CacheTTL,
		Concurrency: cfg.Search.Concurrency,
		Logger:      log.With(logger, "component", "searcher"),
	})
	svc := packages.NewService(registry, responses, packages.Config{
		Logger: log.With(logger, "component", "packages"),
	})

	server, err := mcp.NewServer(mcp.Config{
		Packages: svc,
		Searcher: srch,
		Cache:    responses,
		Observer: m,
		Logger:   log.With(logger, "component", "mcp"),
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg, logger); err != nil {
				level.Error(logger).Log("msg", "metrics server failed", "addr", cfg.Metrics.Addr, "err", err)
			}
		}()
	}

	err = server.Serve(ctx, os.Stdin, os.Stdout)
	level.Info(logger).Log("msg", "server stopped")
	return err
}

// openStore opens the snapshot store and prunes expired snapshots. It
// returns nil when the store is disabled.
func openStore(ctx context.Context, cfg *config.Config, logger log.Logger) (*storage.SQLiteStorage, error) {
	if !cfg.StorageEnabled() {
		level.Info(logger).Log("msg", "snapshot store disabled")
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	removed, err := store.Prune(ctx, time.Now().Add(-cfg.SnapshotMaxAge))
	if err != nil {
		level.Warn(logger).Log("msg", "failed to prune snapshots", "err", err)
	}

	status, err := store.GetStatus(ctx)
	if err != nil {
		level.Warn(logger).Log("msg", "failed to read snapshot status", "err", err)
	} else {
		level.Info(logger).Log("msg", "snapshot store ready", "path", cfg.DBPath,
			"schema", status.SchemaVersion, "ports", status.Ports, "readmes", status.Readmes,
			"repositories", status.Repositories, "pruned", removed)
	}
	return store, nil
}
