package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joshuaramkissoon/clipcache/internal/logger"
	"github.com/joshuaramkissoon/clipcache/pkg/api"
	"github.com/joshuaramkissoon/clipcache/pkg/asset"
	"github.com/joshuaramkissoon/clipcache/pkg/cache"
	"github.com/joshuaramkissoon/clipcache/pkg/cache/disk"
	"github.com/joshuaramkissoon/clipcache/pkg/config"
	"github.com/joshuaramkissoon/clipcache/pkg/fetch"
	"github.com/joshuaramkissoon/clipcache/pkg/metrics"
	"github.com/joshuaramkissoon/clipcache/pkg/player"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the clipcache daemon",
	Long: `Start the clipcache daemon with the specified configuration.

The daemon serves the HTTP API until interrupted (SIGINT/SIGTERM) and
then shuts down gracefully.

Examples:
  # Start with the default config location
  clipcached start

  # Start with a custom config file
  clipcached start --config /etc/clipcache/config.yaml

  # Start with environment variable overrides
  CLIPCACHE_LOGGING_LEVEL=DEBUG clipcached start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("clipcached starting",
		"version", Version,
		logger.KeyPath, cfg.Cache.Root,
	)

	store, err := disk.New(disk.Config{Root: cfg.Cache.Root})
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("store close error", logger.KeyError, err.Error())
		}
	}()

	fetcher := fetch.New(fetch.Config{
		RequestTimeout: cfg.Fetch.RequestTimeout,
		MaxRetries:     cfg.Fetch.MaxRetries,
		InitialBackoff: cfg.Fetch.InitialBackoff,
	}, nil)

	cacheMetrics := metrics.NewCacheMetrics(nil)

	videoCache, err := cache.New(store, fetcher, cache.Config{
		MaxConcurrent: cfg.Cache.MaxConcurrent,
		IndexSize:     cfg.Cache.IndexSize,
	}, cacheMetrics)
	if err != nil {
		return fmt.Errorf("failed to create video cache: %w", err)
	}

	if cfg.Cache.Watch {
		watcher, err := videoCache.Watch()
		if err != nil {
			return fmt.Errorf("failed to start cache watcher: %w", err)
		}
		defer watcher.Close()
		logger.Info("cache watcher started", logger.KeyPath, cfg.Cache.Root)
	}

	assets, err := asset.NewPool(cfg.Asset.Capacity)
	if err != nil {
		return fmt.Errorf("failed to create asset pool: %w", err)
	}
	defer assets.Purge()

	players := player.NewPool(player.NewHeadless, cfg.Player.MaxFree)
	defer players.Close()

	metrics.RegisterPoolGauges(nil, assets.Len, players.FreeCount)

	server := api.NewServer(api.Config{
		Listen:       cfg.Server.Listen,
		WriteTimeout: cfg.Server.ShutdownTimeout + cfg.Fetch.RequestTimeout,
	}, api.Deps{
		Store:       store,
		Cache:       videoCache,
		Assets:      assets,
		PlayerStats: players.Stats,
	})

	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("clipcached stopped")
	return nil
}
