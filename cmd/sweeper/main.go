package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/marketplace-indexer/internal/adapter"
	"github.com/feral-file/marketplace-indexer/internal/block"
	"github.com/feral-file/marketplace-indexer/internal/config"
	"github.com/feral-file/marketplace-indexer/internal/logger"
	"github.com/feral-file/marketplace-indexer/internal/metadata"
	"github.com/feral-file/marketplace-indexer/internal/metrics"
	"github.com/feral-file/marketplace-indexer/internal/providers/ethereum"
	"github.com/feral-file/marketplace-indexer/internal/ratelimit"
	"github.com/feral-file/marketplace-indexer/internal/store"
	"github.com/feral-file/marketplace-indexer/internal/sweeper"
	"github.com/feral-file/marketplace-indexer/internal/uri"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSweeperConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "sweeper",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Sweeper")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clock := adapter.NewClock()
	httpClient := adapter.NewHTTPClient(cfg.Metadata.HTTPTimeout, cfg.Metadata.MaxRetryElapsed)

	// tokenURI is re-read from the NFT contract on every refresh
	ethClient, err := ratelimit.Dial(ctx, adapter.NewEthClientDialer(), cfg.Ethereum.RPCURL, ratelimit.Config{
		RequestsPerSecond: cfg.Ethereum.RPCRateLimit,
		Burst:             cfg.Ethereum.RPCBurst,
	})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial Ethereum RPC", zap.Error(err))
	}
	ledger, err := ethereum.NewClient(ethereum.Config{
		NFTAddress:         cfg.Ethereum.NFTAddress,
		MarketplaceAddress: cfg.Ethereum.MarketplaceAddress,
		LogStepSize:        cfg.Ethereum.LogStepSize,
	}, ethClient, block.NewTimestampProvider(ethereum.NewEthereumBlockFetcher(ethClient), block.Config{}))
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create ledger client", zap.Error(err))
	}
	defer ledger.Close()

	uriResolver := uri.NewResolver(&uri.Config{
		IPFSGateways:    cfg.URI.IPFSGateways,
		ArweaveGateways: cfg.URI.ArweaveGateways,
	})
	metadataResolver := metadata.NewResolver(metadata.Config{
		DetectMediaType: cfg.Metadata.DetectMediaType,
	}, httpClient, uriResolver, adapter.NewJSON(), adapter.NewJCS())

	// Initialize metadata refresh sweeper
	metadataSweeper := sweeper.NewMetadataSweeper(&sweeper.MetadataSweeperConfig{
		BatchSize:       cfg.MetadataSweeper.BatchSize,
		WorkerPoolSize:  cfg.MetadataSweeper.Worker.WorkerPoolSize,
		WorkerQueueSize: cfg.MetadataSweeper.Worker.WorkerQueueSize,
		RefreshAfter:    cfg.MetadataSweeper.RefreshAfter,
		Interval:        cfg.MetadataSweeper.Interval,
	}, dataStore, ledger, metadataResolver, clock, metrics.NewSweeper())

	logger.InfoCtx(ctx, "Initialized metadata sweeper",
		zap.Int("batch_size", cfg.MetadataSweeper.BatchSize),
		zap.Int("worker_pool_size", cfg.MetadataSweeper.Worker.WorkerPoolSize),
		zap.Duration("refresh_after", cfg.MetadataSweeper.RefreshAfter),
	)

	errChan := make(chan error, 2)
	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Address); err != nil {
			errChan <- err
		}
	}()
	go func() {
		if err := metadataSweeper.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Cancel context to stop the sweeper
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := metadataSweeper.Stop(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}

	logger.InfoCtx(shutdownCtx, "Sweeper stopped")
}
