package main

import (
	"context"
	"errors"
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
	"github.com/feral-file/marketplace-indexer/internal/indexer"
	"github.com/feral-file/marketplace-indexer/internal/logger"
	"github.com/feral-file/marketplace-indexer/internal/metadata"
	"github.com/feral-file/marketplace-indexer/internal/metrics"
	"github.com/feral-file/marketplace-indexer/internal/providers/ethereum"
	"github.com/feral-file/marketplace-indexer/internal/ratelimit"
	"github.com/feral-file/marketplace-indexer/internal/reconciler"
	"github.com/feral-file/marketplace-indexer/internal/router"
	"github.com/feral-file/marketplace-indexer/internal/store"
	"github.com/feral-file/marketplace-indexer/internal/uri"
	"github.com/feral-file/marketplace-indexer/internal/watermark"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadIndexerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "indexer",
			"chain":   string(cfg.Ethereum.ChainID),
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Marketplace Indexer")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	jcsAdapter := adapter.NewJCS()
	httpClient := adapter.NewHTTPClient(cfg.Metadata.HTTPTimeout, cfg.Metadata.MaxRetryElapsed)

	// Initialize ethereum client
	ethClient, err := ratelimit.Dial(ctx, adapter.NewEthClientDialer(), cfg.Ethereum.RPCURL, ratelimit.Config{
		RequestsPerSecond: cfg.Ethereum.RPCRateLimit,
		Burst:             cfg.Ethereum.RPCBurst,
	})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial Ethereum RPC", zap.Error(err))
	}

	timestamps := block.NewTimestampProvider(ethereum.NewEthereumBlockFetcher(ethClient), block.Config{})
	ledger, err := ethereum.NewClient(ethereum.Config{
		NFTAddress:         cfg.Ethereum.NFTAddress,
		MarketplaceAddress: cfg.Ethereum.MarketplaceAddress,
		LogStepSize:        cfg.Ethereum.LogStepSize,
	}, ethClient, timestamps)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create ledger client", zap.Error(err))
	}
	defer ledger.Close()

	// Initialize metadata resolution
	uriResolver := uri.NewResolver(&uri.Config{
		IPFSGateways:    cfg.URI.IPFSGateways,
		ArweaveGateways: cfg.URI.ArweaveGateways,
	})
	metadataResolver := metadata.NewResolver(metadata.Config{
		DetectMediaType: cfg.Metadata.DetectMediaType,
	}, httpClient, uriResolver, jsonAdapter, jcsAdapter)

	// Wire the poll loop
	order, err := router.ParseOrder(cfg.Indexer.DispatchOrder)
	if err != nil {
		logger.FatalCtx(ctx, "Invalid dispatch order", zap.Error(err))
	}
	indexerMetrics := metrics.NewIndexer(cfg.Ethereum.ChainID)
	handler := reconciler.New(dataStore, ledger, metadataResolver, clockAdapter)
	eventRouter := router.NewRouter(router.Config{Order: order}, ledger, handler, indexerMetrics)
	wm := watermark.New(dataStore, watermark.Key(cfg.Ethereum.ChainID, cfg.Ethereum.NFTAddress, cfg.Ethereum.MarketplaceAddress))

	pollLoop := indexer.NewIndexer(indexer.Config{
		ChainID:       cfg.Ethereum.ChainID,
		StartBlock:    cfg.Ethereum.StartBlock,
		PollInterval:  cfg.Indexer.PollInterval,
		MaxBlockRange: cfg.Indexer.MaxBlockRange,
	}, ledger, eventRouter, wm, clockAdapter, indexerMetrics)

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)
	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Address); err != nil {
			errCh <- err
		}
	}()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := pollLoop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "indexer"))
	}
	cancel()

	// Let the in-flight tick finish its current write
	select {
	case <-runDone:
	case <-time.After(10 * time.Second):
		logger.Warn("Poll loop did not stop in time")
	}

	logger.Info("Marketplace Indexer stopped")
}
