package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/marketplace-indexer/internal/adapter"
	"github.com/feral-file/marketplace-indexer/internal/logger"
	"github.com/feral-file/marketplace-indexer/internal/metadata"
	"github.com/feral-file/marketplace-indexer/internal/metrics"
	"github.com/feral-file/marketplace-indexer/internal/providers/ethereum"
	"github.com/feral-file/marketplace-indexer/internal/reconciler"
	"github.com/feral-file/marketplace-indexer/internal/store"
	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

const (
	DEFAULT_SWEEP_INTERVAL     = time.Minute
	DEFAULT_WRITE_RETRY_WINDOW = 30 * time.Second
)

// MetadataSweeperConfig holds configuration for the metadata refresh sweeper
type MetadataSweeperConfig struct {
	BatchSize       int           // Tokens to refresh per cycle
	WorkerPoolSize  int           // Concurrent refreshes
	WorkerQueueSize int           // Pending refreshes, defaults to BatchSize
	RefreshAfter    time.Duration // Only refresh tokens checked longer ago than this
	Interval        time.Duration // Pause after a cycle that did not fill a batch
	WriteRetryMax   time.Duration // Total time spent retrying a failed store write
}

// metadataSweeper implements the Sweeper interface for token metadata refresh
type metadataSweeper struct {
	config    *MetadataSweeperConfig
	store     store.Store
	ledger    ethereum.LedgerClient
	resolver  metadata.Resolver
	clock     adapter.Clock
	metrics   *metrics.Sweeper
	pool      pond.Pool
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewMetadataSweeper creates a new metadata refresh sweeper
func NewMetadataSweeper(
	config *MetadataSweeperConfig,
	st store.Store,
	ledger ethereum.LedgerClient,
	resolver metadata.Resolver,
	clock adapter.Clock,
	m *metrics.Sweeper,
) Sweeper {
	if config.WorkerQueueSize <= 0 {
		config.WorkerQueueSize = config.BatchSize
	}
	if config.Interval <= 0 {
		config.Interval = DEFAULT_SWEEP_INTERVAL
	}
	if config.WriteRetryMax <= 0 {
		config.WriteRetryMax = DEFAULT_WRITE_RETRY_WINDOW
	}
	return &metadataSweeper{
		config:    config,
		store:     st,
		ledger:    ledger,
		resolver:  resolver,
		clock:     clock,
		metrics:   m,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *metadataSweeper) Name() string {
	return "metadata-sweeper"
}

func (s *metadataSweeper) newPool(ctx context.Context) pond.Pool {
	return pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.WorkerQueueSize),
		pond.WithContext(ctx),
	)
}

// Start runs sweep cycles until the context is canceled or Stop is called
func (s *metadataSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting metadata sweeper",
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
		zap.Duration("refresh_after", s.config.RefreshAfter),
		zap.Duration("interval", s.config.Interval),
	)

	s.pool = s.newPool(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Metadata sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			s.cleanup()
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Metadata sweeper stop requested")
			s.cleanup()
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
		}
	}
}

// cleanup stops the worker pool and waits for tasks to complete
func (s *metadataSweeper) cleanup() {
	if s.pool != nil {
		s.pool.StopAndWait()
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *metadataSweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	logger.InfoCtx(ctx, "Stopping metadata sweeper")
	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Metadata sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Metadata sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle refreshes one batch of tokens
func (s *metadataSweeper) runSweepCycle(ctx context.Context) (err error) {
	startTime := s.clock.Now()
	cycleID := ulid.MustNewDefault(startTime).String()
	defer func() {
		if !errors.Is(err, context.Canceled) {
			s.metrics.ObserveSweep(err, startTime)
		}
	}()

	checkedBefore := startTime.Add(-s.config.RefreshAfter)
	tokens, err := s.store.GetTokensForMetadataRefresh(ctx, checkedBefore, s.config.BatchSize)
	if err != nil {
		s.sleep(ctx, s.config.Interval)
		return fmt.Errorf("failed to get tokens for metadata refresh: %w", err)
	}

	if len(tokens) == 0 {
		logger.DebugCtx(ctx, "No tokens need a metadata refresh", zap.String("cycle_id", cycleID))
		if !s.sleep(ctx, s.config.Interval) {
			return ctx.Err()
		}
		return nil
	}

	var updated, unchanged, failed atomic.Int32
	for _, token := range tokens {
		s.pool.Submit(func() {
			switch outcome := s.refreshToken(ctx, token); outcome {
			case metrics.RefreshUpdated:
				updated.Add(1)
			case metrics.RefreshUnchanged:
				unchanged.Add(1)
			default:
				failed.Add(1)
			}
		})
	}

	// Wait for the batch, then recreate the pool for the next cycle
	s.pool.StopAndWait()
	s.pool = s.newPool(ctx)

	logger.InfoCtx(ctx, "Sweep cycle completed",
		zap.String("cycle_id", cycleID),
		zap.Duration("duration", s.clock.Since(startTime)),
		zap.Int("total", len(tokens)),
		zap.Int32("updated", updated.Load()),
		zap.Int32("unchanged", unchanged.Load()),
		zap.Int32("failed", failed.Load()),
	)

	// A full batch means more tokens are likely due
	if len(tokens) >= s.config.BatchSize {
		return nil
	}
	if !s.sleep(ctx, s.config.Interval) {
		return ctx.Err()
	}
	return nil
}

// sleep sleeps for the given duration but can be interrupted by context cancellation or Stop.
// Returns true if sleep completed normally.
func (s *metadataSweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}

// refreshToken resolves the token's metadata and stores it when its canonical hash changed.
// The check time is stamped in every case so that failing tokens do not starve the batch.
func (s *metadataSweeper) refreshToken(ctx context.Context, token schema.Token) string {
	fields := []zap.Field{
		zap.Int64("token_id", token.ID),
		zap.String("contract", token.ContractAddress),
		zap.String("token_number", token.TokenNumber),
	}

	input := store.UpdateTokenMetadataInput{TokenID: token.ID}
	outcome := metrics.RefreshFailed

	tokenURI := ""
	if token.TokenURI != nil {
		tokenURI = *token.TokenURI
	}
	if tokenURI == "" {
		uri, err := s.ledger.TokenURI(ctx, token.ContractAddress, token.TokenNumber)
		if err != nil {
			logger.WarnCtx(ctx, "Failed to read tokenURI", append(fields, zap.Error(err))...)
		} else if uri != "" {
			tokenURI = uri
			input.TokenURI = &uri
		}
	}

	if tokenURI != "" {
		md := s.resolver.Resolve(ctx, tokenURI)
		switch {
		case md == nil:
			logger.WarnCtx(ctx, "Metadata still unavailable", append(fields, zap.String("token_uri", tokenURI))...)
		case token.MetadataHash != nil && *token.MetadataHash == md.Hash:
			outcome = metrics.RefreshUnchanged
		default:
			input.Metadata = reconciler.MetadataInput(md)
			outcome = metrics.RefreshUpdated
		}
	}

	input.CheckedAt = s.clock.Now()
	if err := s.writeWithRetry(ctx, input); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to store metadata refresh: %w", err), fields...)
		outcome = metrics.RefreshError
	}

	s.metrics.ObserveRefresh(outcome)
	return outcome
}

// writeWithRetry stores the refresh with exponential backoff
func (s *metadataSweeper) writeWithRetry(ctx context.Context, input store.UpdateTokenMetadataInput) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = s.config.WriteRetryMax

	var attempt int
	notify := func(err error, next time.Duration) {
		attempt++
		logger.WarnCtx(ctx, "Metadata write failed, retrying",
			zap.Int64("token_id", input.TokenID),
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("next_retry_in", next),
		)
	}

	return backoff.RetryNotify(func() error {
		return s.store.UpdateTokenMetadata(ctx, input)
	}, backoff.WithContext(b, ctx), notify)
}
