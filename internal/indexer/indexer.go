package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/marketplace-indexer/internal/adapter"
	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/logger"
	"github.com/feral-file/marketplace-indexer/internal/metrics"
	"github.com/feral-file/marketplace-indexer/internal/providers/ethereum"
	"github.com/feral-file/marketplace-indexer/internal/router"
	"github.com/feral-file/marketplace-indexer/internal/watermark"
)

const DEFAULT_POLL_INTERVAL = 5 * time.Second

// Config holds the configuration for the poll loop
type Config struct {
	ChainID domain.Chain
	// StartBlock is the first block to index when no watermark exists yet.
	// Zero starts at the current head.
	StartBlock uint64
	// PollInterval is the delay between ticks, also used as the retry delay after a failure
	PollInterval time.Duration
	// MaxBlockRange caps the blocks covered by one tick, zero means unbounded
	MaxBlockRange uint64
}

// Indexer drives reconciliation: each tick applies the blocks between the watermark and the head
type Indexer interface {
	// Run ticks until the context is canceled. Tick failures are logged and retried
	// after the poll interval.
	Run(ctx context.Context) error
	// Tick applies one range and advances the watermark on success
	Tick(ctx context.Context) error
}

type indexer struct {
	config    Config
	ledger    ethereum.LedgerClient
	router    router.Router
	watermark watermark.Watermark
	clock     adapter.Clock
	metrics   *metrics.Indexer
}

// NewIndexer creates a new poll loop
func NewIndexer(
	config Config,
	ledger ethereum.LedgerClient,
	r router.Router,
	wm watermark.Watermark,
	clock adapter.Clock,
	m *metrics.Indexer,
) Indexer {
	if config.PollInterval <= 0 {
		config.PollInterval = DEFAULT_POLL_INTERVAL
	}
	return &indexer{
		config:    config,
		ledger:    ledger,
		router:    r,
		watermark: wm,
		clock:     clock,
		metrics:   m,
	}
}

func (i *indexer) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting poll loop",
		zap.String("chain", string(i.config.ChainID)),
		zap.Duration("poll_interval", i.config.PollInterval),
		zap.Uint64("max_block_range", i.config.MaxBlockRange))

	for {
		if err := i.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.ErrorCtx(ctx, err, zap.String("chain", string(i.config.ChainID)))
		}

		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Poll loop stopped", zap.String("chain", string(i.config.ChainID)))
			return ctx.Err()
		case <-i.clock.After(i.config.PollInterval):
		}
	}
}

// bootstrap returns the current watermark, persisting the initial one when absent
func (i *indexer) bootstrap(ctx context.Context) (uint64, error) {
	height, ok, err := i.watermark.Get(ctx)
	if err != nil {
		return 0, err
	}
	if ok {
		return height, nil
	}

	if i.config.StartBlock > 0 {
		height = i.config.StartBlock - 1
		logger.InfoCtx(ctx, "Starting from configured block",
			zap.String("chain", string(i.config.ChainID)),
			zap.Uint64("block", i.config.StartBlock))
	} else {
		height, err = i.ledger.CurrentHeight(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to get current height: %w", err)
		}
		logger.InfoCtx(ctx, "Starting from latest block",
			zap.String("chain", string(i.config.ChainID)),
			zap.Uint64("block", height))
	}

	if err := i.watermark.Advance(ctx, height); err != nil {
		return 0, err
	}
	return height, nil
}

func (i *indexer) Tick(ctx context.Context) error {
	started := i.clock.Now()
	tickID := ulid.MustNewDefault(started).String()

	from, to, head, err := i.nextRange(ctx)
	if err != nil {
		i.metrics.ObserveTick(err, 0, started)
		return fmt.Errorf("tick %s: %w", tickID, err)
	}
	if from > to {
		i.metrics.SetHeights(from-1, head)
		i.metrics.ObserveIdleTick()
		logger.DebugCtx(ctx, "No new blocks", zap.String("tick_id", tickID), zap.Uint64("head", head))
		return nil
	}

	fields := []zap.Field{
		zap.String("tick_id", tickID),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Uint64("head", head),
	}

	dispatched, err := i.router.Route(ctx, from, to)
	if err != nil {
		i.metrics.ObserveTick(err, 0, started)
		return fmt.Errorf("tick %s failed to reconcile [%d, %d] after %d events: %w", tickID, from, to, dispatched, err)
	}

	if err := i.watermark.Advance(ctx, to); err != nil {
		if errors.Is(err, domain.ErrWatermarkRegression) {
			logger.WarnCtx(ctx, "Watermark moved ahead of the tick", append(fields, zap.Error(err))...)
		}
		i.metrics.ObserveTick(err, 0, started)
		return fmt.Errorf("tick %s: %w", tickID, err)
	}

	i.metrics.SetHeights(to, head)
	i.metrics.ObserveTick(nil, to-from+1, started)
	logger.InfoCtx(ctx, "Tick completed", append(fields,
		zap.Int("events", dispatched),
		zap.Duration("duration", i.clock.Since(started)))...)

	return nil
}

// nextRange computes the inclusive range [watermark+1, min(head, watermark+MaxBlockRange)].
// from > to means there is nothing to do.
func (i *indexer) nextRange(ctx context.Context) (from, to, head uint64, err error) {
	wm, err := i.bootstrap(ctx)
	if err != nil {
		return 0, 0, 0, err
	}

	head, err = i.ledger.CurrentHeight(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get current height: %w", err)
	}

	from = wm + 1
	to = head
	if i.config.MaxBlockRange > 0 && head > wm && head-wm > i.config.MaxBlockRange {
		to = wm + i.config.MaxBlockRange
	}
	return from, to, head, nil
}
