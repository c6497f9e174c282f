package block

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/marketplace-indexer/internal/logger"
)

// DEFAULT_MAX_ENTRIES bounds the number of cached block timestamps
const DEFAULT_MAX_ENTRIES = 10_000

// TimestampProvider provides cached access to block timestamps.
// Timestamps of mined blocks never change, so entries are kept until evicted by size.
//
//go:generate mockgen -source=block.go -destination=../mocks/block_provider.go -package=mocks -mock_names=TimestampProvider=MockTimestampProvider,BlockFetcher=MockBlockFetcher
type TimestampProvider interface {
	// GetBlockTimestamp returns the timestamp for a given block number, potentially from cache
	GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// BlockFetcher is the interface for fetching block information from the blockchain
type BlockFetcher interface {
	// FetchBlockTimestamp fetches the timestamp for a given block number
	FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// Config holds configuration for the TimestampProvider
type Config struct {
	// MaxEntries is the cache capacity; 0 means DEFAULT_MAX_ENTRIES
	MaxEntries int
}

type timestampProvider struct {
	fetcher    BlockFetcher
	maxEntries int

	mu         sync.RWMutex
	timestamps map[uint64]time.Time
	lowest     uint64
}

// NewTimestampProvider creates a new TimestampProvider with caching
func NewTimestampProvider(fetcher BlockFetcher, config Config) TimestampProvider {
	maxEntries := config.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DEFAULT_MAX_ENTRIES
	}
	return &timestampProvider{
		fetcher:    fetcher,
		maxEntries: maxEntries,
		timestamps: make(map[uint64]time.Time),
	}
}

// GetBlockTimestamp returns the timestamp for a given block number, using cache when present
func (p *timestampProvider) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	p.mu.RLock()
	cached, ok := p.timestamps[blockNumber]
	p.mu.RUnlock()

	if ok {
		logger.DebugCtx(ctx, "Using cached block timestamp",
			zap.Uint64("block_number", blockNumber),
			zap.Time("timestamp", cached))
		return cached, nil
	}

	logger.DebugCtx(ctx, "Fetching block timestamp from blockchain provider",
		zap.Uint64("block_number", blockNumber))
	timestamp, err := p.fetcher.FetchBlockTimestamp(ctx, blockNumber)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch block timestamp for block %d: %w", blockNumber, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.timestamps) >= p.maxEntries {
		p.evict()
	}
	if len(p.timestamps) == 0 || blockNumber < p.lowest {
		p.lowest = blockNumber
	}
	p.timestamps[blockNumber] = timestamp

	return timestamp, nil
}

// evict drops the lower half of the cached block range.
// The indexer moves forward, so old blocks are the least likely to be asked for again.
func (p *timestampProvider) evict() {
	highest := p.lowest
	for n := range p.timestamps {
		if n > highest {
			highest = n
		}
	}
	cutoff := p.lowest + (highest-p.lowest)/2

	newLowest := highest
	for n := range p.timestamps {
		if n <= cutoff {
			delete(p.timestamps, n)
			continue
		}
		if n < newLowest {
			newLowest = n
		}
	}
	p.lowest = newLowest
}
