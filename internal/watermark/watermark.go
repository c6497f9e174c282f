package watermark

import (
	"context"
	"fmt"

	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/store"
)

// Watermark is the durable height below which every event has been applied
//
//go:generate mockgen -source=watermark.go -destination=../mocks/watermark.go -package=mocks -mock_names=Watermark=MockWatermark
type Watermark interface {
	// Get returns the persisted height. ok is false before the first Advance.
	Get(ctx context.Context) (height uint64, ok bool, err error)
	// Advance persists height. Moving backwards fails with domain.ErrWatermarkRegression.
	Advance(ctx context.Context, height uint64) error
}

// Key derives the cursor key of one deployment so that different contract pairs
// never share progress
func Key(chain domain.Chain, nftAddress, marketplaceAddress string) string {
	return fmt.Sprintf("%s:%s:%s", chain,
		domain.NormalizeAddress(nftAddress),
		domain.NormalizeAddress(marketplaceAddress))
}

type watermark struct {
	cursors store.CursorStore
	key     string
}

// New creates a watermark stored under key
func New(cursors store.CursorStore, key string) Watermark {
	return &watermark{cursors: cursors, key: key}
}

func (w *watermark) Get(ctx context.Context) (uint64, bool, error) {
	height, ok, err := w.cursors.GetBlockCursor(ctx, w.key)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read watermark: %w", err)
	}
	return height, ok, nil
}

func (w *watermark) Advance(ctx context.Context, height uint64) error {
	current, ok, err := w.Get(ctx)
	if err != nil {
		return err
	}
	if ok {
		if height < current {
			return fmt.Errorf("%w: %d -> %d", domain.ErrWatermarkRegression, current, height)
		}
		if height == current {
			return nil
		}
	}

	if err := w.cursors.SetBlockCursor(ctx, w.key, height); err != nil {
		return fmt.Errorf("failed to persist watermark: %w", err)
	}
	return nil
}
