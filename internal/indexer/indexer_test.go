package indexer_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/indexer"
	"github.com/feral-file/marketplace-indexer/internal/logger"
	"github.com/feral-file/marketplace-indexer/internal/metrics"
	"github.com/feral-file/marketplace-indexer/internal/mocks"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// testIndexerMocks contains all the mocks needed for testing the poll loop
type testIndexerMocks struct {
	ctrl      *gomock.Controller
	ledger    *mocks.MockLedgerClient
	router    *mocks.MockRouter
	watermark *mocks.MockWatermark
	clock     *mocks.MockClock
}

func setupTestIndexer(t *testing.T) *testIndexerMocks {
	ctrl := gomock.NewController(t)

	tm := &testIndexerMocks{
		ctrl:      ctrl,
		ledger:    mocks.NewMockLedgerClient(ctrl),
		router:    mocks.NewMockRouter(ctrl),
		watermark: mocks.NewMockWatermark(ctrl),
		clock:     mocks.NewMockClock(ctrl),
	}
	tm.clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	tm.clock.EXPECT().Since(gomock.Any()).Return(time.Millisecond).AnyTimes()

	return tm
}

func (tm *testIndexerMocks) indexer(cfg indexer.Config) indexer.Indexer {
	cfg.ChainID = domain.ChainEthereumSepolia
	return indexer.NewIndexer(cfg, tm.ledger, tm.router, tm.watermark, tm.clock, metrics.NewIndexer(cfg.ChainID))
}

func TestTick_BootstrapFromStartBlock(t *testing.T) {
	tm := setupTestIndexer(t)
	defer tm.ctrl.Finish()
	ctx := context.Background()

	gomock.InOrder(
		tm.watermark.EXPECT().Get(ctx).Return(uint64(0), false, nil),
		tm.watermark.EXPECT().Advance(ctx, uint64(99)).Return(nil),
		tm.ledger.EXPECT().CurrentHeight(ctx).Return(uint64(150), nil),
		tm.router.EXPECT().Route(ctx, uint64(100), uint64(150)).Return(3, nil),
		tm.watermark.EXPECT().Advance(ctx, uint64(150)).Return(nil),
	)

	require.NoError(t, tm.indexer(indexer.Config{StartBlock: 100}).Tick(ctx))
}

func TestTick_BootstrapAtHead(t *testing.T) {
	tm := setupTestIndexer(t)
	defer tm.ctrl.Finish()
	ctx := context.Background()

	gomock.InOrder(
		tm.watermark.EXPECT().Get(ctx).Return(uint64(0), false, nil),
		tm.ledger.EXPECT().CurrentHeight(ctx).Return(uint64(500), nil),
		tm.watermark.EXPECT().Advance(ctx, uint64(500)).Return(nil),
		tm.ledger.EXPECT().CurrentHeight(ctx).Return(uint64(500), nil),
	)

	// Nothing new beyond the head: no routing
	require.NoError(t, tm.indexer(indexer.Config{}).Tick(ctx))
}

func TestTick_ResumesFromWatermark(t *testing.T) {
	tm := setupTestIndexer(t)
	defer tm.ctrl.Finish()
	ctx := context.Background()

	gomock.InOrder(
		tm.watermark.EXPECT().Get(ctx).Return(uint64(200), true, nil),
		tm.ledger.EXPECT().CurrentHeight(ctx).Return(uint64(205), nil),
		tm.router.EXPECT().Route(ctx, uint64(201), uint64(205)).Return(0, nil),
		tm.watermark.EXPECT().Advance(ctx, uint64(205)).Return(nil),
	)

	// The configured start block only applies when no watermark exists
	require.NoError(t, tm.indexer(indexer.Config{StartBlock: 10}).Tick(ctx))
}

func TestTick_MaxBlockRange(t *testing.T) {
	tm := setupTestIndexer(t)
	defer tm.ctrl.Finish()
	ctx := context.Background()

	gomock.InOrder(
		tm.watermark.EXPECT().Get(ctx).Return(uint64(100), true, nil),
		tm.ledger.EXPECT().CurrentHeight(ctx).Return(uint64(1000), nil),
		tm.router.EXPECT().Route(ctx, uint64(101), uint64(150)).Return(10, nil),
		tm.watermark.EXPECT().Advance(ctx, uint64(150)).Return(nil),
	)

	require.NoError(t, tm.indexer(indexer.Config{MaxBlockRange: 50}).Tick(ctx))
}

func TestTick_HeadBehindWatermark(t *testing.T) {
	tm := setupTestIndexer(t)
	defer tm.ctrl.Finish()
	ctx := context.Background()

	tm.watermark.EXPECT().Get(ctx).Return(uint64(100), true, nil)
	tm.ledger.EXPECT().CurrentHeight(ctx).Return(uint64(98), nil)

	require.NoError(t, tm.indexer(indexer.Config{MaxBlockRange: 50}).Tick(ctx))
}

func TestTick_RouteFailureKeepsWatermark(t *testing.T) {
	tm := setupTestIndexer(t)
	defer tm.ctrl.Finish()
	ctx := context.Background()

	tm.watermark.EXPECT().Get(ctx).Return(uint64(100), true, nil)
	tm.ledger.EXPECT().CurrentHeight(ctx).Return(uint64(110), nil)
	tm.router.EXPECT().Route(ctx, uint64(101), uint64(110)).Return(2, errors.New("db down"))
	// No Advance expected

	err := tm.indexer(indexer.Config{}).Tick(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestTick_HeightFailure(t *testing.T) {
	tm := setupTestIndexer(t)
	defer tm.ctrl.Finish()
	ctx := context.Background()

	tm.watermark.EXPECT().Get(ctx).Return(uint64(100), true, nil)
	tm.ledger.EXPECT().CurrentHeight(ctx).Return(uint64(0), errors.New("rpc timeout"))

	assert.Error(t, tm.indexer(indexer.Config{}).Tick(ctx))
}

func TestTick_AdvanceFailure(t *testing.T) {
	tm := setupTestIndexer(t)
	defer tm.ctrl.Finish()
	ctx := context.Background()

	tm.watermark.EXPECT().Get(ctx).Return(uint64(100), true, nil)
	tm.ledger.EXPECT().CurrentHeight(ctx).Return(uint64(101), nil)
	tm.router.EXPECT().Route(ctx, uint64(101), uint64(101)).Return(1, nil)
	tm.watermark.EXPECT().Advance(ctx, uint64(101)).Return(domain.ErrWatermarkRegression)

	err := tm.indexer(indexer.Config{}).Tick(ctx)
	assert.ErrorIs(t, err, domain.ErrWatermarkRegression)
}

func TestRun_RetriesAfterFailureUntilCanceled(t *testing.T) {
	tm := setupTestIndexer(t)
	defer tm.ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan time.Time, 1)
	ready <- time.Now()

	gomock.InOrder(
		// First tick fails
		tm.watermark.EXPECT().Get(gomock.Any()).Return(uint64(0), false, errors.New("db down")),
		tm.clock.EXPECT().After(2*time.Second).Return(ready),
		// Second tick succeeds and the loop is then stopped while waiting
		tm.watermark.EXPECT().Get(gomock.Any()).Return(uint64(10), true, nil),
		tm.ledger.EXPECT().CurrentHeight(gomock.Any()).Return(uint64(11), nil),
		tm.router.EXPECT().Route(gomock.Any(), uint64(11), uint64(11)).Return(0, nil),
		tm.watermark.EXPECT().Advance(gomock.Any(), uint64(11)).DoAndReturn(func(context.Context, uint64) error {
			cancel()
			return nil
		}),
		tm.clock.EXPECT().After(2*time.Second).Return(make(chan time.Time)),
	)

	err := tm.indexer(indexer.Config{PollInterval: 2 * time.Second}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_DefaultPollInterval(t *testing.T) {
	tm := setupTestIndexer(t)
	defer tm.ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.watermark.EXPECT().Get(gomock.Any()).DoAndReturn(func(context.Context) (uint64, bool, error) {
		cancel()
		return uint64(0), false, context.Canceled
	})

	err := tm.indexer(indexer.Config{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5*time.Second, indexer.DEFAULT_POLL_INTERVAL)
}
