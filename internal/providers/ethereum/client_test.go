package ethereum_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/logger"
	"github.com/feral-file/marketplace-indexer/internal/mocks"
	"github.com/feral-file/marketplace-indexer/internal/providers/ethereum"
)

const (
	nftAddress         = "0x1111111111111111111111111111111111111111"
	marketplaceAddress = "0x2222222222222222222222222222222222222222"
	alice              = "0x000000000000000000000000000000000000a11c"
	bob                = "0x0000000000000000000000000000000000000b0b"
)

var (
	transferTopic      = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	itemListedTopic    = crypto.Keccak256Hash([]byte("ItemListed(address,address,uint256,uint256)"))
	itemCanceledTopic  = crypto.Keccak256Hash([]byte("ItemCanceled(address,address,uint256)"))
	offerAcceptedTopic = crypto.Keccak256Hash([]byte("OfferAccepted(address,address,address,uint256,uint256)"))
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

type testClientMocks struct {
	ctrl       *gomock.Controller
	ethClient  *mocks.MockEthClient
	timestamps *mocks.MockTimestampProvider
	client     ethereum.LedgerClient
}

func setupTestClient(t *testing.T, stepSize uint64) *testClientMocks {
	ctrl := gomock.NewController(t)

	tm := &testClientMocks{
		ctrl:       ctrl,
		ethClient:  mocks.NewMockEthClient(ctrl),
		timestamps: mocks.NewMockTimestampProvider(ctrl),
	}

	client, err := ethereum.NewClient(ethereum.Config{
		NFTAddress:         nftAddress,
		MarketplaceAddress: marketplaceAddress,
		LogStepSize:        stepSize,
		TimestampWorkers:   2,
	}, tm.ethClient, tm.timestamps)
	require.NoError(t, err)
	tm.client = client

	return tm
}

func addressTopic(addr string) common.Hash {
	return common.BytesToHash(common.HexToAddress(addr).Bytes())
}

func uint256Word(v int64) []byte {
	return common.BigToHash(big.NewInt(v)).Bytes()
}

func TestNewClient_InvalidAddresses(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, err := ethereum.NewClient(ethereum.Config{NFTAddress: "nope", MarketplaceAddress: marketplaceAddress},
		mocks.NewMockEthClient(ctrl), mocks.NewMockTimestampProvider(ctrl))
	assert.Error(t, err)

	_, err = ethereum.NewClient(ethereum.Config{NFTAddress: nftAddress, MarketplaceAddress: ""},
		mocks.NewMockEthClient(ctrl), mocks.NewMockTimestampProvider(ctrl))
	assert.Error(t, err)
}

func TestCurrentHeight(t *testing.T) {
	tm := setupTestClient(t, 0)
	defer tm.ctrl.Finish()

	ctx := context.Background()
	tm.ethClient.EXPECT().HeaderByNumber(ctx, nil).Return(&types.Header{Number: big.NewInt(12345)}, nil)

	height, err := tm.client.CurrentHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), height)

	tm.ethClient.EXPECT().HeaderByNumber(ctx, nil).Return(nil, errors.New("rpc down"))
	_, err = tm.client.CurrentHeight(ctx)
	assert.Error(t, err)
}

func TestQueryEvents_Transfer(t *testing.T) {
	tm := setupTestClient(t, 0)
	defer tm.ctrl.Finish()

	ctx := context.Background()
	blockTime := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	logs := []types.Log{
		{
			Address:     common.HexToAddress(nftAddress),
			Topics:      []common.Hash{transferTopic, addressTopic(domain.ETHEREUM_ZERO_ADDRESS), addressTopic(alice), common.BigToHash(big.NewInt(7))},
			BlockNumber: 101,
			Index:       3,
			TxHash:      common.HexToHash("0xaa"),
		},
		{
			Address:     common.HexToAddress(nftAddress),
			Topics:      []common.Hash{transferTopic, addressTopic(alice), addressTopic(bob), common.BigToHash(big.NewInt(7))},
			BlockNumber: 100,
			Index:       9,
			TxHash:      common.HexToHash("0xbb"),
		},
		{
			// ERC20-shaped transfer, cannot be decoded as ERC721
			Address:     common.HexToAddress(nftAddress),
			Topics:      []common.Hash{transferTopic, addressTopic(alice), addressTopic(bob)},
			Data:        uint256Word(1),
			BlockNumber: 100,
			Index:       10,
		},
		{
			Address:     common.HexToAddress(nftAddress),
			Topics:      []common.Hash{transferTopic, addressTopic(alice), addressTopic(bob), common.BigToHash(big.NewInt(8))},
			BlockNumber: 100,
			Index:       11,
			Removed:     true,
		},
	}

	tm.ethClient.EXPECT().
		FilterLogs(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, q geth.FilterQuery) ([]types.Log, error) {
			assert.Equal(t, []common.Address{common.HexToAddress(nftAddress)}, q.Addresses)
			assert.Equal(t, [][]common.Hash{{transferTopic}}, q.Topics)
			assert.Equal(t, uint64(100), q.FromBlock.Uint64())
			assert.Equal(t, uint64(200), q.ToBlock.Uint64())
			return logs, nil
		})
	tm.timestamps.EXPECT().GetBlockTimestamp(gomock.Any(), uint64(100)).Return(blockTime, nil)
	tm.timestamps.EXPECT().GetBlockTimestamp(gomock.Any(), uint64(101)).Return(blockTime.Add(12*time.Second), nil)

	events, err := tm.client.QueryEvents(ctx, domain.EventKindTransfer, 100, 200)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, domain.LedgerEvent{
		Kind:            domain.EventKindTransfer,
		ContractAddress: nftAddress,
		NFTAddress:      nftAddress,
		TokenNumber:     "7",
		From:            alice,
		To:              bob,
		TxHash:          common.HexToHash("0xbb").Hex(),
		BlockNumber:     100,
		LogIndex:        9,
		Timestamp:       blockTime,
	}, events[0])

	assert.Equal(t, uint64(101), events[1].BlockNumber)
	assert.True(t, events[1].IsMint())
	assert.Equal(t, blockTime.Add(12*time.Second), events[1].Timestamp)
}

func TestQueryEvents_Marketplace(t *testing.T) {
	tm := setupTestClient(t, 0)
	defer tm.ctrl.Finish()

	ctx := context.Background()
	blockTime := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("item listed", func(t *testing.T) {
		tm.ethClient.EXPECT().
			FilterLogs(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, q geth.FilterQuery) ([]types.Log, error) {
				assert.Equal(t, []common.Address{common.HexToAddress(marketplaceAddress)}, q.Addresses)
				assert.Equal(t, [][]common.Hash{{itemListedTopic}}, q.Topics)
				return []types.Log{{
					Address:     common.HexToAddress(marketplaceAddress),
					Topics:      []common.Hash{itemListedTopic, addressTopic(alice), addressTopic(nftAddress), common.BigToHash(big.NewInt(7))},
					Data:        uint256Word(1_500_000_000_000_000_000),
					BlockNumber: 150,
					Index:       0,
				}}, nil
			})
		tm.timestamps.EXPECT().GetBlockTimestamp(gomock.Any(), uint64(150)).Return(blockTime, nil)

		events, err := tm.client.QueryEvents(ctx, domain.EventKindItemListed, 100, 200)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, marketplaceAddress, events[0].ContractAddress)
		assert.Equal(t, nftAddress, events[0].NFTAddress)
		assert.Equal(t, alice, events[0].Seller)
		assert.Equal(t, "7", events[0].TokenNumber)
		assert.Equal(t, "1.5", domain.FormatPrice(events[0].Price).String())
		assert.NoError(t, events[0].Validate())
	})

	t.Run("item canceled has no data", func(t *testing.T) {
		tm.ethClient.EXPECT().FilterLogs(ctx, gomock.Any()).Return([]types.Log{{
			Address:     common.HexToAddress(marketplaceAddress),
			Topics:      []common.Hash{itemCanceledTopic, addressTopic(alice), addressTopic(nftAddress), common.BigToHash(big.NewInt(7))},
			BlockNumber: 160,
		}}, nil)
		tm.timestamps.EXPECT().GetBlockTimestamp(gomock.Any(), uint64(160)).Return(blockTime, nil)

		events, err := tm.client.QueryEvents(ctx, domain.EventKindItemCanceled, 100, 200)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, alice, events[0].Seller)
		assert.Nil(t, events[0].Price)
	})

	t.Run("offer accepted with token id in data", func(t *testing.T) {
		data := append(uint256Word(42), uint256Word(2_000_000_000_000_000_000)...)
		tm.ethClient.EXPECT().FilterLogs(ctx, gomock.Any()).Return([]types.Log{{
			Address:     common.HexToAddress(marketplaceAddress),
			Topics:      []common.Hash{offerAcceptedTopic, addressTopic(alice), addressTopic(bob), addressTopic(nftAddress)},
			Data:        data,
			BlockNumber: 170,
		}}, nil)
		tm.timestamps.EXPECT().GetBlockTimestamp(gomock.Any(), uint64(170)).Return(blockTime, nil)

		events, err := tm.client.QueryEvents(ctx, domain.EventKindOfferAccepted, 100, 200)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, alice, events[0].Seller)
		assert.Equal(t, bob, events[0].Offerer)
		assert.Equal(t, "42", events[0].TokenNumber)
		assert.Equal(t, "2", domain.FormatPrice(events[0].Price).String())
	})
}

func TestQueryEvents_HalvesStepOnTooManyResults(t *testing.T) {
	tm := setupTestClient(t, 100)
	defer tm.ctrl.Finish()

	ctx := context.Background()

	var ranges [][2]uint64
	tm.ethClient.EXPECT().
		FilterLogs(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, q geth.FilterQuery) ([]types.Log, error) {
			ranges = append(ranges, [2]uint64{q.FromBlock.Uint64(), q.ToBlock.Uint64()})
			if q.ToBlock.Uint64()-q.FromBlock.Uint64() >= 50 {
				return nil, errors.New("query returned more than 10000 results")
			}
			return nil, nil
		}).
		Times(3)

	events, err := tm.client.QueryEvents(ctx, domain.EventKindItemBought, 1, 100)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, [][2]uint64{{1, 100}, {1, 50}, {51, 100}}, ranges)
}

func TestQueryEvents_Errors(t *testing.T) {
	tm := setupTestClient(t, 0)
	defer tm.ctrl.Finish()

	ctx := context.Background()

	_, err := tm.client.QueryEvents(ctx, domain.EventKind("Approval"), 1, 2)
	assert.ErrorIs(t, err, domain.ErrUnknownEventKind)

	events, err := tm.client.QueryEvents(ctx, domain.EventKindTransfer, 10, 9)
	assert.NoError(t, err)
	assert.Empty(t, events)

	tm.ethClient.EXPECT().FilterLogs(ctx, gomock.Any()).Return(nil, errors.New("connection refused"))
	_, err = tm.client.QueryEvents(ctx, domain.EventKindTransfer, 1, 2)
	assert.Error(t, err)

	tm.ethClient.EXPECT().FilterLogs(ctx, gomock.Any()).Return([]types.Log{{
		Address:     common.HexToAddress(nftAddress),
		Topics:      []common.Hash{transferTopic, addressTopic(alice), addressTopic(bob), common.BigToHash(big.NewInt(1))},
		BlockNumber: 2,
	}}, nil)
	tm.timestamps.EXPECT().GetBlockTimestamp(gomock.Any(), uint64(2)).Return(time.Time{}, errors.New("header unavailable"))
	_, err = tm.client.QueryEvents(ctx, domain.EventKindTransfer, 1, 2)
	assert.Error(t, err)
}

func TestTokenURI(t *testing.T) {
	tm := setupTestClient(t, 0)
	defer tm.ctrl.Finish()

	ctx := context.Background()

	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	encoded, err := abi.Arguments{{Type: stringType}}.Pack("ipfs://bafymeta/7.json")
	require.NoError(t, err)

	tm.ethClient.EXPECT().
		CallContract(ctx, gomock.Any(), nil).
		DoAndReturn(func(_ context.Context, msg geth.CallMsg, _ *big.Int) ([]byte, error) {
			assert.Equal(t, common.HexToAddress(nftAddress), *msg.To)
			// tokenURI(uint256) selector
			assert.Equal(t, crypto.Keccak256([]byte("tokenURI(uint256)"))[:4], msg.Data[:4])
			return encoded, nil
		})

	uri, err := tm.client.TokenURI(ctx, nftAddress, "7")
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafymeta/7.json", uri)

	_, err = tm.client.TokenURI(ctx, nftAddress, "not-a-number")
	assert.Error(t, err)
}
