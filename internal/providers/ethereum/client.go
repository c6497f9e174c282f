package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/marketplace-indexer/internal/adapter"
	"github.com/feral-file/marketplace-indexer/internal/block"
	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/logger"
)

const (
	// DEFAULT_LOG_STEP_SIZE is the initial block span of a single eth_getLogs request
	DEFAULT_LOG_STEP_SIZE = 10_000
	// DEFAULT_TIMESTAMP_WORKERS is the number of concurrent block header lookups
	DEFAULT_TIMESTAMP_WORKERS = 8
)

// eventsABI describes the events of the token and marketplace contracts
const eventsABI = `[
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}]},
	{"type":"event","name":"ItemListed","anonymous":false,"inputs":[
		{"name":"seller","type":"address","indexed":true},
		{"name":"nftAddress","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"price","type":"uint256","indexed":false}]},
	{"type":"event","name":"ItemCanceled","anonymous":false,"inputs":[
		{"name":"seller","type":"address","indexed":true},
		{"name":"nftAddress","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}]},
	{"type":"event","name":"ItemBought","anonymous":false,"inputs":[
		{"name":"buyer","type":"address","indexed":true},
		{"name":"nftAddress","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"price","type":"uint256","indexed":false}]},
	{"type":"event","name":"OfferCreated","anonymous":false,"inputs":[
		{"name":"offerer","type":"address","indexed":true},
		{"name":"nftAddress","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"price","type":"uint256","indexed":false}]},
	{"type":"event","name":"OfferAccepted","anonymous":false,"inputs":[
		{"name":"seller","type":"address","indexed":true},
		{"name":"offerer","type":"address","indexed":true},
		{"name":"nftAddress","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":false},
		{"name":"price","type":"uint256","indexed":false}]},
	{"type":"event","name":"OfferCanceled","anonymous":false,"inputs":[
		{"name":"offerer","type":"address","indexed":true},
		{"name":"nftAddress","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}]}
]`

const tokenURIABI = `[{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"}]`

// LedgerClient reads marketplace and token events from the chain
//
//go:generate mockgen -source=client.go -destination=../../mocks/ledger_client.go -package=mocks -mock_names=LedgerClient=MockLedgerClient
type LedgerClient interface {
	// CurrentHeight returns the latest block number
	CurrentHeight(ctx context.Context) (uint64, error)

	// QueryEvents returns the events of one kind in the inclusive block range,
	// sorted by (block number, log index)
	QueryEvents(ctx context.Context, kind domain.EventKind, fromBlock, toBlock uint64) ([]domain.LedgerEvent, error)

	// TokenURI fetches the tokenURI from an ERC721 contract
	TokenURI(ctx context.Context, contractAddress string, tokenNumber string) (string, error)

	// Close releases the worker pool and the RPC connection
	Close()
}

// Config holds the ledger client configuration
type Config struct {
	NFTAddress         string
	MarketplaceAddress string
	// LogStepSize is the initial block span per eth_getLogs call, halved on "too many results"
	LogStepSize uint64
	// TimestampWorkers bounds concurrent block timestamp lookups
	TimestampWorkers int
}

type ethereumClient struct {
	config      Config
	client      adapter.EthClient
	timestamps  block.TimestampProvider
	pool        pond.ResultPool[time.Time]
	eventsABI   abi.ABI
	tokenURIABI abi.ABI
}

// NewClient creates a ledger client on top of an RPC connection
func NewClient(config Config, client adapter.EthClient, timestamps block.TimestampProvider) (LedgerClient, error) {
	if !domain.IsValidAddress(config.NFTAddress) {
		return nil, fmt.Errorf("invalid nft address: %q", config.NFTAddress)
	}
	if !domain.IsValidAddress(config.MarketplaceAddress) {
		return nil, fmt.Errorf("invalid marketplace address: %q", config.MarketplaceAddress)
	}
	if config.LogStepSize == 0 {
		config.LogStepSize = DEFAULT_LOG_STEP_SIZE
	}
	if config.TimestampWorkers <= 0 {
		config.TimestampWorkers = DEFAULT_TIMESTAMP_WORKERS
	}

	parsedEvents, err := abi.JSON(strings.NewReader(eventsABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse events ABI: %w", err)
	}
	parsedTokenURI, err := abi.JSON(strings.NewReader(tokenURIABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse tokenURI ABI: %w", err)
	}

	return &ethereumClient{
		config:      config,
		client:      client,
		timestamps:  timestamps,
		pool:        pond.NewResultPool[time.Time](config.TimestampWorkers),
		eventsABI:   parsedEvents,
		tokenURIABI: parsedTokenURI,
	}, nil
}

// CurrentHeight returns the latest block number
func (c *ethereumClient) CurrentHeight(ctx context.Context) (uint64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

// QueryEvents returns the events of one kind in [fromBlock, toBlock]
func (c *ethereumClient) QueryEvents(ctx context.Context, kind domain.EventKind, fromBlock, toBlock uint64) ([]domain.LedgerEvent, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEventKind, kind)
	}
	if fromBlock > toBlock {
		return nil, nil
	}

	event, ok := c.eventsABI.Events[string(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEventKind, kind)
	}

	contract := c.config.MarketplaceAddress
	if kind == domain.EventKindTransfer {
		contract = c.config.NFTAddress
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{common.HexToAddress(contract)},
		Topics:    [][]common.Hash{{event.ID}},
	}

	logs, err := c.getLogsWithRetry(ctx, query, c.config.LogStepSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s logs for range %d-%d: %w", kind, fromBlock, toBlock, err)
	}

	events := make([]domain.LedgerEvent, 0, len(logs))
	for _, vLog := range logs {
		if vLog.Removed {
			continue
		}
		ev, err := c.parseEventLog(kind, event, vLog)
		if err != nil {
			logger.WarnCtx(ctx, "Skipping undecodable log",
				zap.String("kind", string(kind)),
				zap.String("tx_hash", vLog.TxHash.Hex()),
				zap.Uint("log_index", vLog.Index),
				zap.Error(err))
			continue
		}
		events = append(events, *ev)
	}

	if err := c.fillTimestamps(ctx, events); err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Before(&events[j])
	})

	return events, nil
}

// getLogsWithRetry processes the range from query.FromBlock to query.ToBlock in chunks,
// halving the chunk size whenever the provider refuses a query as too large
func (c *ethereumClient) getLogsWithRetry(ctx context.Context, query ethereum.FilterQuery, stepSize uint64) ([]types.Log, error) {
	currentStepSize := stepSize

	var allLogs []types.Log
	currentFrom := new(big.Int).Set(query.FromBlock)

	for currentFrom.Cmp(query.ToBlock) <= 0 {
		currentTo := new(big.Int).Add(currentFrom, new(big.Int).SetUint64(currentStepSize-1))
		if currentTo.Cmp(query.ToBlock) > 0 {
			currentTo.Set(query.ToBlock)
		}

		queryCopy := query
		queryCopy.FromBlock = new(big.Int).Set(currentFrom)
		queryCopy.ToBlock = new(big.Int).Set(currentTo)

		logs, err := c.client.FilterLogs(ctx, queryCopy)
		if err == nil {
			allLogs = append(allLogs, logs...)
			currentFrom.SetUint64(currentTo.Uint64() + 1)
			continue
		}

		if !isTooManyResultsError(err) || currentStepSize == 1 {
			return nil, err
		}

		currentStepSize = currentStepSize / 2

		logger.WarnCtx(ctx, "Too many results, reducing step size",
			zap.Uint64("oldStepSize", currentStepSize*2),
			zap.Uint64("newStepSize", currentStepSize),
			zap.Uint64("fromBlock", currentFrom.Uint64()),
			zap.Uint64("toBlock", currentTo.Uint64()))
	}

	return allLogs, nil
}

// isTooManyResultsError checks if the error is related to too many results
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "query returned more than 10000 results") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum")
}

// parseEventLog decodes a log of the given kind into a ledger event
func (c *ethereumClient) parseEventLog(kind domain.EventKind, event abi.Event, vLog types.Log) (*domain.LedgerEvent, error) {
	if len(vLog.Topics) == 0 || vLog.Topics[0] != event.ID {
		return nil, errors.New("unexpected event signature")
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	fields := make(map[string]any)
	if err := abi.ParseTopicsIntoMap(fields, indexed, vLog.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed to parse topics: %w", err)
	}
	if err := c.eventsABI.UnpackIntoMap(fields, event.Name, vLog.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack data: %w", err)
	}

	ev := &domain.LedgerEvent{
		Kind:            kind,
		ContractAddress: domain.NormalizeAddress(vLog.Address.Hex()),
		TxHash:          vLog.TxHash.Hex(),
		BlockNumber:     vLog.BlockNumber,
		LogIndex:        vLog.Index,
	}

	tokenID, ok := fields["tokenId"].(*big.Int)
	if !ok {
		return nil, errors.New("missing tokenId")
	}
	ev.TokenNumber = tokenID.String()

	if kind == domain.EventKindTransfer {
		ev.NFTAddress = ev.ContractAddress
	} else {
		nftAddress, err := addressField(fields, "nftAddress")
		if err != nil {
			return nil, err
		}
		ev.NFTAddress = nftAddress
	}

	var err error
	switch kind {
	case domain.EventKindTransfer:
		if ev.From, err = addressField(fields, "from"); err != nil {
			return nil, err
		}
		if ev.To, err = addressField(fields, "to"); err != nil {
			return nil, err
		}
	case domain.EventKindItemListed, domain.EventKindItemCanceled:
		if ev.Seller, err = addressField(fields, "seller"); err != nil {
			return nil, err
		}
	case domain.EventKindItemBought:
		if ev.Buyer, err = addressField(fields, "buyer"); err != nil {
			return nil, err
		}
	case domain.EventKindOfferCreated, domain.EventKindOfferCanceled:
		if ev.Offerer, err = addressField(fields, "offerer"); err != nil {
			return nil, err
		}
	case domain.EventKindOfferAccepted:
		if ev.Seller, err = addressField(fields, "seller"); err != nil {
			return nil, err
		}
		if ev.Offerer, err = addressField(fields, "offerer"); err != nil {
			return nil, err
		}
	}

	if price, ok := fields["price"].(*big.Int); ok {
		ev.Price = price
	}

	return ev, nil
}

func addressField(fields map[string]any, name string) (string, error) {
	addr, ok := fields[name].(common.Address)
	if !ok {
		return "", fmt.Errorf("missing %s", name)
	}
	return domain.NormalizeAddress(addr.Hex()), nil
}

// fillTimestamps sets each event's timestamp from its block header.
// Distinct blocks are looked up concurrently on the worker pool.
func (c *ethereumClient) fillTimestamps(ctx context.Context, events []domain.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}

	tasks := make(map[uint64]pond.Result[time.Time])
	for _, ev := range events {
		blockNumber := ev.BlockNumber
		if _, ok := tasks[blockNumber]; ok {
			continue
		}
		tasks[blockNumber] = c.pool.SubmitErr(func() (time.Time, error) {
			return c.timestamps.GetBlockTimestamp(ctx, blockNumber)
		})
	}

	timestamps := make(map[uint64]time.Time, len(tasks))
	var firstErr error
	for blockNumber, task := range tasks {
		ts, err := task.Wait()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		timestamps[blockNumber] = ts
	}
	if firstErr != nil {
		return fmt.Errorf("failed to fetch block timestamps: %w", firstErr)
	}

	for i := range events {
		events[i].Timestamp = timestamps[events[i].BlockNumber]
	}

	return nil
}

// TokenURI fetches the tokenURI from an ERC721 contract
func (c *ethereumClient) TokenURI(ctx context.Context, contractAddress string, tokenNumber string) (string, error) {
	tokenID, ok := new(big.Int).SetString(tokenNumber, 10)
	if !ok {
		return "", fmt.Errorf("invalid token number: %s", tokenNumber)
	}

	data, err := c.tokenURIABI.Pack("tokenURI", tokenID)
	if err != nil {
		return "", fmt.Errorf("failed to pack data: %w", err)
	}

	contractAddr := common.HexToAddress(contractAddress)
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contractAddr,
		Data: data,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to call contract: %w", err)
	}

	var uri string
	if err := c.tokenURIABI.UnpackIntoInterface(&uri, "tokenURI", result); err != nil {
		return "", fmt.Errorf("failed to unpack result: %w", err)
	}

	return uri, nil
}

// Close releases the worker pool and the RPC connection
func (c *ethereumClient) Close() {
	c.pool.StopAndWait()
	c.client.Close()
}
