package router

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/logger"
	"github.com/feral-file/marketplace-indexer/internal/metrics"
	"github.com/feral-file/marketplace-indexer/internal/providers/ethereum"
	"github.com/feral-file/marketplace-indexer/internal/reconciler"
)

// Order is the policy used to sequence the events of one block range
type Order string

const (
	// OrderByLog dispatches every event of the range in (block, log index) order
	OrderByLog Order = "log"
	// OrderByKind dispatches kind by kind in the fixed domain.EventKinds order,
	// each kind in ledger order
	OrderByKind Order = "kind"
)

// ParseOrder parses a configured dispatch order, defaulting to OrderByLog
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderByLog:
		return OrderByLog, nil
	case OrderByKind:
		return OrderByKind, nil
	default:
		return "", fmt.Errorf("invalid dispatch order %q: must be %q or %q", s, OrderByLog, OrderByKind)
	}
}

// Router fetches the events of a block range and dispatches them to the handlers
//
//go:generate mockgen -source=router.go -destination=../mocks/router.go -package=mocks -mock_names=Router=MockRouter
type Router interface {
	// Route applies every tracked event in the inclusive range and returns how many were dispatched.
	// The first fetch or handler error aborts the range.
	Route(ctx context.Context, fromBlock, toBlock uint64) (int, error)
}

// Config holds the router configuration
type Config struct {
	Order Order
}

type router struct {
	config  Config
	ledger  ethereum.LedgerClient
	handler reconciler.Handler
	metrics *metrics.Indexer
}

// NewRouter creates a new event router
func NewRouter(config Config, ledger ethereum.LedgerClient, handler reconciler.Handler, m *metrics.Indexer) Router {
	if config.Order == "" {
		config.Order = OrderByLog
	}
	return &router{
		config:  config,
		ledger:  ledger,
		handler: handler,
		metrics: m,
	}
}

func (r *router) Route(ctx context.Context, fromBlock, toBlock uint64) (int, error) {
	if fromBlock > toBlock {
		return 0, nil
	}

	if r.config.Order == OrderByKind {
		return r.routeByKind(ctx, fromBlock, toBlock)
	}
	return r.routeByLog(ctx, fromBlock, toBlock)
}

func (r *router) fetch(ctx context.Context, kind domain.EventKind, fromBlock, toBlock uint64) ([]domain.LedgerEvent, error) {
	events, err := r.ledger.QueryEvents(ctx, kind, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s events in [%d, %d]: %w", kind, fromBlock, toBlock, err)
	}
	logger.DebugCtx(ctx, "Fetched events",
		zap.String("kind", string(kind)),
		zap.Uint64("from", fromBlock),
		zap.Uint64("to", toBlock),
		zap.Int("count", len(events)))
	return events, nil
}

func (r *router) routeByLog(ctx context.Context, fromBlock, toBlock uint64) (int, error) {
	var all []domain.LedgerEvent
	for _, kind := range domain.EventKinds {
		events, err := r.fetch(ctx, kind, fromBlock, toBlock)
		if err != nil {
			return 0, err
		}
		all = append(all, events...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Before(&all[j])
	})

	return r.dispatch(ctx, all)
}

func (r *router) routeByKind(ctx context.Context, fromBlock, toBlock uint64) (int, error) {
	dispatched := 0
	for _, kind := range domain.EventKinds {
		events, err := r.fetch(ctx, kind, fromBlock, toBlock)
		if err != nil {
			return dispatched, err
		}

		n, err := r.dispatch(ctx, events)
		dispatched += n
		if err != nil {
			return dispatched, err
		}
	}
	return dispatched, nil
}

// dispatch hands the events to the handler in order, stopping at the first error
func (r *router) dispatch(ctx context.Context, events []domain.LedgerEvent) (int, error) {
	for i, event := range events {
		err := r.handler.Handle(ctx, event)
		r.metrics.ObserveEvent(event.Kind, err)
		if err != nil {
			return i, err
		}
	}
	return len(events), nil
}
