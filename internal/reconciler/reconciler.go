package reconciler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/feral-file/marketplace-indexer/internal/adapter"
	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/logger"
	"github.com/feral-file/marketplace-indexer/internal/metadata"
	"github.com/feral-file/marketplace-indexer/internal/providers/ethereum"
	"github.com/feral-file/marketplace-indexer/internal/store"
	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

// Handler applies a decoded ledger event to the projection
//
//go:generate mockgen -source=reconciler.go -destination=../mocks/handler.go -package=mocks -mock_names=Handler=MockHandler
type Handler interface {
	// Handle applies the event. Only store failures are returned; events referring to
	// unknown tokens and malformed events are logged and dropped.
	Handle(ctx context.Context, event domain.LedgerEvent) error
}

type handlerFunc func(ctx context.Context, event domain.LedgerEvent) error

type reconciler struct {
	store    store.Store
	ledger   ethereum.LedgerClient
	resolver metadata.Resolver
	clock    adapter.Clock
	handlers map[domain.EventKind]handlerFunc
}

// New creates a Handler that dispatches each event to the handler of its kind
func New(st store.Store, ledger ethereum.LedgerClient, resolver metadata.Resolver, clock adapter.Clock) Handler {
	r := &reconciler{
		store:    st,
		ledger:   ledger,
		resolver: resolver,
		clock:    clock,
	}
	r.handlers = map[domain.EventKind]handlerFunc{
		domain.EventKindTransfer:      r.handleTransfer,
		domain.EventKindItemListed:    r.handleItemListed,
		domain.EventKindItemBought:    r.handleItemBought,
		domain.EventKindItemCanceled:  r.handleItemCanceled,
		domain.EventKindOfferCreated:  r.handleOfferCreated,
		domain.EventKindOfferAccepted: r.handleOfferAccepted,
		domain.EventKindOfferCanceled: r.handleOfferCanceled,
	}
	return r
}

// Handle validates and canonicalizes the event, then applies it
func (r *reconciler) Handle(ctx context.Context, event domain.LedgerEvent) error {
	event = canonicalize(event)

	if err := event.Validate(); err != nil {
		logger.WarnCtx(ctx, "Dropping invalid event", append(eventFields(event), zap.Error(err))...)
		return nil
	}

	handle, ok := r.handlers[event.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownEventKind, event.Kind)
	}

	logger.DebugCtx(ctx, "Handling event", eventFields(event)...)
	if err := handle(ctx, event); err != nil {
		return fmt.Errorf("failed to apply %s at block %d log %d: %w", event.Kind, event.BlockNumber, event.LogIndex, err)
	}
	return nil
}

func canonicalize(event domain.LedgerEvent) domain.LedgerEvent {
	event.ContractAddress = domain.NormalizeAddress(event.ContractAddress)
	event.NFTAddress = domain.NormalizeAddress(event.NFTAddress)
	event.From = domain.NormalizeAddress(event.From)
	event.To = domain.NormalizeAddress(event.To)
	event.Seller = domain.NormalizeAddress(event.Seller)
	event.Buyer = domain.NormalizeAddress(event.Buyer)
	event.Offerer = domain.NormalizeAddress(event.Offerer)
	return event
}

func eventFields(event domain.LedgerEvent) []zap.Field {
	return []zap.Field{
		zap.String("kind", string(event.Kind)),
		zap.String("contract", event.NFTAddress),
		zap.String("token_number", event.TokenNumber),
		zap.String("tx_hash", event.TxHash),
		zap.Uint64("block", event.BlockNumber),
		zap.Uint("log_index", event.LogIndex),
	}
}

// lookupToken returns the referenced token, or nil after logging when it is not indexed yet
func (r *reconciler) lookupToken(ctx context.Context, event domain.LedgerEvent) (*schema.Token, error) {
	token, err := r.store.GetToken(ctx, event.NFTAddress, event.TokenNumber)
	if err != nil {
		return nil, err
	}
	if token == nil {
		logger.WarnCtx(ctx, "Token not indexed yet, dropping event", eventFields(event)...)
	}
	return token, nil
}

// MetadataInput converts resolved metadata into its store representation
func MetadataInput(md *metadata.Metadata) *store.TokenMetadataInput {
	if md == nil {
		return nil
	}

	input := &store.TokenMetadataInput{
		Name:        md.Name,
		Description: md.Description,
		Image:       md.Image,
		Raw:         md.Raw,
		Hash:        md.Hash,
	}
	if md.Media != nil {
		input.Media = make([]store.MediaInput, 0, len(md.Media))
		for _, m := range md.Media {
			input.Media = append(input.Media, store.MediaInput{URL: m.URL, Type: m.Type})
		}
	}
	if md.Collection != nil {
		input.Collection = &store.CollectionInput{
			Name:        md.Collection.Name,
			Description: md.Collection.Description,
			Image:       md.Collection.Image,
		}
	}
	return input
}
