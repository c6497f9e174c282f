package reconciler

import (
	"context"

	"go.uber.org/zap"

	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/logger"
	"github.com/feral-file/marketplace-indexer/internal/store"
	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

// handleTransfer moves the token to the receiver. Unknown tokens and mints also get
// their tokenURI and metadata (re)populated.
func (r *reconciler) handleTransfer(ctx context.Context, event domain.LedgerEvent) error {
	existing, err := r.store.GetToken(ctx, event.NFTAddress, event.TokenNumber)
	if err != nil {
		return err
	}

	kind := schema.HistoryKindTransfer
	if event.IsMint() {
		kind = schema.HistoryKindMint
	}
	from := event.From
	to := event.To
	input := store.UpsertTokenInput{
		ContractAddress: event.NFTAddress,
		TokenNumber:     event.TokenNumber,
		OwnerAddress:    event.To,
		History: &store.HistoryEventInput{
			Kind:        kind,
			FromAddress: &from,
			ToAddress:   &to,
			TxHash:      event.TxHash,
			LogIndex:    event.LogIndex,
			BlockNumber: event.BlockNumber,
			Timestamp:   event.Timestamp,
		},
	}

	if existing == nil || event.IsMint() {
		tokenURI := r.fetchTokenURI(ctx, event)
		if tokenURI != "" {
			input.TokenURI = &tokenURI
			if md := r.resolver.Resolve(ctx, tokenURI); md != nil {
				now := r.clock.Now()
				input.Metadata = MetadataInput(md)
				input.MetadataCheckedAt = &now
			} else {
				logger.WarnCtx(ctx, "Metadata unavailable, token left for the sweeper",
					append(eventFields(event), zap.String("token_uri", tokenURI))...)
			}
		}
	}

	return r.store.UpsertToken(ctx, input)
}

// fetchTokenURI reads the tokenURI from the token contract, empty when the call fails
func (r *reconciler) fetchTokenURI(ctx context.Context, event domain.LedgerEvent) string {
	tokenURI, err := r.ledger.TokenURI(ctx, event.NFTAddress, event.TokenNumber)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to read tokenURI", append(eventFields(event), zap.Error(err))...)
		return ""
	}
	return tokenURI
}

func (r *reconciler) handleItemListed(ctx context.Context, event domain.LedgerEvent) error {
	token, err := r.lookupToken(ctx, event)
	if err != nil || token == nil {
		return err
	}

	return r.store.CreateListing(ctx, store.CreateListingInput{
		TokenID:       token.ID,
		SellerAddress: event.Seller,
		Price:         domain.FormatPrice(event.Price),
		TxHash:        event.TxHash,
	})
}

// handleItemBought closes the listing and records the sale. Ownership moves with the
// accompanying Transfer event.
func (r *reconciler) handleItemBought(ctx context.Context, event domain.LedgerEvent) error {
	token, err := r.lookupToken(ctx, event)
	if err != nil || token == nil {
		return err
	}

	input := store.PurchaseListingInput{
		TokenID:      token.ID,
		BuyerAddress: event.Buyer,
		TxHash:       event.TxHash,
		LogIndex:     event.LogIndex,
		BlockNumber:  event.BlockNumber,
		Timestamp:    event.Timestamp,
	}
	if event.Price != nil {
		price := domain.FormatPrice(event.Price)
		input.Price = &price
	}
	return r.store.PurchaseListing(ctx, input)
}

func (r *reconciler) handleItemCanceled(ctx context.Context, event domain.LedgerEvent) error {
	token, err := r.lookupToken(ctx, event)
	if err != nil || token == nil {
		return err
	}

	n, err := r.store.DeactivateListings(ctx, token.ID)
	if err != nil {
		return err
	}
	logger.DebugCtx(ctx, "Listings canceled", append(eventFields(event), zap.Int64("count", n))...)
	return nil
}

func (r *reconciler) handleOfferCreated(ctx context.Context, event domain.LedgerEvent) error {
	token, err := r.lookupToken(ctx, event)
	if err != nil || token == nil {
		return err
	}

	return r.store.CreateOffer(ctx, store.CreateOfferInput{
		TokenID:        token.ID,
		OffererAddress: event.Offerer,
		Price:          domain.FormatPrice(event.Price),
		TxHash:         event.TxHash,
	})
}

func (r *reconciler) handleOfferAccepted(ctx context.Context, event domain.LedgerEvent) error {
	token, err := r.lookupToken(ctx, event)
	if err != nil || token == nil {
		return err
	}

	return r.store.AcceptOffer(ctx, store.AcceptOfferInput{
		TokenID:        token.ID,
		SellerAddress:  event.Seller,
		OffererAddress: event.Offerer,
		Price:          domain.FormatPrice(event.Price),
		TxHash:         event.TxHash,
		LogIndex:       event.LogIndex,
		BlockNumber:    event.BlockNumber,
		Timestamp:      event.Timestamp,
	})
}

func (r *reconciler) handleOfferCanceled(ctx context.Context, event domain.LedgerEvent) error {
	token, err := r.lookupToken(ctx, event)
	if err != nil || token == nil {
		return err
	}

	n, err := r.store.DeactivateOffers(ctx, token.ID, event.Offerer)
	if err != nil {
		return err
	}
	logger.DebugCtx(ctx, "Offers canceled", append(eventFields(event), zap.Int64("count", n))...)
	return nil
}
