package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/feral-file/marketplace-indexer/internal/api/shared/dto"
	apierrors "github.com/feral-file/marketplace-indexer/internal/api/shared/errors"
	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/store"
	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

// Executor is the interface for the API executor
//
//go:generate mockgen -source=executor.go -destination=../../../mocks/api_executor.go -package=mocks -mock_names=Executor=MockAPIExecutor
type Executor interface {
	// ListTokens lists tokens, optionally restricted to a collection and/or an owner
	ListTokens(ctx context.Context, collectionID *int64, owner *string, limit, offset int) (*dto.TokenListResponse, error)

	// GetToken retrieves a token with media, collection, active listings and active offers.
	// It returns nil when the token is unknown.
	GetToken(ctx context.Context, contractAddress, tokenNumber string) (*dto.TokenResponse, error)

	// GetTokenHistory retrieves a page of the token's history, newest first.
	// It returns nil when the token is unknown.
	GetTokenHistory(ctx context.Context, contractAddress, tokenNumber string, kinds []schema.HistoryKind, limit, offset int) (*dto.HistoryListResponse, error)

	// ListListings lists active listings
	ListListings(ctx context.Context, collectionID *int64, seller *string, limit, offset int) (*dto.ListingListResponse, error)

	// ListCollections lists collections with their token counts
	ListCollections(ctx context.Context) (*dto.CollectionListResponse, error)

	// ListOffersReceived lists active offers on tokens owned by address
	ListOffersReceived(ctx context.Context, address string, limit, offset int) (*dto.OfferListResponse, error)

	// ListOffersMade lists active offers made by address
	ListOffersMade(ctx context.Context, address string, limit, offset int) (*dto.OfferListResponse, error)

	// GetUser retrieves a user with owned tokens and active market entries.
	// It returns nil when the user is unknown.
	GetUser(ctx context.Context, address string) (*dto.UserDetailResponse, error)

	// CreateUser registers an address, returning the existing user when already known
	CreateUser(ctx context.Context, address string) (*dto.UserResponse, error)

	// CreateToken registers a token out of band
	CreateToken(ctx context.Context, req dto.CreateTokenRequest) (*dto.TokenResponse, error)
}

type executor struct {
	store store.Store
}

func NewExecutor(store store.Store) Executor {
	return &executor{store: store}
}

func (e *executor) ListTokens(ctx context.Context, collectionID *int64, owner *string, limit, offset int) (*dto.TokenListResponse, error) {
	tokens, err := e.store.ListTokens(ctx, store.TokenFilter{
		CollectionID: collectionID,
		OwnerAddress: owner,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to list tokens: %v", err))
	}

	resp := &dto.TokenListResponse{
		NFTs:   make([]dto.TokenResponse, len(tokens)),
		Limit:  limit,
		Offset: offset,
	}
	for i := range tokens {
		resp.NFTs[i] = *dto.MapTokenToDTO(&tokens[i])
	}
	return resp, nil
}

func (e *executor) GetToken(ctx context.Context, contractAddress, tokenNumber string) (*dto.TokenResponse, error) {
	token, err := e.store.GetTokenDetail(ctx, contractAddress, tokenNumber)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get token: %v", err))
	}
	if token == nil {
		return nil, nil
	}
	return dto.MapTokenToDTO(token), nil
}

func (e *executor) GetTokenHistory(ctx context.Context, contractAddress, tokenNumber string, kinds []schema.HistoryKind, limit, offset int) (*dto.HistoryListResponse, error) {
	token, err := e.store.GetToken(ctx, contractAddress, tokenNumber)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get token: %v", err))
	}
	if token == nil {
		return nil, nil
	}

	events, total, err := e.store.GetTokenHistory(ctx, token.ID, kinds, limit, offset)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get token history: %v", err))
	}

	resp := &dto.HistoryListResponse{
		Events: make([]dto.HistoryEventResponse, len(events)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for i := range events {
		resp.Events[i] = *dto.MapHistoryEventToDTO(&events[i])
	}
	return resp, nil
}

func (e *executor) ListListings(ctx context.Context, collectionID *int64, seller *string, limit, offset int) (*dto.ListingListResponse, error) {
	listings, err := e.store.ListListings(ctx, store.ListingFilter{
		CollectionID:  collectionID,
		SellerAddress: seller,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to list listings: %v", err))
	}

	resp := &dto.ListingListResponse{
		Listings: make([]dto.ListingResponse, len(listings)),
		Limit:    limit,
		Offset:   offset,
	}
	for i := range listings {
		resp.Listings[i] = *dto.MapListingToDTO(&listings[i])
	}
	return resp, nil
}

func (e *executor) ListCollections(ctx context.Context) (*dto.CollectionListResponse, error) {
	collections, err := e.store.ListCollections(ctx)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to list collections: %v", err))
	}

	resp := &dto.CollectionListResponse{
		Collections: make([]dto.CollectionResponse, len(collections)),
	}
	for i := range collections {
		resp.Collections[i] = *dto.MapCollectionWithCountToDTO(&collections[i])
	}
	return resp, nil
}

func (e *executor) ListOffersReceived(ctx context.Context, address string, limit, offset int) (*dto.OfferListResponse, error) {
	offers, err := e.store.ListOffersReceived(ctx, address, limit, offset)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to list received offers: %v", err))
	}
	return mapOffers(offers, limit, offset), nil
}

func (e *executor) ListOffersMade(ctx context.Context, address string, limit, offset int) (*dto.OfferListResponse, error) {
	offers, err := e.store.ListOffersMade(ctx, address, limit, offset)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to list made offers: %v", err))
	}
	return mapOffers(offers, limit, offset), nil
}

func mapOffers(offers []schema.Offer, limit, offset int) *dto.OfferListResponse {
	resp := &dto.OfferListResponse{
		Offers: make([]dto.OfferResponse, len(offers)),
		Limit:  limit,
		Offset: offset,
	}
	for i := range offers {
		resp.Offers[i] = *dto.MapOfferToDTO(&offers[i])
	}
	return resp
}

func (e *executor) GetUser(ctx context.Context, address string) (*dto.UserDetailResponse, error) {
	user, err := e.store.GetUser(ctx, address)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get user: %v", err))
	}
	if user == nil {
		return nil, nil
	}
	return dto.MapUserDetailToDTO(user), nil
}

func (e *executor) CreateUser(ctx context.Context, address string) (*dto.UserResponse, error) {
	user, err := e.store.UpsertUser(ctx, address)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to create user: %v", err))
	}
	return dto.MapUserToDTO(user), nil
}

func (e *executor) CreateToken(ctx context.Context, req dto.CreateTokenRequest) (*dto.TokenResponse, error) {
	token, err := e.store.CreateToken(ctx, store.CreateTokenInput{
		ContractAddress: req.ContractAddress,
		TokenNumber:     req.TokenNumber,
		OwnerAddress:    req.OwnerAddress,
		TokenURI:        req.TokenURI,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTokenAlreadyExists) {
			return nil, apierrors.NewConflictError("Token already exists",
				fmt.Sprintf("%s/%s", req.ContractAddress, req.TokenNumber))
		}
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to create token: %v", err))
	}
	return dto.MapTokenToDTO(token), nil
}
