package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

// Store defines the interface for database operations.
// All addresses passed in must already be in canonical (lower-cased) form.
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	CursorStore

	// =============================================================================
	// Projection writes (used by the reconciliation handlers)
	// =============================================================================

	// UpsertUser creates the user if absent and returns it
	UpsertUser(ctx context.Context, address string) (*schema.User, error)
	// GetToken retrieves a token by contract and token number, nil if absent
	GetToken(ctx context.Context, contractAddress, tokenNumber string) (*schema.Token, error)
	// UpsertToken creates or updates a token, its owner, metadata and history in one transaction
	UpsertToken(ctx context.Context, input UpsertTokenInput) error
	// CreateListing supersedes any active listing of the token with a new active listing
	CreateListing(ctx context.Context, input CreateListingInput) error
	// PurchaseListing closes the active listing of the token and records the sale
	PurchaseListing(ctx context.Context, input PurchaseListingInput) error
	// DeactivateListings flips every active listing of the token inactive
	DeactivateListings(ctx context.Context, tokenID int64) (int64, error)
	// CreateOffer supersedes the offerer's active offer on the token with a new active offer
	CreateOffer(ctx context.Context, input CreateOfferInput) error
	// AcceptOffer closes all offers and listings of the token, transfers it to the offerer and records the sale
	AcceptOffer(ctx context.Context, input AcceptOfferInput) error
	// DeactivateOffers flips the offerer's active offers on the token inactive
	DeactivateOffers(ctx context.Context, tokenID int64, offererAddress string) (int64, error)

	// =============================================================================
	// Reads (used by the API)
	// =============================================================================

	// ListTokens lists tokens with owner, collection, media and active listings
	ListTokens(ctx context.Context, filter TokenFilter) ([]schema.Token, error)
	// GetTokenDetail retrieves a token with all its relations, nil if absent
	GetTokenDetail(ctx context.Context, contractAddress, tokenNumber string) (*schema.Token, error)
	// GetUser retrieves a user with owned tokens, active listings and active offers, nil if absent
	GetUser(ctx context.Context, address string) (*schema.User, error)
	// ListListings lists active listings
	ListListings(ctx context.Context, filter ListingFilter) ([]schema.Listing, error)
	// ListCollections lists collections with their token counts
	ListCollections(ctx context.Context) ([]schema.CollectionWithCount, error)
	// ListOffersReceived lists active offers on tokens owned by the address
	ListOffersReceived(ctx context.Context, ownerAddress string, limit, offset int) ([]schema.Offer, error)
	// ListOffersMade lists active offers made by the address
	ListOffersMade(ctx context.Context, offererAddress string, limit, offset int) ([]schema.Offer, error)
	// GetTokenHistory lists history events of a token, newest first, with the total count
	GetTokenHistory(ctx context.Context, tokenID int64, kinds []schema.HistoryKind, limit, offset int) ([]schema.HistoryEvent, int64, error)
	// CreateToken registers a token out of band, failing with domain.ErrTokenAlreadyExists on duplicates
	CreateToken(ctx context.Context, input CreateTokenInput) (*schema.Token, error)

	// =============================================================================
	// Metadata refresh (used by the sweeper)
	// =============================================================================

	// GetTokensForMetadataRefresh returns tokens whose metadata was never checked or was
	// last checked before checkedBefore, least recently checked first
	GetTokensForMetadataRefresh(ctx context.Context, checkedBefore time.Time, limit int) ([]schema.Token, error)
	// UpdateTokenMetadata applies refreshed metadata and stamps the check time
	UpdateTokenMetadata(ctx context.Context, input UpdateTokenMetadataInput) error
}

// MediaInput is one media entry of a token
type MediaInput struct {
	URL  string
	Type string
}

// CollectionInput identifies a collection by name
type CollectionInput struct {
	Name        string
	Description *string
	Image       *string
}

// TokenMetadataInput holds resolved metadata. Nil fields leave the stored value unchanged.
type TokenMetadataInput struct {
	Name        *string
	Description *string
	Image       *string
	// Media replaces the token's media set when non-nil
	Media      []MediaInput
	Collection *CollectionInput
	Raw        []byte
	Hash       string
}

// HistoryEventInput is a history entry sourced from one on-chain log
type HistoryEventInput struct {
	Kind        schema.HistoryKind
	FromAddress *string
	ToAddress   *string
	Price       *decimal.Decimal
	TxHash      string
	LogIndex    uint
	BlockNumber uint64
	Timestamp   time.Time
}

// UpsertTokenInput represents the data needed to create or update a token
type UpsertTokenInput struct {
	ContractAddress string
	TokenNumber     string
	OwnerAddress    string
	// TokenURI is left unchanged when nil
	TokenURI *string
	// Metadata is left unchanged when nil
	Metadata *TokenMetadataInput
	// MetadataCheckedAt is stamped when Metadata resolution was attempted
	MetadataCheckedAt *time.Time
	// History is appended when non-nil
	History *HistoryEventInput
}

// CreateListingInput represents an ItemListed event
type CreateListingInput struct {
	TokenID       int64
	SellerAddress string
	Price         decimal.Decimal
	TxHash        string
}

// PurchaseListingInput represents an ItemBought event
type PurchaseListingInput struct {
	TokenID      int64
	BuyerAddress string
	// Price of the sale, the active listing's price is used when nil
	Price       *decimal.Decimal
	TxHash      string
	LogIndex    uint
	BlockNumber uint64
	Timestamp   time.Time
}

// CreateOfferInput represents an OfferCreated event
type CreateOfferInput struct {
	TokenID        int64
	OffererAddress string
	Price          decimal.Decimal
	TxHash         string
}

// AcceptOfferInput represents an OfferAccepted event
type AcceptOfferInput struct {
	TokenID        int64
	SellerAddress  string
	OffererAddress string
	Price          decimal.Decimal
	TxHash         string
	LogIndex       uint
	BlockNumber    uint64
	Timestamp      time.Time
}

// CreateTokenInput represents a token registered through the API
type CreateTokenInput struct {
	ContractAddress string
	TokenNumber     string
	OwnerAddress    string
	TokenURI        *string
}

// UpdateTokenMetadataInput represents a metadata refresh of one token
type UpdateTokenMetadataInput struct {
	TokenID int64
	// TokenURI is stored when non-nil
	TokenURI *string
	// Metadata is nil when resolution failed; only the check time is stamped then
	Metadata  *TokenMetadataInput
	CheckedAt time.Time
}

// TokenFilter filters ListTokens
type TokenFilter struct {
	CollectionID *int64
	OwnerAddress *string
	Limit        int
	Offset       int
}

// ListingFilter filters ListListings
type ListingFilter struct {
	CollectionID  *int64
	SellerAddress *string
	Limit         int
	Offset        int
}
