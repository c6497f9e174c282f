package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

// UserResponse represents a user
type UserResponse struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// UserDetailResponse represents a user with its tokens and active market entries
type UserDetailResponse struct {
	UserResponse
	NFTs     []TokenResponse   `json:"nfts"`
	Listings []ListingResponse `json:"listings"`
	Offers   []OfferResponse   `json:"offers"`
}

// MediaResponse represents one media entry of a token
type MediaResponse struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// CollectionResponse represents a collection
type CollectionResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Image       *string   `json:"image,omitempty"`
	NFTCount    *int64    `json:"nft_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TokenResponse represents a token with whatever relations were loaded
type TokenResponse struct {
	ID                int64           `json:"id"`
	ContractAddress   string          `json:"contract_address"`
	TokenNumber       string          `json:"token_number"`
	OwnerAddress      string          `json:"owner_address"`
	TokenURI          *string         `json:"token_uri,omitempty"`
	Name              *string         `json:"name,omitempty"`
	Description       *string         `json:"description,omitempty"`
	Image             *string         `json:"image,omitempty"`
	CollectionID      *int64          `json:"collection_id,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	MetadataHash      *string         `json:"metadata_hash,omitempty"`
	MetadataCheckedAt *time.Time      `json:"metadata_checked_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	Owner      *UserResponse       `json:"owner,omitempty"`
	Collection *CollectionResponse `json:"collection,omitempty"`
	Media      []MediaResponse     `json:"media,omitempty"`
	Listings   []ListingResponse   `json:"listings,omitempty"`
	Offers     []OfferResponse     `json:"offers,omitempty"`
}

// ListingResponse represents a listing
type ListingResponse struct {
	ID            int64           `json:"id"`
	TokenID       int64           `json:"token_id"`
	SellerAddress string          `json:"seller_address"`
	Price         decimal.Decimal `json:"price"`
	Active        bool            `json:"active"`
	TxHash        string          `json:"tx_hash"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Seller *UserResponse  `json:"seller,omitempty"`
	NFT    *TokenResponse `json:"nft,omitempty"`
}

// OfferResponse represents an offer
type OfferResponse struct {
	ID             int64           `json:"id"`
	TokenID        int64           `json:"token_id"`
	OffererAddress string          `json:"offerer_address"`
	Price          decimal.Decimal `json:"price"`
	Active         bool            `json:"active"`
	TxHash         string          `json:"tx_hash"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Offerer *UserResponse  `json:"offerer,omitempty"`
	NFT     *TokenResponse `json:"nft,omitempty"`
}

// HistoryEventResponse represents one ownership or sale history entry
type HistoryEventResponse struct {
	ID          int64              `json:"id"`
	Kind        schema.HistoryKind `json:"type"`
	FromAddress *string            `json:"from_address,omitempty"`
	ToAddress   *string            `json:"to_address,omitempty"`
	Price       *decimal.Decimal   `json:"price,omitempty"`
	TxHash      string             `json:"tx_hash"`
	LogIndex    uint               `json:"log_index"`
	BlockNumber uint64             `json:"block_number"`
	Timestamp   time.Time          `json:"timestamp"`
}

// TokenListResponse represents a page of tokens
type TokenListResponse struct {
	NFTs   []TokenResponse `json:"nfts"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ListingListResponse represents a page of active listings
type ListingListResponse struct {
	Listings []ListingResponse `json:"listings"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// OfferListResponse represents a page of active offers
type OfferListResponse struct {
	Offers []OfferResponse `json:"offers"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// CollectionListResponse represents all collections
type CollectionListResponse struct {
	Collections []CollectionResponse `json:"collections"`
}

// HistoryListResponse represents a page of token history, newest first
type HistoryListResponse struct {
	Events []HistoryEventResponse `json:"events"`
	Total  int64                  `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}
