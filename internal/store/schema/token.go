package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Token represents the tokens table - one row per (contract, token number) of the tracked collection
type Token struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// ContractAddress is the lower-cased address of the token contract
	ContractAddress string `gorm:"column:contract_address;not null;type:text;uniqueIndex:idx_tokens_contract_number,priority:1"`
	// TokenNumber is the token ID within the contract (string to support very large numbers)
	TokenNumber string `gorm:"column:token_number;not null;type:text;uniqueIndex:idx_tokens_contract_number,priority:2"`
	// OwnerAddress is the lower-cased address of the current owner
	OwnerAddress string `gorm:"column:owner_address;not null;type:text;index:idx_tokens_owner_address"`
	// TokenURI is the tokenURI as returned by the contract
	TokenURI *string `gorm:"column:token_uri;type:text"`
	Name     *string `gorm:"column:name;type:text"`
	// Description of the token from its metadata
	Description *string `gorm:"column:description;type:text"`
	Image       *string `gorm:"column:image;type:text"`
	// CollectionID references the collection declared by the token metadata
	CollectionID *int64 `gorm:"column:collection_id;index:idx_tokens_collection_id"`
	// Metadata is the last fetched metadata document
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	// MetadataHash is the hex sha256 of the canonicalized metadata document
	MetadataHash *string `gorm:"column:metadata_hash;type:text"`
	// MetadataCheckedAt is when the metadata was last fetched, successfully or not
	MetadataCheckedAt *time.Time `gorm:"column:metadata_checked_at;index:idx_tokens_metadata_checked_at"`
	// CreatedAt is the timestamp when this record was first indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
	// UpdatedAt is the timestamp of the last change
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()"`

	// Associations
	Owner      *User       `gorm:"foreignKey:OwnerAddress;references:Address"`
	Collection *Collection `gorm:"foreignKey:CollectionID"`
	Media      []Media     `gorm:"foreignKey:TokenID;constraint:OnDelete:CASCADE"`
	Listings   []Listing   `gorm:"foreignKey:TokenID;constraint:OnDelete:CASCADE"`
	Offers     []Offer     `gorm:"foreignKey:TokenID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Token model
func (Token) TableName() string {
	return "tokens"
}
