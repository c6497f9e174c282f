package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing represents the listings table. Rows are never deleted; superseded,
// bought and canceled listings are flipped inactive. At most one row per token
// is active at a time.
type Listing struct {
	ID      int64 `gorm:"column:id;primaryKey;autoIncrement"`
	TokenID int64 `gorm:"column:token_id;not null;index:idx_listings_token_active,priority:1"`
	// SellerAddress is the lower-cased address of the seller
	SellerAddress string `gorm:"column:seller_address;not null;type:text;index:idx_listings_seller_address"`
	// Price in ether units
	Price  decimal.Decimal `gorm:"column:price;not null;type:numeric(78,18)"`
	Active bool            `gorm:"column:active;not null;default:true;index:idx_listings_token_active,priority:2"`
	// TxHash of the ItemListed event that created the listing
	TxHash    string    `gorm:"column:tx_hash;not null;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()"`

	// Associations
	Token  *Token `gorm:"foreignKey:TokenID"`
	Seller *User  `gorm:"foreignKey:SellerAddress;references:Address"`
}

func (Listing) TableName() string {
	return "listings"
}
