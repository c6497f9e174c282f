package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Offer represents the offers table. Several offers may be active on one token,
// but at most one per offerer.
type Offer struct {
	ID      int64 `gorm:"column:id;primaryKey;autoIncrement"`
	TokenID int64 `gorm:"column:token_id;not null;index:idx_offers_token_active,priority:1"`
	// OffererAddress is the lower-cased address of the offerer
	OffererAddress string `gorm:"column:offerer_address;not null;type:text;index:idx_offers_offerer_address"`
	// Price in ether units
	Price  decimal.Decimal `gorm:"column:price;not null;type:numeric(78,18)"`
	Active bool            `gorm:"column:active;not null;default:true;index:idx_offers_token_active,priority:2"`
	// TxHash of the OfferCreated event that created the offer
	TxHash    string    `gorm:"column:tx_hash;not null;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()"`

	// Associations
	Token   *Token `gorm:"foreignKey:TokenID"`
	Offerer *User  `gorm:"foreignKey:OffererAddress;references:Address"`
}

func (Offer) TableName() string {
	return "offers"
}
