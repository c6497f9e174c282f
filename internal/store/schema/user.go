package schema

import "time"

// User represents the users table. A user is created the first time an address
// shows up as an owner, seller, buyer or offerer.
type User struct {
	// Address is the lower-cased blockchain address
	Address   string    `gorm:"column:address;primaryKey;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`

	// Associations
	Tokens   []Token   `gorm:"foreignKey:OwnerAddress;references:Address"`
	Listings []Listing `gorm:"foreignKey:SellerAddress;references:Address"`
	Offers   []Offer   `gorm:"foreignKey:OffererAddress;references:Address"`
}

func (User) TableName() string {
	return "users"
}
