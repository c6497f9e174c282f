package schema

import "time"

// Collection represents the collections table, created lazily from token metadata
type Collection struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Name is the unique collection name
	Name        string    `gorm:"column:name;not null;type:text;uniqueIndex:idx_collections_name"`
	Description *string   `gorm:"column:description;type:text"`
	Image       *string   `gorm:"column:image;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:now()"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null;default:now()"`
}

func (Collection) TableName() string {
	return "collections"
}

// CollectionWithCount is a collection together with the number of tokens linked to it
type CollectionWithCount struct {
	Collection
	TokenCount int64 `gorm:"column:token_count"`
}
