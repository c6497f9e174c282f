package schema

import "time"

// Media represents the media table. A token's media rows are replaced as a whole
// whenever fresh metadata carries a media array.
type Media struct {
	ID      int64 `gorm:"column:id;primaryKey;autoIncrement"`
	TokenID int64 `gorm:"column:token_id;not null;index:idx_media_token_id"`
	// URL is the media URL as found in the metadata
	URL string `gorm:"column:url;not null;type:text"`
	// Type is the MIME type, empty when unknown
	Type      string    `gorm:"column:type;not null;type:text;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
}

func (Media) TableName() string {
	return "media"
}
