package schema

import "time"

// KeyValueStore holds durable indexer state. Watermarks are stored here as decimal block
// heights under a key derived from the chain and the indexed contracts.
type KeyValueStore struct {
	Key       string    `gorm:"primaryKey;type:text"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides gorm's pluralized default
func (KeyValueStore) TableName() string {
	return "key_value_store"
}
