package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryKind is the kind of a token history entry
type HistoryKind string

const (
	HistoryKindMint     HistoryKind = "MINT"
	HistoryKindTransfer HistoryKind = "TRANSFER"
	HistoryKindSale     HistoryKind = "SALE"
)

// Valid reports whether the kind is a known history kind
func (k HistoryKind) Valid() bool {
	switch k {
	case HistoryKindMint, HistoryKindTransfer, HistoryKindSale:
		return true
	}
	return false
}

// HistoryEvent represents the history_events table - append-only ownership and sale history.
// Rows are unique per (tx_hash, log_index, kind) so replaying a block range adds nothing.
type HistoryEvent struct {
	ID      int64 `gorm:"column:id;primaryKey;autoIncrement"`
	TokenID int64 `gorm:"column:token_id;not null;index:idx_history_events_token_id"`
	// FromAddress is nil for mints
	FromAddress *string `gorm:"column:from_address;type:text"`
	ToAddress   *string `gorm:"column:to_address;type:text"`
	// Price is set for sales
	Price       *decimal.Decimal `gorm:"column:price;type:numeric(78,18)"`
	Kind        HistoryKind      `gorm:"column:kind;not null;type:text;uniqueIndex:idx_history_events_source,priority:3"`
	TxHash      string           `gorm:"column:tx_hash;not null;type:text;uniqueIndex:idx_history_events_source,priority:1"`
	LogIndex    uint             `gorm:"column:log_index;not null;uniqueIndex:idx_history_events_source,priority:2"`
	BlockNumber uint64           `gorm:"column:block_number;not null"`
	// Timestamp is the block time of the source event
	Timestamp time.Time `gorm:"column:timestamp;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
}

func (HistoryEvent) TableName() string {
	return "history_events"
}
