package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

// CursorStore defines the interface for storing and retrieving block cursors
//
//go:generate mockgen -source=cursor_store.go -destination=../mocks/cursor_store.go -package=mocks -mock_names=CursorStore=MockCursorStore
type CursorStore interface {
	// GetBlockCursor retrieves the last processed block number stored under key.
	// ok is false when no cursor has been stored yet.
	GetBlockCursor(ctx context.Context, key string) (blockNumber uint64, ok bool, err error)
	// SetBlockCursor stores the last processed block number under key
	SetBlockCursor(ctx context.Context, key string, blockNumber uint64) error
}

type cursorStore struct {
	db *gorm.DB
}

// NewCursorStore creates a new cursor store
func NewCursorStore(db *gorm.DB) CursorStore {
	return &cursorStore{db: db}
}

func cursorKey(key string) string {
	return fmt.Sprintf("block_cursor:%s", key)
}

// GetBlockCursor retrieves the last processed block number stored under key
func (s *cursorStore) GetBlockCursor(ctx context.Context, key string) (uint64, bool, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", cursorKey(key)).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get block cursor: %w", err)
	}

	blockNumber, err := strconv.ParseUint(kv.Value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse block cursor: %w", err)
	}

	return blockNumber, true, nil
}

// SetBlockCursor stores the last processed block number under key
func (s *cursorStore) SetBlockCursor(ctx context.Context, key string, blockNumber uint64) error {
	kv := schema.KeyValueStore{
		Key:   cursorKey(key),
		Value: strconv.FormatUint(blockNumber, 10),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set block cursor: %w", err)
	}

	return nil
}
