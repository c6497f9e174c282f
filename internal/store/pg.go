package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

type pgStore struct {
	db      *gorm.DB
	cursors CursorStore
}

func hasDBResolver(db *gorm.DB) bool {
	return db != nil && db.Callback().Query().Get("gorm:db_resolver") != nil
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db, cursors: NewCursorStore(db)}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// RegisterReadReplica sends reads to the replica at readDSN and keeps writes on the primary
func RegisterReadReplica(db *gorm.DB, readDSN string) error {
	err := db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: []gorm.Dialector{postgres.Open(readDSN)},
		Policy:   dbresolver.RandomPolicy{},
	}))
	if err != nil {
		return fmt.Errorf("failed to register read replica: %w", err)
	}
	return nil
}

// primary routes a query to the primary when a read replica is configured.
// Handlers read what they just wrote, so they must not see replica lag.
func (s *pgStore) primary(ctx context.Context) *gorm.DB {
	db := s.db.WithContext(ctx)
	if hasDBResolver(s.db) {
		db = db.Clauses(dbresolver.Write)
	}
	return db
}

func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

// =============================================================================
// Block cursors
// =============================================================================

func (s *pgStore) GetBlockCursor(ctx context.Context, key string) (uint64, bool, error) {
	return s.cursors.GetBlockCursor(ctx, key)
}

func (s *pgStore) SetBlockCursor(ctx context.Context, key string, blockNumber uint64) error {
	return s.cursors.SetBlockCursor(ctx, key, blockNumber)
}

// =============================================================================
// Projection writes
// =============================================================================

func upsertUser(tx *gorm.DB, address string) error {
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoNothing: true,
	}).Create(&schema.User{Address: address}).Error; err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", address, err)
	}
	return nil
}

// UpsertUser creates the user if absent and returns it
func (s *pgStore) UpsertUser(ctx context.Context, address string) (*schema.User, error) {
	var user schema.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertUser(tx, address); err != nil {
			return err
		}
		return tx.Where("address = ?", address).First(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetToken retrieves a token by contract and token number
func (s *pgStore) GetToken(ctx context.Context, contractAddress, tokenNumber string) (*schema.Token, error) {
	var token schema.Token
	err := s.primary(ctx).
		Where("contract_address = ? AND token_number = ?", contractAddress, tokenNumber).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &token, nil
}

// UpsertToken creates or updates a token with its owner, metadata and history in one transaction
func (s *pgStore) UpsertToken(ctx context.Context, input UpsertTokenInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. The owner must exist before the token references it
		if err := upsertUser(tx, input.OwnerAddress); err != nil {
			return err
		}

		// 2. Insert the token or move it to the new owner
		token := schema.Token{
			ContractAddress:   input.ContractAddress,
			TokenNumber:       input.TokenNumber,
			OwnerAddress:      input.OwnerAddress,
			TokenURI:          input.TokenURI,
			MetadataCheckedAt: input.MetadataCheckedAt,
		}
		updates := clause.Set{
			{Column: clause.Column{Name: "owner_address"}, Value: gorm.Expr("EXCLUDED.owner_address")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("now()")},
		}
		if input.TokenURI != nil {
			updates = append(updates, clause.Assignment{Column: clause.Column{Name: "token_uri"}, Value: gorm.Expr("EXCLUDED.token_uri")})
		}
		if input.MetadataCheckedAt != nil {
			updates = append(updates, clause.Assignment{Column: clause.Column{Name: "metadata_checked_at"}, Value: gorm.Expr("EXCLUDED.metadata_checked_at")})
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contract_address"}, {Name: "token_number"}},
			DoUpdates: updates,
		}).Create(&token).Error; err != nil {
			return fmt.Errorf("failed to upsert token: %w", err)
		}

		// 3. Metadata, media and collection
		if input.Metadata != nil {
			if err := applyMetadata(tx, token.ID, input.Metadata); err != nil {
				return err
			}
		}

		// 4. History
		if input.History != nil {
			if err := insertHistory(tx, token.ID, *input.History); err != nil {
				return err
			}
		}

		return nil
	})
}

// applyMetadata writes the provided metadata fields, replaces media when given and links the collection
func applyMetadata(tx *gorm.DB, tokenID int64, md *TokenMetadataInput) error {
	updates := map[string]any{"updated_at": gorm.Expr("now()")}
	if md.Name != nil {
		updates["name"] = *md.Name
	}
	if md.Description != nil {
		updates["description"] = *md.Description
	}
	if md.Image != nil {
		updates["image"] = *md.Image
	}
	if len(md.Raw) > 0 {
		updates["metadata"] = datatypes.JSON(md.Raw)
		updates["metadata_hash"] = md.Hash
	}
	if md.Collection != nil && md.Collection.Name != "" {
		collectionID, err := upsertCollection(tx, md.Collection)
		if err != nil {
			return err
		}
		updates["collection_id"] = collectionID
	}

	if err := tx.Model(&schema.Token{}).Where("id = ?", tokenID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update token metadata: %w", err)
	}

	if md.Media == nil {
		return nil
	}

	// Replace the media set so stale entries do not survive a refresh
	if err := tx.Where("token_id = ?", tokenID).Delete(&schema.Media{}).Error; err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	if len(md.Media) == 0 {
		return nil
	}
	media := make([]schema.Media, 0, len(md.Media))
	for _, m := range md.Media {
		media = append(media, schema.Media{TokenID: tokenID, URL: m.URL, Type: m.Type})
	}
	if err := tx.Create(&media).Error; err != nil {
		return fmt.Errorf("failed to create media: %w", err)
	}

	return nil
}

// upsertCollection creates the collection by name, keeping existing description and image
// when the new ones are absent
func upsertCollection(tx *gorm.DB, input *CollectionInput) (int64, error) {
	collection := schema.Collection{
		Name:        input.Name,
		Description: input.Description,
		Image:       input.Image,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "description"}, Value: gorm.Expr("COALESCE(EXCLUDED.description, collections.description)")},
			{Column: clause.Column{Name: "image"}, Value: gorm.Expr("COALESCE(EXCLUDED.image, collections.image)")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("now()")},
		},
	}).Create(&collection).Error; err != nil {
		return 0, fmt.Errorf("failed to upsert collection: %w", err)
	}
	return collection.ID, nil
}

// insertHistory appends a history event, ignoring events already recorded
func insertHistory(tx *gorm.DB, tokenID int64, input HistoryEventInput) error {
	event := schema.HistoryEvent{
		TokenID:     tokenID,
		FromAddress: input.FromAddress,
		ToAddress:   input.ToAddress,
		Price:       input.Price,
		Kind:        input.Kind,
		TxHash:      input.TxHash,
		LogIndex:    input.LogIndex,
		BlockNumber: input.BlockNumber,
		Timestamp:   input.Timestamp,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "log_index"}, {Name: "kind"}},
		DoNothing: true,
	}).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to create history event: %w", err)
	}
	return nil
}

func deactivateListings(tx *gorm.DB, tokenID int64) (int64, error) {
	result := tx.Model(&schema.Listing{}).
		Where("token_id = ? AND active = ?", tokenID, true).
		Updates(map[string]any{"active": false, "updated_at": gorm.Expr("now()")})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate listings: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func deactivateOffers(tx *gorm.DB, tokenID int64, offererAddress *string) (int64, error) {
	q := tx.Model(&schema.Offer{}).Where("token_id = ? AND active = ?", tokenID, true)
	if offererAddress != nil {
		q = q.Where("offerer_address = ?", *offererAddress)
	}
	result := q.Updates(map[string]any{"active": false, "updated_at": gorm.Expr("now()")})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate offers: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CreateListing supersedes any active listing of the token with a new active listing
func (s *pgStore) CreateListing(ctx context.Context, input CreateListingInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertUser(tx, input.SellerAddress); err != nil {
			return err
		}
		if _, err := deactivateListings(tx, input.TokenID); err != nil {
			return err
		}

		listing := schema.Listing{
			TokenID:       input.TokenID,
			SellerAddress: input.SellerAddress,
			Price:         input.Price,
			Active:        true,
			TxHash:        input.TxHash,
		}
		if err := tx.Create(&listing).Error; err != nil {
			return fmt.Errorf("failed to create listing: %w", err)
		}
		return nil
	})
}

// PurchaseListing closes the active listing of the token and records the sale.
// The seller is taken from the most recent active listing, falling back to the current owner.
func (s *pgStore) PurchaseListing(ctx context.Context, input PurchaseListingInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertUser(tx, input.BuyerAddress); err != nil {
			return err
		}

		var seller string
		price := input.Price

		var listing schema.Listing
		err := tx.Where("token_id = ? AND active = ?", input.TokenID, true).Order("id DESC").First(&listing).Error
		switch {
		case err == nil:
			seller = listing.SellerAddress
			if price == nil {
				price = &listing.Price
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			var token schema.Token
			if err := tx.Select("owner_address").Where("id = ?", input.TokenID).First(&token).Error; err != nil {
				return fmt.Errorf("failed to get token owner: %w", err)
			}
			seller = token.OwnerAddress
		default:
			return fmt.Errorf("failed to get active listing: %w", err)
		}

		if _, err := deactivateListings(tx, input.TokenID); err != nil {
			return err
		}

		buyer := input.BuyerAddress
		return insertHistory(tx, input.TokenID, HistoryEventInput{
			Kind:        schema.HistoryKindSale,
			FromAddress: &seller,
			ToAddress:   &buyer,
			Price:       price,
			TxHash:      input.TxHash,
			LogIndex:    input.LogIndex,
			BlockNumber: input.BlockNumber,
			Timestamp:   input.Timestamp,
		})
	})
}

// DeactivateListings flips every active listing of the token inactive
func (s *pgStore) DeactivateListings(ctx context.Context, tokenID int64) (int64, error) {
	return deactivateListings(s.db.WithContext(ctx), tokenID)
}

// CreateOffer supersedes the offerer's active offer on the token with a new active offer
func (s *pgStore) CreateOffer(ctx context.Context, input CreateOfferInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertUser(tx, input.OffererAddress); err != nil {
			return err
		}
		if _, err := deactivateOffers(tx, input.TokenID, &input.OffererAddress); err != nil {
			return err
		}

		offer := schema.Offer{
			TokenID:        input.TokenID,
			OffererAddress: input.OffererAddress,
			Price:          input.Price,
			Active:         true,
			TxHash:         input.TxHash,
		}
		if err := tx.Create(&offer).Error; err != nil {
			return fmt.Errorf("failed to create offer: %w", err)
		}
		return nil
	})
}

// AcceptOffer closes all offers and listings of the token, transfers it to the offerer and records the sale
func (s *pgStore) AcceptOffer(ctx context.Context, input AcceptOfferInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertUser(tx, input.OffererAddress); err != nil {
			return err
		}
		if _, err := deactivateOffers(tx, input.TokenID, nil); err != nil {
			return err
		}
		if _, err := deactivateListings(tx, input.TokenID); err != nil {
			return err
		}

		if err := tx.Model(&schema.Token{}).Where("id = ?", input.TokenID).
			Updates(map[string]any{"owner_address": input.OffererAddress, "updated_at": gorm.Expr("now()")}).Error; err != nil {
			return fmt.Errorf("failed to update token owner: %w", err)
		}

		seller := input.SellerAddress
		offerer := input.OffererAddress
		price := input.Price
		return insertHistory(tx, input.TokenID, HistoryEventInput{
			Kind:        schema.HistoryKindSale,
			FromAddress: &seller,
			ToAddress:   &offerer,
			Price:       &price,
			TxHash:      input.TxHash,
			LogIndex:    input.LogIndex,
			BlockNumber: input.BlockNumber,
			Timestamp:   input.Timestamp,
		})
	})
}

// DeactivateOffers flips the offerer's active offers on the token inactive
func (s *pgStore) DeactivateOffers(ctx context.Context, tokenID int64, offererAddress string) (int64, error) {
	return deactivateOffers(s.db.WithContext(ctx), tokenID, &offererAddress)
}

// =============================================================================
// Reads
// =============================================================================

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func activeOnly(db *gorm.DB) *gorm.DB {
	return db.Where("active = ?", true).Order("id DESC")
}

// ListTokens lists tokens with owner, collection, media and active listings
func (s *pgStore) ListTokens(ctx context.Context, filter TokenFilter) ([]schema.Token, error) {
	q := s.db.WithContext(ctx).Model(&schema.Token{}).
		Preload("Owner").
		Preload("Collection").
		Preload("Media", orderByID).
		Preload("Listings", activeOnly)

	if filter.CollectionID != nil {
		q = q.Where("collection_id = ?", *filter.CollectionID)
	}
	if filter.OwnerAddress != nil {
		q = q.Where("owner_address = ?", *filter.OwnerAddress)
	}

	var tokens []schema.Token
	if err := paginate(q.Order("id ASC"), filter.Limit, filter.Offset).Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

// GetTokenDetail retrieves a token with owner, media, collection, active listings and active offers
func (s *pgStore) GetTokenDetail(ctx context.Context, contractAddress, tokenNumber string) (*schema.Token, error) {
	var token schema.Token
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Preload("Collection").
		Preload("Media", orderByID).
		Preload("Listings", activeOnly).
		Preload("Listings.Seller").
		Preload("Offers", activeOnly).
		Preload("Offers.Offerer").
		Where("contract_address = ? AND token_number = ?", contractAddress, tokenNumber).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token detail: %w", err)
	}
	return &token, nil
}

// GetUser retrieves a user with owned tokens, active listings and active offers
func (s *pgStore) GetUser(ctx context.Context, address string) (*schema.User, error) {
	var user schema.User
	err := s.db.WithContext(ctx).
		Preload("Tokens", orderByID).
		Preload("Tokens.Media", orderByID).
		Preload("Listings", activeOnly).
		Preload("Listings.Token").
		Preload("Listings.Token.Media", orderByID).
		Preload("Offers", activeOnly).
		Preload("Offers.Token").
		Preload("Offers.Token.Media", orderByID).
		Where("address = ?", address).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListListings lists active listings, newest first
func (s *pgStore) ListListings(ctx context.Context, filter ListingFilter) ([]schema.Listing, error) {
	q := s.db.WithContext(ctx).Model(&schema.Listing{}).
		Select("listings.*").
		Preload("Seller").
		Preload("Token").
		Preload("Token.Collection").
		Preload("Token.Media", orderByID).
		Where("listings.active = ?", true)

	if filter.CollectionID != nil {
		q = q.Joins("JOIN tokens ON tokens.id = listings.token_id").
			Where("tokens.collection_id = ?", *filter.CollectionID)
	}
	if filter.SellerAddress != nil {
		q = q.Where("listings.seller_address = ?", *filter.SellerAddress)
	}

	var listings []schema.Listing
	if err := paginate(q.Order("listings.id DESC"), filter.Limit, filter.Offset).Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

// ListCollections lists collections with their token counts
func (s *pgStore) ListCollections(ctx context.Context) ([]schema.CollectionWithCount, error) {
	var collections []schema.CollectionWithCount
	err := s.db.WithContext(ctx).Model(&schema.Collection{}).
		Select("collections.*, COUNT(tokens.id) AS token_count").
		Joins("LEFT JOIN tokens ON tokens.collection_id = collections.id").
		Group("collections.id").
		Order("collections.name ASC").
		Scan(&collections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return collections, nil
}

// ListOffersReceived lists active offers on tokens currently owned by the address
func (s *pgStore) ListOffersReceived(ctx context.Context, ownerAddress string, limit, offset int) ([]schema.Offer, error) {
	q := s.db.WithContext(ctx).Model(&schema.Offer{}).
		Select("offers.*").
		Joins("JOIN tokens ON tokens.id = offers.token_id").
		Preload("Offerer").
		Preload("Token").
		Preload("Token.Media", orderByID).
		Where("tokens.owner_address = ? AND offers.active = ?", ownerAddress, true).
		Order("offers.id DESC")

	var offers []schema.Offer
	if err := paginate(q, limit, offset).Find(&offers).Error; err != nil {
		return nil, fmt.Errorf("failed to list received offers: %w", err)
	}
	return offers, nil
}

// ListOffersMade lists active offers made by the address
func (s *pgStore) ListOffersMade(ctx context.Context, offererAddress string, limit, offset int) ([]schema.Offer, error) {
	q := s.db.WithContext(ctx).Model(&schema.Offer{}).
		Preload("Token").
		Preload("Token.Media", orderByID).
		Where("offerer_address = ? AND active = ?", offererAddress, true).
		Order("id DESC")

	var offers []schema.Offer
	if err := paginate(q, limit, offset).Find(&offers).Error; err != nil {
		return nil, fmt.Errorf("failed to list made offers: %w", err)
	}
	return offers, nil
}

// GetTokenHistory lists history events of a token, newest first, with the total count
func (s *pgStore) GetTokenHistory(ctx context.Context, tokenID int64, kinds []schema.HistoryKind, limit, offset int) ([]schema.HistoryEvent, int64, error) {
	base := s.db.WithContext(ctx).Model(&schema.HistoryEvent{}).Where("token_id = ?", tokenID)
	if len(kinds) > 0 {
		base = base.Where("kind IN ?", kinds)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count history events: %w", err)
	}

	var events []schema.HistoryEvent
	if err := paginate(base.Order("block_number DESC, log_index DESC"), limit, offset).Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get history events: %w", err)
	}

	return events, total, nil
}

// CreateToken registers a token out of band
func (s *pgStore) CreateToken(ctx context.Context, input CreateTokenInput) (*schema.Token, error) {
	token := schema.Token{
		ContractAddress: input.ContractAddress,
		TokenNumber:     input.TokenNumber,
		OwnerAddress:    input.OwnerAddress,
		TokenURI:        input.TokenURI,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertUser(tx, input.OwnerAddress); err != nil {
			return err
		}

		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contract_address"}, {Name: "token_number"}},
			DoNothing: true,
		}).Create(&token)
		if result.Error != nil {
			return fmt.Errorf("failed to create token: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrTokenAlreadyExists
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &token, nil
}

// =============================================================================
// Metadata refresh
// =============================================================================

// GetTokensForMetadataRefresh returns tokens due for a metadata refresh, least recently checked first
func (s *pgStore) GetTokensForMetadataRefresh(ctx context.Context, checkedBefore time.Time, limit int) ([]schema.Token, error) {
	var tokens []schema.Token
	q := s.db.WithContext(ctx).
		Where("metadata_checked_at IS NULL OR metadata_checked_at < ?", checkedBefore).
		Order("metadata_checked_at ASC NULLS FIRST, id ASC")

	if err := paginate(q, limit, 0).Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to get tokens for metadata refresh: %w", err)
	}
	return tokens, nil
}

// UpdateTokenMetadata applies refreshed metadata and stamps the check time
func (s *pgStore) UpdateTokenMetadata(ctx context.Context, input UpdateTokenMetadataInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.Metadata != nil {
			if err := applyMetadata(tx, input.TokenID, input.Metadata); err != nil {
				return err
			}
		}

		updates := map[string]any{"metadata_checked_at": input.CheckedAt}
		if input.TokenURI != nil {
			updates["token_uri"] = *input.TokenURI
		}
		if err := tx.Model(&schema.Token{}).Where("id = ?", input.TokenID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to stamp metadata check: %w", err)
		}
		return nil
	})
}
