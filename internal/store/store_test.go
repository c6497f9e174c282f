package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

// StoreTestSuite provides the interface for running store tests against different implementations
type StoreTestSuite struct {
	Store Store
	// InitDB should be called before each test to initialize the database
	InitDB func(t *testing.T) Store
	// CleanupDB should be called after each test to clean up the database
	CleanupDB func(t *testing.T)
}

const (
	testContract = "0x1111111111111111111111111111111111111111"
	testAlice    = "0x000000000000000000000000000000000000a11c"
	testBob      = "0x0000000000000000000000000000000000000b0b"
	testCarol    = "0x00000000000000000000000000000000000ca501"
)

// =============================================================================
// Test Data Builders
// =============================================================================

func stringPtr(s string) *string {
	return &s
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// buildTestMint creates a mint of tokenNum to owner with metadata
func buildTestMint(tokenNum, owner string) UpsertTokenInput {
	zero := domain.ETHEREUM_ZERO_ADDRESS
	return UpsertTokenInput{
		ContractAddress: testContract,
		TokenNumber:     tokenNum,
		OwnerAddress:    owner,
		TokenURI:        stringPtr(fmt.Sprintf("ipfs://bafymeta/%s.json", tokenNum)),
		Metadata: &TokenMetadataInput{
			Name:        stringPtr("Token " + tokenNum),
			Description: stringPtr("description " + tokenNum),
			Image:       stringPtr("ipfs://bafyimage/" + tokenNum),
			Media:       []MediaInput{{URL: "ipfs://bafyvideo/" + tokenNum, Type: "video/mp4"}},
			Collection:  &CollectionInput{Name: "Genesis"},
			Raw:         []byte(fmt.Sprintf(`{"name":"Token %s"}`, tokenNum)),
			Hash:        "hash-" + tokenNum,
		},
		History: &HistoryEventInput{
			Kind:        schema.HistoryKindMint,
			FromAddress: &zero,
			ToAddress:   stringPtr(owner),
			TxHash:      "0xmint" + tokenNum,
			LogIndex:    0,
			BlockNumber: 100,
			Timestamp:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

// mintTestToken mints a token and returns it
func mintTestToken(t *testing.T, store Store, tokenNum, owner string) *schema.Token {
	ctx := context.Background()
	require.NoError(t, store.UpsertToken(ctx, buildTestMint(tokenNum, owner)))
	token, err := store.GetToken(ctx, testContract, tokenNum)
	require.NoError(t, err)
	require.NotNil(t, token)
	return token
}

// =============================================================================
// Test: Users and tokens
// =============================================================================

func testUpsertUser(t *testing.T, store Store) {
	ctx := context.Background()

	user, err := store.UpsertUser(ctx, testAlice)
	require.NoError(t, err)
	assert.Equal(t, testAlice, user.Address)

	again, err := store.UpsertUser(ctx, testAlice)
	require.NoError(t, err)
	assert.Equal(t, user.CreatedAt.Unix(), again.CreatedAt.Unix())
}

func testUpsertToken(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("mint creates token, owner, metadata, media, collection and history", func(t *testing.T) {
		token := mintTestToken(t, store, "1", testAlice)
		assert.Equal(t, testAlice, token.OwnerAddress)
		require.NotNil(t, token.TokenURI)
		assert.Equal(t, "ipfs://bafymeta/1.json", *token.TokenURI)
		require.NotNil(t, token.Name)
		assert.Equal(t, "Token 1", *token.Name)
		require.NotNil(t, token.CollectionID)
		require.NotNil(t, token.MetadataHash)
		assert.Equal(t, "hash-1", *token.MetadataHash)

		detail, err := store.GetTokenDetail(ctx, testContract, "1")
		require.NoError(t, err)
		require.NotNil(t, detail)
		require.NotNil(t, detail.Owner)
		assert.Equal(t, testAlice, detail.Owner.Address)
		require.NotNil(t, detail.Collection)
		assert.Equal(t, "Genesis", detail.Collection.Name)
		require.Len(t, detail.Media, 1)
		assert.Equal(t, "video/mp4", detail.Media[0].Type)

		history, total, err := store.GetTokenHistory(ctx, token.ID, nil, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, history, 1)
		assert.Equal(t, schema.HistoryKindMint, history[0].Kind)
	})

	t.Run("replaying the mint adds no history and no media", func(t *testing.T) {
		token := mintTestToken(t, store, "1", testAlice)

		history, total, err := store.GetTokenHistory(ctx, token.ID, nil, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, history, 1)

		detail, err := store.GetTokenDetail(ctx, testContract, "1")
		require.NoError(t, err)
		assert.Len(t, detail.Media, 1)
	})

	t.Run("transfer only moves ownership", func(t *testing.T) {
		err := store.UpsertToken(ctx, UpsertTokenInput{
			ContractAddress: testContract,
			TokenNumber:     "1",
			OwnerAddress:    testBob,
			History: &HistoryEventInput{
				Kind:        schema.HistoryKindTransfer,
				FromAddress: stringPtr(testAlice),
				ToAddress:   stringPtr(testBob),
				TxHash:      "0xtransfer1",
				LogIndex:    4,
				BlockNumber: 110,
				Timestamp:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			},
		})
		require.NoError(t, err)

		token, err := store.GetToken(ctx, testContract, "1")
		require.NoError(t, err)
		assert.Equal(t, testBob, token.OwnerAddress)
		require.NotNil(t, token.Name)
		assert.Equal(t, "Token 1", *token.Name)
		require.NotNil(t, token.TokenURI)
		assert.Equal(t, "ipfs://bafymeta/1.json", *token.TokenURI)

		history, total, err := store.GetTokenHistory(ctx, token.ID, nil, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Equal(t, schema.HistoryKindTransfer, history[0].Kind)

		transfers, total, err := store.GetTokenHistory(ctx, token.ID, []schema.HistoryKind{schema.HistoryKindTransfer}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, transfers, 1)
	})

	t.Run("metadata refresh replaces media and keeps absent fields", func(t *testing.T) {
		err := store.UpsertToken(ctx, UpsertTokenInput{
			ContractAddress: testContract,
			TokenNumber:     "1",
			OwnerAddress:    testBob,
			Metadata: &TokenMetadataInput{
				Name: stringPtr("Renamed"),
				Media: []MediaInput{
					{URL: "https://example.com/a.png", Type: "image/png"},
					{URL: "https://example.com/b.glb"},
				},
				Collection: &CollectionInput{Name: "Genesis", Description: stringPtr("first drop")},
			},
		})
		require.NoError(t, err)

		detail, err := store.GetTokenDetail(ctx, testContract, "1")
		require.NoError(t, err)
		require.NotNil(t, detail.Name)
		assert.Equal(t, "Renamed", *detail.Name)
		require.NotNil(t, detail.Description)
		assert.Equal(t, "description 1", *detail.Description)
		require.Len(t, detail.Media, 2)
		assert.Equal(t, "https://example.com/a.png", detail.Media[0].URL)
		require.NotNil(t, detail.Collection)
		require.NotNil(t, detail.Collection.Description)
		assert.Equal(t, "first drop", *detail.Collection.Description)
	})

	t.Run("empty media array clears media", func(t *testing.T) {
		err := store.UpsertToken(ctx, UpsertTokenInput{
			ContractAddress: testContract,
			TokenNumber:     "1",
			OwnerAddress:    testBob,
			Metadata:        &TokenMetadataInput{Media: []MediaInput{}},
		})
		require.NoError(t, err)

		detail, err := store.GetTokenDetail(ctx, testContract, "1")
		require.NoError(t, err)
		assert.Empty(t, detail.Media)
	})

	t.Run("unknown token", func(t *testing.T) {
		token, err := store.GetToken(ctx, testContract, "999")
		require.NoError(t, err)
		assert.Nil(t, token)

		detail, err := store.GetTokenDetail(ctx, testContract, "999")
		require.NoError(t, err)
		assert.Nil(t, detail)
	})
}

func testCreateToken(t *testing.T, store Store) {
	ctx := context.Background()

	token, err := store.CreateToken(ctx, CreateTokenInput{
		ContractAddress: testContract,
		TokenNumber:     "50",
		OwnerAddress:    testCarol,
		TokenURI:        stringPtr("https://example.com/50"),
	})
	require.NoError(t, err)
	assert.NotZero(t, token.ID)

	user, err := store.GetUser(ctx, testCarol)
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Len(t, user.Tokens, 1)

	_, err = store.CreateToken(ctx, CreateTokenInput{
		ContractAddress: testContract,
		TokenNumber:     "50",
		OwnerAddress:    testAlice,
	})
	assert.ErrorIs(t, err, domain.ErrTokenAlreadyExists)

	// The store is still usable after the rejected insert
	got, err := store.GetToken(ctx, testContract, "50")
	require.NoError(t, err)
	assert.Equal(t, testCarol, got.OwnerAddress)
}

// =============================================================================
// Test: Listings
// =============================================================================

func activeListings(t *testing.T, store Store, contract, tokenNum string) []schema.Listing {
	detail, err := store.GetTokenDetail(context.Background(), contract, tokenNum)
	require.NoError(t, err)
	require.NotNil(t, detail)
	return detail.Listings
}

// listingRows returns every listing row of the token, active or not, oldest first
func listingRows(t *testing.T, store Store, tokenID int64) []schema.Listing {
	pg, ok := store.(*pgStore)
	require.True(t, ok, "listing rows are read through the postgres store")

	var rows []schema.Listing
	require.NoError(t, pg.db.Where("token_id = ?", tokenID).Order("id ASC").Find(&rows).Error)
	return rows
}

func testListings(t *testing.T, store Store) {
	ctx := context.Background()
	token := mintTestToken(t, store, "2", testAlice)

	t.Run("relisting keeps exactly one active listing", func(t *testing.T) {
		require.NoError(t, store.CreateListing(ctx, CreateListingInput{TokenID: token.ID, SellerAddress: testAlice, Price: price("5"), TxHash: "0xlist1"}))
		require.NoError(t, store.CreateListing(ctx, CreateListingInput{TokenID: token.ID, SellerAddress: testAlice, Price: price("4"), TxHash: "0xlist2"}))

		listings := activeListings(t, store, testContract, "2")
		require.Len(t, listings, 1)
		assert.True(t, listings[0].Price.Equal(price("4")))
		require.NotNil(t, listings[0].Seller)
		assert.Equal(t, testAlice, listings[0].Seller.Address)

		// The superseded listing stays as exactly one inactive row
		rows := listingRows(t, store, token.ID)
		require.Len(t, rows, 2)
		assert.False(t, rows[0].Active)
		assert.True(t, rows[0].Price.Equal(price("5")))
		assert.True(t, rows[1].Active)
		assert.True(t, rows[1].Price.Equal(price("4")))

		all, err := store.ListListings(ctx, ListingFilter{SellerAddress: stringPtr(testAlice)})
		require.NoError(t, err)
		require.Len(t, all, 1)
		require.NotNil(t, all[0].Token)
		assert.Equal(t, "2", all[0].Token.TokenNumber)
	})

	t.Run("purchase closes the listing and records a sale", func(t *testing.T) {
		err := store.PurchaseListing(ctx, PurchaseListingInput{
			TokenID:      token.ID,
			BuyerAddress: testBob,
			TxHash:       "0xbuy",
			LogIndex:     2,
			BlockNumber:  120,
			Timestamp:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Empty(t, activeListings(t, store, testContract, "2"))

		sales, total, err := store.GetTokenHistory(ctx, token.ID, []schema.HistoryKind{schema.HistoryKindSale}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, sales, 1)
		require.NotNil(t, sales[0].FromAddress)
		assert.Equal(t, testAlice, *sales[0].FromAddress)
		require.NotNil(t, sales[0].ToAddress)
		assert.Equal(t, testBob, *sales[0].ToAddress)
		require.NotNil(t, sales[0].Price)
		assert.True(t, sales[0].Price.Equal(price("4")))
	})

	t.Run("replayed purchase records nothing new", func(t *testing.T) {
		err := store.PurchaseListing(ctx, PurchaseListingInput{
			TokenID:      token.ID,
			BuyerAddress: testBob,
			TxHash:       "0xbuy",
			LogIndex:     2,
			BlockNumber:  120,
			Timestamp:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)

		_, total, err := store.GetTokenHistory(ctx, token.ID, []schema.HistoryKind{schema.HistoryKindSale}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("deactivate listings", func(t *testing.T) {
		require.NoError(t, store.CreateListing(ctx, CreateListingInput{TokenID: token.ID, SellerAddress: testAlice, Price: price("3"), TxHash: "0xlist3"}))

		n, err := store.DeactivateListings(ctx, token.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = store.DeactivateListings(ctx, token.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})
}

// =============================================================================
// Test: Offers
// =============================================================================

func testOffers(t *testing.T, store Store) {
	ctx := context.Background()
	token := mintTestToken(t, store, "3", testAlice)

	t.Run("offers from distinct offerers coexist, same offerer supersedes", func(t *testing.T) {
		require.NoError(t, store.CreateOffer(ctx, CreateOfferInput{TokenID: token.ID, OffererAddress: testBob, Price: price("1"), TxHash: "0xo1"}))
		require.NoError(t, store.CreateOffer(ctx, CreateOfferInput{TokenID: token.ID, OffererAddress: testCarol, Price: price("2"), TxHash: "0xo2"}))
		require.NoError(t, store.CreateOffer(ctx, CreateOfferInput{TokenID: token.ID, OffererAddress: testBob, Price: price("1.5"), TxHash: "0xo3"}))

		received, err := store.ListOffersReceived(ctx, testAlice, 10, 0)
		require.NoError(t, err)
		require.Len(t, received, 2)

		made, err := store.ListOffersMade(ctx, testBob, 10, 0)
		require.NoError(t, err)
		require.Len(t, made, 1)
		assert.True(t, made[0].Price.Equal(price("1.5")))
	})

	t.Run("cancel only touches the offerer", func(t *testing.T) {
		n, err := store.DeactivateOffers(ctx, token.ID, testCarol)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		received, err := store.ListOffersReceived(ctx, testAlice, 10, 0)
		require.NoError(t, err)
		require.Len(t, received, 1)
		assert.Equal(t, testBob, received[0].OffererAddress)
	})

	t.Run("accept closes everything and transfers the token", func(t *testing.T) {
		require.NoError(t, store.CreateListing(ctx, CreateListingInput{TokenID: token.ID, SellerAddress: testAlice, Price: price("9"), TxHash: "0xl"}))
		require.NoError(t, store.CreateOffer(ctx, CreateOfferInput{TokenID: token.ID, OffererAddress: testCarol, Price: price("2"), TxHash: "0xo4"}))

		err := store.AcceptOffer(ctx, AcceptOfferInput{
			TokenID:        token.ID,
			SellerAddress:  testAlice,
			OffererAddress: testBob,
			Price:          price("1.5"),
			TxHash:         "0xaccept",
			LogIndex:       1,
			BlockNumber:    130,
			Timestamp:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)

		detail, err := store.GetTokenDetail(ctx, testContract, "3")
		require.NoError(t, err)
		assert.Equal(t, testBob, detail.OwnerAddress)
		assert.Empty(t, detail.Listings)
		assert.Empty(t, detail.Offers)

		sales, _, err := store.GetTokenHistory(ctx, token.ID, []schema.HistoryKind{schema.HistoryKindSale}, 10, 0)
		require.NoError(t, err)
		require.Len(t, sales, 1)
		assert.True(t, sales[0].Price.Equal(price("1.5")))
	})
}

// =============================================================================
// Test: Reads
// =============================================================================

func testReads(t *testing.T, store Store) {
	ctx := context.Background()
	t1 := mintTestToken(t, store, "10", testAlice)
	mintTestToken(t, store, "11", testAlice)
	mintTestToken(t, store, "12", testBob)

	require.NoError(t, store.CreateListing(ctx, CreateListingInput{TokenID: t1.ID, SellerAddress: testAlice, Price: price("1"), TxHash: "0xr1"}))
	require.NoError(t, store.CreateOffer(ctx, CreateOfferInput{TokenID: t1.ID, OffererAddress: testCarol, Price: price("0.5"), TxHash: "0xr2"}))

	t.Run("list tokens by owner", func(t *testing.T) {
		tokens, err := store.ListTokens(ctx, TokenFilter{OwnerAddress: stringPtr(testAlice)})
		require.NoError(t, err)
		require.Len(t, tokens, 2)
		assert.Equal(t, "10", tokens[0].TokenNumber)
		require.NotNil(t, tokens[0].Owner)
		require.Len(t, tokens[0].Listings, 1)
	})

	t.Run("list tokens by collection with paging", func(t *testing.T) {
		tokens, err := store.ListTokens(ctx, TokenFilter{CollectionID: t1.CollectionID, Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, tokens, 2)
		assert.Equal(t, "11", tokens[0].TokenNumber)
	})

	t.Run("list listings by collection", func(t *testing.T) {
		listings, err := store.ListListings(ctx, ListingFilter{CollectionID: t1.CollectionID})
		require.NoError(t, err)
		require.Len(t, listings, 1)
		require.NotNil(t, listings[0].Token)
		require.NotNil(t, listings[0].Token.Collection)
		assert.Equal(t, "Genesis", listings[0].Token.Collection.Name)
	})

	t.Run("list collections with counts", func(t *testing.T) {
		collections, err := store.ListCollections(ctx)
		require.NoError(t, err)
		require.Len(t, collections, 1)
		assert.Equal(t, "Genesis", collections[0].Name)
		assert.Equal(t, int64(3), collections[0].TokenCount)
	})

	t.Run("get user", func(t *testing.T) {
		user, err := store.GetUser(ctx, testAlice)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Len(t, user.Tokens, 2)
		require.Len(t, user.Listings, 1)
		require.NotNil(t, user.Listings[0].Token)
		assert.Empty(t, user.Offers)

		carol, err := store.GetUser(ctx, testCarol)
		require.NoError(t, err)
		require.Len(t, carol.Offers, 1)

		missing, err := store.GetUser(ctx, "0x00000000000000000000000000000000deadbeef")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

// =============================================================================
// Test: Metadata refresh
// =============================================================================

func testMetadataRefresh(t *testing.T, store Store) {
	ctx := context.Background()
	token := mintTestToken(t, store, "20", testAlice)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	due, err := store.GetTokensForMetadataRefresh(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, token.ID, due[0].ID)

	err = store.UpdateTokenMetadata(ctx, UpdateTokenMetadataInput{
		TokenID:   token.ID,
		Metadata:  &TokenMetadataInput{Image: stringPtr("https://example.com/new.png")},
		CheckedAt: now,
	})
	require.NoError(t, err)

	due, err = store.GetTokensForMetadataRefresh(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = store.GetTokensForMetadataRefresh(ctx, now.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NotNil(t, due[0].Image)
	assert.Equal(t, "https://example.com/new.png", *due[0].Image)

	// A failed refresh only stamps the check time
	err = store.UpdateTokenMetadata(ctx, UpdateTokenMetadataInput{TokenID: token.ID, CheckedAt: now.Add(2 * time.Hour)})
	require.NoError(t, err)
	due, err = store.GetTokensForMetadataRefresh(ctx, now.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	// A rediscovered tokenURI is stored with the check
	err = store.UpdateTokenMetadata(ctx, UpdateTokenMetadataInput{
		TokenID:   token.ID,
		TokenURI:  stringPtr("ar://moved"),
		CheckedAt: now.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	got, err := store.GetToken(ctx, testContract, "20")
	require.NoError(t, err)
	require.NotNil(t, got.TokenURI)
	assert.Equal(t, "ar://moved", *got.TokenURI)
}

// =============================================================================
// Test: Block cursor
// =============================================================================

func testBlockCursor(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get non-existent cursor", func(t *testing.T) {
		cursor, ok, err := store.GetBlockCursor(ctx, "test_chain_nonexistent")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, uint64(0), cursor)
	})

	t.Run("set and get cursor", func(t *testing.T) {
		key := "test_chain_cursor"

		require.NoError(t, store.SetBlockCursor(ctx, key, 12345))

		cursor, ok, err := store.GetBlockCursor(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint64(12345), cursor)
	})

	t.Run("update existing cursor", func(t *testing.T) {
		key := "test_chain_update"

		require.NoError(t, store.SetBlockCursor(ctx, key, 100))
		require.NoError(t, store.SetBlockCursor(ctx, key, 200))

		cursor, ok, err := store.GetBlockCursor(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint64(200), cursor)
	})

	t.Run("zero is a stored cursor", func(t *testing.T) {
		key := "test_chain_zero"

		require.NoError(t, store.SetBlockCursor(ctx, key, 0))

		cursor, ok, err := store.GetBlockCursor(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint64(0), cursor)
	})
}

func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"UpsertUser", testUpsertUser},
		{"UpsertToken", testUpsertToken},
		{"CreateToken", testCreateToken},
		{"Listings", testListings},
		{"Offers", testOffers},
		{"Reads", testReads},
		{"MetadataRefresh", testMetadataRefresh},
		{"BlockCursor", testBlockCursor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
