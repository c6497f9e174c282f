package reconciler_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/feral-file/marketplace-indexer/internal/store"
	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

type historyKey struct {
	txHash   string
	logIndex uint
	kind     schema.HistoryKind
}

// memStore is an in-memory projection with the same write semantics as the postgres store
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[string]schema.User
	tokens   map[string]*schema.Token
	listings []schema.Listing
	offers   []schema.Offer
	history  map[historyKey]schema.HistoryEvent
	cursors  map[string]uint64
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]schema.User{},
		tokens:  map[string]*schema.Token{},
		history: map[historyKey]schema.HistoryEvent{},
		cursors: map[string]uint64{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func tokenKey(contract, number string) string {
	return contract + "/" + number
}

func (s *memStore) upsertUser(address string) {
	if _, ok := s.users[address]; !ok {
		s.users[address] = schema.User{Address: address}
	}
}

func (s *memStore) tokenByID(id int64) *schema.Token {
	for _, t := range s.tokens {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *memStore) appendHistory(tokenID int64, in store.HistoryEventInput) {
	key := historyKey{in.TxHash, in.LogIndex, in.Kind}
	if _, ok := s.history[key]; ok {
		return
	}
	s.history[key] = schema.HistoryEvent{
		ID:          s.id(),
		TokenID:     tokenID,
		FromAddress: in.FromAddress,
		ToAddress:   in.ToAddress,
		Price:       in.Price,
		Kind:        in.Kind,
		TxHash:      in.TxHash,
		LogIndex:    in.LogIndex,
		BlockNumber: in.BlockNumber,
		Timestamp:   in.Timestamp,
	}
}

func (s *memStore) deactivateListings(tokenID int64) int64 {
	var n int64
	for i := range s.listings {
		if s.listings[i].TokenID == tokenID && s.listings[i].Active {
			s.listings[i].Active = false
			n++
		}
	}
	return n
}

func (s *memStore) deactivateOffers(tokenID int64, offerer *string) int64 {
	var n int64
	for i := range s.offers {
		o := &s.offers[i]
		if o.TokenID == tokenID && o.Active && (offerer == nil || o.OffererAddress == *offerer) {
			o.Active = false
			n++
		}
	}
	return n
}

func (s *memStore) GetBlockCursor(_ context.Context, key string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.cursors[key]
	return n, ok, nil
}

func (s *memStore) SetBlockCursor(_ context.Context, key string, blockNumber uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[key] = blockNumber
	return nil
}

func (s *memStore) UpsertUser(_ context.Context, address string) (*schema.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertUser(address)
	u := s.users[address]
	return &u, nil
}

func (s *memStore) GetToken(_ context.Context, contractAddress, tokenNumber string) (*schema.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenKey(contractAddress, tokenNumber)]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) UpsertToken(_ context.Context, input store.UpsertTokenInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertUser(input.OwnerAddress)
	key := tokenKey(input.ContractAddress, input.TokenNumber)
	t, ok := s.tokens[key]
	if !ok {
		t = &schema.Token{ID: s.id(), ContractAddress: input.ContractAddress, TokenNumber: input.TokenNumber}
		s.tokens[key] = t
	}
	t.OwnerAddress = input.OwnerAddress
	if input.TokenURI != nil {
		t.TokenURI = input.TokenURI
	}
	if input.MetadataCheckedAt != nil {
		t.MetadataCheckedAt = input.MetadataCheckedAt
	}
	if md := input.Metadata; md != nil {
		if md.Name != nil {
			t.Name = md.Name
		}
		if md.Description != nil {
			t.Description = md.Description
		}
		if md.Image != nil {
			t.Image = md.Image
		}
		if md.Media != nil {
			t.Media = nil
			for _, m := range md.Media {
				t.Media = append(t.Media, schema.Media{TokenID: t.ID, URL: m.URL, Type: m.Type})
			}
		}
	}
	if input.History != nil {
		s.appendHistory(t.ID, *input.History)
	}
	return nil
}

func (s *memStore) CreateListing(_ context.Context, input store.CreateListingInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertUser(input.SellerAddress)
	s.deactivateListings(input.TokenID)
	s.listings = append(s.listings, schema.Listing{
		ID:            s.id(),
		TokenID:       input.TokenID,
		SellerAddress: input.SellerAddress,
		Price:         input.Price,
		Active:        true,
		TxHash:        input.TxHash,
	})
	return nil
}

func (s *memStore) PurchaseListing(_ context.Context, input store.PurchaseListingInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertUser(input.BuyerAddress)

	seller := ""
	price := input.Price
	for i := len(s.listings) - 1; i >= 0; i-- {
		l := s.listings[i]
		if l.TokenID == input.TokenID && l.Active {
			seller = l.SellerAddress
			if price == nil {
				p := l.Price
				price = &p
			}
			break
		}
	}
	if seller == "" {
		t := s.tokenByID(input.TokenID)
		if t == nil {
			return fmt.Errorf("token %d not found", input.TokenID)
		}
		seller = t.OwnerAddress
	}
	s.deactivateListings(input.TokenID)

	buyer := input.BuyerAddress
	s.appendHistory(input.TokenID, store.HistoryEventInput{
		Kind:        schema.HistoryKindSale,
		FromAddress: &seller,
		ToAddress:   &buyer,
		Price:       price,
		TxHash:      input.TxHash,
		LogIndex:    input.LogIndex,
		BlockNumber: input.BlockNumber,
		Timestamp:   input.Timestamp,
	})
	return nil
}

func (s *memStore) DeactivateListings(_ context.Context, tokenID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deactivateListings(tokenID), nil
}

func (s *memStore) CreateOffer(_ context.Context, input store.CreateOfferInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertUser(input.OffererAddress)
	s.deactivateOffers(input.TokenID, &input.OffererAddress)
	s.offers = append(s.offers, schema.Offer{
		ID:             s.id(),
		TokenID:        input.TokenID,
		OffererAddress: input.OffererAddress,
		Price:          input.Price,
		Active:         true,
		TxHash:         input.TxHash,
	})
	return nil
}

func (s *memStore) AcceptOffer(_ context.Context, input store.AcceptOfferInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertUser(input.OffererAddress)
	s.deactivateOffers(input.TokenID, nil)
	s.deactivateListings(input.TokenID)
	if t := s.tokenByID(input.TokenID); t != nil {
		t.OwnerAddress = input.OffererAddress
	}

	seller := input.SellerAddress
	offerer := input.OffererAddress
	price := input.Price
	s.appendHistory(input.TokenID, store.HistoryEventInput{
		Kind:        schema.HistoryKindSale,
		FromAddress: &seller,
		ToAddress:   &offerer,
		Price:       &price,
		TxHash:      input.TxHash,
		LogIndex:    input.LogIndex,
		BlockNumber: input.BlockNumber,
		Timestamp:   input.Timestamp,
	})
	return nil
}

func (s *memStore) DeactivateOffers(_ context.Context, tokenID int64, offererAddress string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deactivateOffers(tokenID, &offererAddress), nil
}

func (s *memStore) ListTokens(context.Context, store.TokenFilter) ([]schema.Token, error) {
	return nil, nil
}

func (s *memStore) GetTokenDetail(context.Context, string, string) (*schema.Token, error) {
	return nil, nil
}

func (s *memStore) GetUser(context.Context, string) (*schema.User, error) {
	return nil, nil
}

func (s *memStore) ListListings(context.Context, store.ListingFilter) ([]schema.Listing, error) {
	return nil, nil
}

func (s *memStore) ListCollections(context.Context) ([]schema.CollectionWithCount, error) {
	return nil, nil
}

func (s *memStore) ListOffersReceived(context.Context, string, int, int) ([]schema.Offer, error) {
	return nil, nil
}

func (s *memStore) ListOffersMade(context.Context, string, int, int) ([]schema.Offer, error) {
	return nil, nil
}

func (s *memStore) GetTokenHistory(context.Context, int64, []schema.HistoryKind, int, int) ([]schema.HistoryEvent, int64, error) {
	return nil, 0, nil
}

func (s *memStore) CreateToken(context.Context, store.CreateTokenInput) (*schema.Token, error) {
	return nil, nil
}

func (s *memStore) GetTokensForMetadataRefresh(context.Context, time.Time, int) ([]schema.Token, error) {
	return nil, nil
}

func (s *memStore) UpdateTokenMetadata(context.Context, store.UpdateTokenMetadataInput) error {
	return nil
}

// activeListing is a projection view used by assertions
type activeListing struct {
	Token  string
	Seller string
	Price  string
}

type activeOffer struct {
	Token   string
	Offerer string
	Price   string
}

// snapshot is the net state of the projection, independent of row counts and ids
type snapshot struct {
	Users    []string
	Owners   map[string]string
	Listings []activeListing
	Offers   []activeOffer
	History  int
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{Owners: map[string]string{}, History: len(s.history)}
	for addr := range s.users {
		snap.Users = append(snap.Users, addr)
	}
	sort.Strings(snap.Users)

	numbers := map[int64]string{}
	for _, t := range s.tokens {
		snap.Owners[t.TokenNumber] = t.OwnerAddress
		numbers[t.ID] = t.TokenNumber
	}
	for _, l := range s.listings {
		if l.Active {
			snap.Listings = append(snap.Listings, activeListing{numbers[l.TokenID], l.SellerAddress, l.Price.String()})
		}
	}
	sort.Slice(snap.Listings, func(i, j int) bool { return snap.Listings[i].Token < snap.Listings[j].Token })
	for _, o := range s.offers {
		if o.Active {
			snap.Offers = append(snap.Offers, activeOffer{numbers[o.TokenID], o.OffererAddress, o.Price.String()})
		}
	}
	sort.Slice(snap.Offers, func(i, j int) bool {
		if snap.Offers[i].Token != snap.Offers[j].Token {
			return snap.Offers[i].Token < snap.Offers[j].Token
		}
		return snap.Offers[i].Offerer < snap.Offers[j].Offerer
	})
	return snap
}

func (s *memStore) activeListingsOf(tokenNumber string) []schema.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schema.Listing
	for _, l := range s.listings {
		t := s.tokenByID(l.TokenID)
		if l.Active && t != nil && t.TokenNumber == tokenNumber {
			out = append(out, l)
		}
	}
	return out
}

// listingPricesOf returns the prices of the token's listings in the given state, oldest first
func (s *memStore) listingPricesOf(tokenNumber string, active bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, l := range s.listings {
		t := s.tokenByID(l.TokenID)
		if l.Active == active && t != nil && t.TokenNumber == tokenNumber {
			out = append(out, l.Price.String())
		}
	}
	return out
}

func (s *memStore) sales() []schema.HistoryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schema.HistoryEvent
	for _, h := range s.history {
		if h.Kind == schema.HistoryKindSale {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockNumber < out[j].BlockNumber })
	return out
}
