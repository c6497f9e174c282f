package dto

import (
	"encoding/json"

	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

// MapUserToDTO maps a user without relations
func MapUserToDTO(user *schema.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{
		Address:   user.Address,
		CreatedAt: user.CreatedAt,
	}
}

// MapUserDetailToDTO maps a user with its owned tokens, active listings and active offers
func MapUserDetailToDTO(user *schema.User) *UserDetailResponse {
	resp := &UserDetailResponse{
		UserResponse: *MapUserToDTO(user),
		NFTs:         make([]TokenResponse, len(user.Tokens)),
		Listings:     make([]ListingResponse, len(user.Listings)),
		Offers:       make([]OfferResponse, len(user.Offers)),
	}
	for i := range user.Tokens {
		resp.NFTs[i] = *MapTokenToDTO(&user.Tokens[i])
	}
	for i := range user.Listings {
		resp.Listings[i] = *MapListingToDTO(&user.Listings[i])
	}
	for i := range user.Offers {
		resp.Offers[i] = *MapOfferToDTO(&user.Offers[i])
	}
	return resp
}

// MapCollectionToDTO maps a collection
func MapCollectionToDTO(collection *schema.Collection) *CollectionResponse {
	if collection == nil {
		return nil
	}
	return &CollectionResponse{
		ID:          collection.ID,
		Name:        collection.Name,
		Description: collection.Description,
		Image:       collection.Image,
		CreatedAt:   collection.CreatedAt,
	}
}

// MapCollectionWithCountToDTO maps a collection together with its token count
func MapCollectionWithCountToDTO(collection *schema.CollectionWithCount) *CollectionResponse {
	resp := MapCollectionToDTO(&collection.Collection)
	count := collection.TokenCount
	resp.NFTCount = &count
	return resp
}

// MapTokenToDTO maps a token and every relation that was loaded with it
func MapTokenToDTO(token *schema.Token) *TokenResponse {
	if token == nil {
		return nil
	}

	resp := &TokenResponse{
		ID:                token.ID,
		ContractAddress:   token.ContractAddress,
		TokenNumber:       token.TokenNumber,
		OwnerAddress:      token.OwnerAddress,
		TokenURI:          token.TokenURI,
		Name:              token.Name,
		Description:       token.Description,
		Image:             token.Image,
		CollectionID:      token.CollectionID,
		MetadataHash:      token.MetadataHash,
		MetadataCheckedAt: token.MetadataCheckedAt,
		CreatedAt:         token.CreatedAt,
		UpdatedAt:         token.UpdatedAt,
		Owner:             MapUserToDTO(token.Owner),
		Collection:        MapCollectionToDTO(token.Collection),
	}
	if len(token.Metadata) > 0 {
		resp.Metadata = json.RawMessage(token.Metadata)
	}

	if len(token.Media) > 0 {
		resp.Media = make([]MediaResponse, len(token.Media))
		for i, media := range token.Media {
			resp.Media[i] = MediaResponse{URL: media.URL, Type: media.Type}
		}
	}
	if len(token.Listings) > 0 {
		resp.Listings = make([]ListingResponse, len(token.Listings))
		for i := range token.Listings {
			resp.Listings[i] = *MapListingToDTO(&token.Listings[i])
		}
	}
	if len(token.Offers) > 0 {
		resp.Offers = make([]OfferResponse, len(token.Offers))
		for i := range token.Offers {
			resp.Offers[i] = *MapOfferToDTO(&token.Offers[i])
		}
	}

	return resp
}

// MapListingToDTO maps a listing with its seller and token when loaded
func MapListingToDTO(listing *schema.Listing) *ListingResponse {
	return &ListingResponse{
		ID:            listing.ID,
		TokenID:       listing.TokenID,
		SellerAddress: listing.SellerAddress,
		Price:         listing.Price,
		Active:        listing.Active,
		TxHash:        listing.TxHash,
		CreatedAt:     listing.CreatedAt,
		UpdatedAt:     listing.UpdatedAt,
		Seller:        MapUserToDTO(listing.Seller),
		NFT:           MapTokenToDTO(listing.Token),
	}
}

// MapOfferToDTO maps an offer with its offerer and token when loaded
func MapOfferToDTO(offer *schema.Offer) *OfferResponse {
	return &OfferResponse{
		ID:             offer.ID,
		TokenID:        offer.TokenID,
		OffererAddress: offer.OffererAddress,
		Price:          offer.Price,
		Active:         offer.Active,
		TxHash:         offer.TxHash,
		CreatedAt:      offer.CreatedAt,
		UpdatedAt:      offer.UpdatedAt,
		Offerer:        MapUserToDTO(offer.Offerer),
		NFT:            MapTokenToDTO(offer.Token),
	}
}

// MapHistoryEventToDTO maps a history entry
func MapHistoryEventToDTO(event *schema.HistoryEvent) *HistoryEventResponse {
	return &HistoryEventResponse{
		ID:          event.ID,
		Kind:        event.Kind,
		FromAddress: event.FromAddress,
		ToAddress:   event.ToAddress,
		Price:       event.Price,
		TxHash:      event.TxHash,
		LogIndex:    event.LogIndex,
		BlockNumber: event.BlockNumber,
		Timestamp:   event.Timestamp,
	}
}
