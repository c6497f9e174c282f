package rest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/marketplace-indexer/internal/api/shared/constants"
	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/store/schema"
)

// PaginationParams holds limit/offset query parameters
type PaginationParams struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// defaultPagination seeds binding; gin leaves fields absent from the query untouched
func defaultPagination() PaginationParams {
	return PaginationParams{Limit: constants.DEFAULT_LIMIT, Offset: constants.DEFAULT_OFFSET}
}

// Validate caps the limit and rejects negative values
func (p *PaginationParams) Validate() error {
	if p.Limit <= 0 {
		return errors.New("limit must be positive")
	}
	if p.Offset < 0 {
		return errors.New("offset must not be negative")
	}
	if p.Limit > constants.MAX_PAGE_SIZE {
		p.Limit = constants.MAX_PAGE_SIZE
	}
	return nil
}

// ListTokensQueryParams holds query parameters for GET /nfts
type ListTokensQueryParams struct {
	CollectionID *int64 `form:"collection_id"`
	Owner        string `form:"owner"`
	PaginationParams
}

// ListListingsQueryParams holds query parameters for GET /listings
type ListListingsQueryParams struct {
	CollectionID *int64 `form:"collection_id"`
	Seller       string `form:"seller"`
	PaginationParams
}

// HistoryQueryParams holds query parameters for GET /nfts/:contract/:token_number/history
type HistoryQueryParams struct {
	// Type is a comma-separated list of history kinds, e.g. SALE,TRANSFER
	Type   string `form:"type"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// ParseListTokensQuery parses query parameters for GET /nfts
func ParseListTokensQuery(c *gin.Context) (*ListTokensQueryParams, *string, error) {
	params := ListTokensQueryParams{PaginationParams: defaultPagination()}
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	owner, err := optionalAddress("owner", params.Owner)
	if err != nil {
		return nil, nil, err
	}
	return &params, owner, nil
}

// ParseListListingsQuery parses query parameters for GET /listings
func ParseListListingsQuery(c *gin.Context) (*ListListingsQueryParams, *string, error) {
	params := ListListingsQueryParams{PaginationParams: defaultPagination()}
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	seller, err := optionalAddress("seller", params.Seller)
	if err != nil {
		return nil, nil, err
	}
	return &params, seller, nil
}

// ParsePaginationQuery parses limit/offset query parameters
func ParsePaginationQuery(c *gin.Context) (*PaginationParams, error) {
	params := defaultPagination()
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &params, nil
}

// ParseHistoryQuery parses query parameters for the token history endpoint
func ParseHistoryQuery(c *gin.Context) (*HistoryQueryParams, []schema.HistoryKind, error) {
	params := HistoryQueryParams{Limit: constants.DEFAULT_HISTORY_LIMIT, Offset: constants.DEFAULT_OFFSET}
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, nil, err
	}

	pagination := PaginationParams{Limit: params.Limit, Offset: params.Offset}
	if err := pagination.Validate(); err != nil {
		return nil, nil, err
	}
	params.Limit = pagination.Limit

	var kinds []schema.HistoryKind
	for _, raw := range strings.Split(params.Type, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		kind := schema.HistoryKind(strings.ToUpper(raw))
		if !kind.Valid() {
			return nil, nil, fmt.Errorf("unknown history type: %s", raw)
		}
		kinds = append(kinds, kind)
	}

	return &params, kinds, nil
}

// ParseAddressParam reads and canonicalizes an address path parameter
func ParseAddressParam(c *gin.Context, name string) (string, error) {
	address := c.Param(name)
	if !domain.IsValidAddress(address) {
		return "", fmt.Errorf("invalid %s: %q", name, address)
	}
	return domain.NormalizeAddress(address), nil
}

func optionalAddress(name, value string) (*string, error) {
	if value == "" {
		return nil, nil
	}
	if !domain.IsValidAddress(value) {
		return nil, fmt.Errorf("invalid %s: %q", name, value)
	}
	address := domain.NormalizeAddress(value)
	return &address, nil
}
