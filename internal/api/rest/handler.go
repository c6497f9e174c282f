package rest

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/marketplace-indexer/internal/api/shared/constants"
	"github.com/feral-file/marketplace-indexer/internal/api/shared/dto"
	"github.com/feral-file/marketplace-indexer/internal/api/shared/executor"
)

// Handler defines the interface for REST API handlers
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// ListTokens retrieves tokens with optional filters
	// GET /api/v1/nfts?collection_id=<id>&owner=<address>&limit=<limit>&offset=<offset>
	ListTokens(c *gin.Context)

	// GetToken retrieves a token with media, collection, active listings and active offers
	// GET /api/v1/nfts/:contract/:token_number
	GetToken(c *gin.Context)

	// GetTokenHistory retrieves the ownership and sale history of a token, newest first
	// GET /api/v1/nfts/:contract/:token_number/history?type=SALE,TRANSFER&limit=<limit>&offset=<offset>
	GetTokenHistory(c *gin.Context)

	// CreateToken registers a token out of band (requires authentication)
	// POST /api/v1/nfts
	CreateToken(c *gin.Context)

	// ListListings retrieves active listings
	// GET /api/v1/listings?collection_id=<id>&seller=<address>&limit=<limit>&offset=<offset>
	ListListings(c *gin.Context)

	// ListCollections retrieves collections with their NFT counts
	// GET /api/v1/collections
	ListCollections(c *gin.Context)

	// ListOffersReceived retrieves active offers on tokens owned by an address
	// GET /api/v1/offers/received/:address
	ListOffersReceived(c *gin.Context)

	// ListOffersMade retrieves active offers made by an address
	// GET /api/v1/offers/made/:address
	ListOffersMade(c *gin.Context)

	// GetUser retrieves a user with owned tokens, active listings and active offers
	// GET /api/v1/users/:address
	GetUser(c *gin.Context)

	// CreateUser registers an address (requires authentication)
	// POST /api/v1/users
	CreateUser(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	executor executor.Executor
}

// NewHandler creates a new REST API handler using the shared executor
func NewHandler(exec executor.Executor) Handler {
	return &handler{executor: exec}
}

// tokenParams reads the contract and token number path parameters
func tokenParams(c *gin.Context) (string, string, bool) {
	contract, err := ParseAddressParam(c, "contract")
	if err != nil {
		respondBadRequest(c, "Invalid contract address", err.Error())
		return "", "", false
	}
	tokenNumber := c.Param("token_number")
	if !dto.IsTokenNumber(tokenNumber) {
		respondBadRequest(c, "Invalid token number", tokenNumber)
		return "", "", false
	}
	return contract, tokenNumber, true
}

func (h *handler) ListTokens(c *gin.Context) {
	params, owner, err := ParseListTokensQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	response, err := h.executor.ListTokens(c.Request.Context(), params.CollectionID, owner, params.Limit, params.Offset)
	if err != nil {
		respondExecutorError(c, err, "Failed to list NFTs")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) GetToken(c *gin.Context) {
	contract, tokenNumber, ok := tokenParams(c)
	if !ok {
		return
	}

	token, err := h.executor.GetToken(c.Request.Context(), contract, tokenNumber)
	if err != nil {
		respondExecutorError(c, err, "Failed to get NFT")
		return
	}
	if token == nil {
		respondNotFound(c, "NFT not found")
		return
	}

	c.JSON(http.StatusOK, token)
}

func (h *handler) GetTokenHistory(c *gin.Context) {
	contract, tokenNumber, ok := tokenParams(c)
	if !ok {
		return
	}

	params, kinds, err := ParseHistoryQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	history, err := h.executor.GetTokenHistory(c.Request.Context(), contract, tokenNumber, kinds, params.Limit, params.Offset)
	if err != nil {
		respondExecutorError(c, err, "Failed to get NFT history")
		return
	}
	if history == nil {
		respondNotFound(c, "NFT not found")
		return
	}

	c.JSON(http.StatusOK, history)
}

func (h *handler) CreateToken(c *gin.Context) {
	var req dto.CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondExecutorError(c, err, "Invalid request")
		return
	}

	token, err := h.executor.CreateToken(c.Request.Context(), req)
	if err != nil {
		respondExecutorError(c, err, "Failed to create NFT")
		return
	}

	c.JSON(http.StatusCreated, token)
}

func (h *handler) ListListings(c *gin.Context) {
	params, seller, err := ParseListListingsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	response, err := h.executor.ListListings(c.Request.Context(), params.CollectionID, seller, params.Limit, params.Offset)
	if err != nil {
		respondExecutorError(c, err, "Failed to list listings")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) ListCollections(c *gin.Context) {
	response, err := h.executor.ListCollections(c.Request.Context())
	if err != nil {
		respondExecutorError(c, err, "Failed to list collections")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) ListOffersReceived(c *gin.Context) {
	address, params, ok := h.offerParams(c)
	if !ok {
		return
	}

	response, err := h.executor.ListOffersReceived(c.Request.Context(), address, params.Limit, params.Offset)
	if err != nil {
		respondExecutorError(c, err, "Failed to list received offers")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) ListOffersMade(c *gin.Context) {
	address, params, ok := h.offerParams(c)
	if !ok {
		return
	}

	response, err := h.executor.ListOffersMade(c.Request.Context(), address, params.Limit, params.Offset)
	if err != nil {
		respondExecutorError(c, err, "Failed to list made offers")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) offerParams(c *gin.Context) (string, *PaginationParams, bool) {
	address, err := ParseAddressParam(c, "address")
	if err != nil {
		respondBadRequest(c, "Invalid address", err.Error())
		return "", nil, false
	}
	params, err := ParsePaginationQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return "", nil, false
	}
	return address, params, true
}

func (h *handler) GetUser(c *gin.Context) {
	address, err := ParseAddressParam(c, "address")
	if err != nil {
		respondBadRequest(c, "Invalid address", err.Error())
		return
	}

	user, err := h.executor.GetUser(c.Request.Context(), address)
	if err != nil {
		respondExecutorError(c, err, "Failed to get user")
		return
	}
	if user == nil {
		respondNotFound(c, "User not found")
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *handler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		respondExecutorError(c, err, "Invalid request")
		return
	}

	user, err := h.executor.CreateUser(c.Request.Context(), req.Address)
	if err != nil {
		respondExecutorError(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": constants.SERVICE_NAME,
	})
}
