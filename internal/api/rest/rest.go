package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/marketplace-indexer/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		// NFT endpoints (public read access)
		v1.GET("/nfts", handler.ListTokens)
		v1.GET("/nfts/:contract/:token_number", handler.GetToken)
		v1.GET("/nfts/:contract/:token_number/history", handler.GetTokenHistory)

		// Out-of-band token registration (requires authentication)
		v1.POST("/nfts", middleware.Auth(authCfg), handler.CreateToken)

		// Market endpoints (public read access)
		v1.GET("/listings", handler.ListListings)
		v1.GET("/collections", handler.ListCollections)
		v1.GET("/offers/received/:address", handler.ListOffersReceived)
		v1.GET("/offers/made/:address", handler.ListOffersMade)

		// User endpoints
		v1.GET("/users/:address", handler.GetUser)
		v1.POST("/users", middleware.Auth(authCfg), handler.CreateUser)
	}
}
