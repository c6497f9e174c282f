package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/feral-file/marketplace-indexer/internal/api/shared/errors"
	"github.com/feral-file/marketplace-indexer/internal/logger"
)

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, apiErr *apierrors.APIError) {
	c.JSON(statusCode, apiErr)
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, apierrors.NewBadRequestError(message, details...))
}

// respondNotFound sends a 404 Not Found response
func respondNotFound(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusNotFound, apierrors.NewNotFoundError(message, details...))
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, apierrors.NewValidationError(details))
}

// respondExecutorError sends the response matching an executor error and logs server-side failures
func respondExecutorError(c *gin.Context, err error, message string) {
	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("path", c.Request.URL.Path))
		respondWithError(c, http.StatusInternalServerError, apierrors.NewInternalError(message))
		return
	}

	switch apiErr.Code {
	case apierrors.ErrCodeBadRequest, apierrors.ErrCodeValidationFailed:
		respondWithError(c, http.StatusBadRequest, apiErr)
	case apierrors.ErrCodeNotFound:
		respondWithError(c, http.StatusNotFound, apiErr)
	case apierrors.ErrCodeConflict:
		respondWithError(c, http.StatusConflict, apiErr)
	case apierrors.ErrCodeUnauthorized:
		respondWithError(c, http.StatusUnauthorized, apiErr)
	default:
		logger.ErrorCtx(c.Request.Context(), err, zap.String("path", c.Request.URL.Path))
		// Database details stay in the logs
		respondWithError(c, http.StatusInternalServerError, apierrors.NewInternalError(message))
	}
}
