package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/imaging"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/services"
)

// respondError maps service errors onto HTTP responses.
func respondError(c *gin.Context, err error, fallback string) {
	var validationErr *services.ValidationError
	var partialErr *services.PartialCreateError
	var transferErr *services.AssetTransferError
	var writeErr *services.StoreWriteError
	var readErr *services.StoreReadError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case errors.Is(err, imaging.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, imaging.ErrUnsupportedImage):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
	case errors.Is(err, services.ErrListingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
	case errors.Is(err, services.ErrCommentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
	case errors.Is(err, services.ErrConcurrentEdit):
		c.JSON(http.StatusConflict, gin.H{"error": "Listing images changed, reload and retry"})
	case errors.As(err, &partialErr):
		// The record exists; the client retries the photos with the attach endpoint.
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Listing saved without images", "data": partialErr.Listing})
	case errors.As(err, &transferErr):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Image upload failed", "failed": transferErr.Failed})
	case errors.As(err, &writeErr), errors.As(err, &readErr):
		_ = c.Error(err)
		log.Printf("Store error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": fallback})
	default:
		_ = c.Error(err)
		log.Printf("Unexpected error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
