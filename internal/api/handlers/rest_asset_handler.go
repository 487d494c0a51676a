package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/storage"
)

// IAssetOpener reads stored objects back. Only the GridFS backend serves assets through the API.
type IAssetOpener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, string, error)
}

// RestAssetHandler serves listing photos stored in GridFS.
type RestAssetHandler struct {
	opener IAssetOpener
}

func NewRestAssetHandler(opener IAssetOpener) *RestAssetHandler {
	return &RestAssetHandler{opener: opener}
}

// GetAsset handles GET /v1/assets/*path
func (h *RestAssetHandler) GetAsset(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" || strings.Contains(path, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset path"})
		return
	}

	rc, contentType, err := h.opener.Open(c.Request.Context(), path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read asset"})
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	// Object paths carry an upload timestamp, so content at a path never changes.
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
