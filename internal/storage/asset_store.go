package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/config"
)

// AssetStore is the object storage listing photos are written to.
type AssetStore interface {
	// PutBlob stores data at path and returns the durable public URL.
	PutBlob(ctx context.Context, path, contentType string, data []byte) (string, error)
	DeleteObject(ctx context.Context, path string) error
	// PathFromURL maps a URL returned by PutBlob back to its object path.
	PathFromURL(url string) (string, bool)
}

// ErrObjectNotFound is returned by DeleteObject and Open when nothing is stored at the path.
var ErrObjectNotFound = errors.New("object not found")

// NewAssetStore selects the configured backend.
func NewAssetStore(cfg *config.Config, db *mongo.Database) (AssetStore, error) {
	switch cfg.AssetBackend {
	case config.AssetBackendS3:
		store, err := NewS3AssetStore(cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.AssetBackendGridFS:
		store, err := NewGridFSAssetStore(db, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown asset backend %q", cfg.AssetBackend)
	}
}

// ExtensionFor returns the file extension for an image content type, or "" when unknown.
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

func trimPrefixPath(url, prefix string) (string, bool) {
	if prefix == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	path := strings.TrimPrefix(url, prefix)
	if path == "" {
		return "", false
	}
	return path, true
}
