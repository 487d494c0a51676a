package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/imaging"
	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/services"
)

const (
	formFieldImages   = "images"
	formFieldListing  = "listing"
	formFieldPatch    = "patch"
	formFieldRetained = "retained"
)

// ImageLimits bounds the photos accepted by the upload endpoints.
type ImageLimits struct {
	MaxDimension int
	MaxBytes     int64
}

// readImages normalizes every file of the "images" form field, keeping form order.
func readImages(c *gin.Context, limits ImageLimits) ([]services.Blob, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, &services.ValidationError{Field: formFieldImages, Reason: err.Error()}
	}

	files := form.File[formFieldImages]
	blobs := make([]services.Blob, 0, len(files))
	for i, fh := range files {
		data, err := readFile(fh, limits.MaxBytes)
		if err != nil {
			return nil, fmt.Errorf("image %d (%s): %w", i, fh.Filename, err)
		}
		normalized, contentType, err := imaging.Normalize(data, limits.MaxDimension, limits.MaxBytes)
		if err != nil {
			return nil, fmt.Errorf("image %d (%s): %w", i, fh.Filename, err)
		}
		blobs = append(blobs, services.Blob{Data: normalized, ContentType: contentType})
	}
	return blobs, nil
}

func readFile(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, fmt.Errorf("%w (%d > %d bytes)", imaging.ErrTooLarge, fh.Size, maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// bindJSONField decodes a JSON document carried in a multipart form field, or the
// whole body when the request is plain JSON. It reports whether anything was found.
func bindJSONField(c *gin.Context, field string, dst interface{}) (bool, error) {
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(dst); err != nil {
			return false, &services.ValidationError{Field: field, Reason: err.Error()}
		}
		return true, nil
	}
	raw, ok := c.GetPostForm(field)
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, &services.ValidationError{Field: field, Reason: err.Error()}
	}
	return true, nil
}
