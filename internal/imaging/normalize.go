package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

var (
	ErrTooLarge         = errors.New("image exceeds max size")
	ErrUnsupportedImage = errors.New("unsupported image format or corrupt image")
)

const jpegQuality = 85

// Normalize checks an uploaded photo and fits it within maxDimension on both sides.
// Images that already fit are returned untouched with their detected content type;
// resized images are re-encoded as JPEG.
func Normalize(data []byte, maxDimension int, maxBytes int64) ([]byte, string, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, len(data), maxBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	bounds := img.Bounds()
	if maxDimension <= 0 || (bounds.Dx() <= maxDimension && bounds.Dy() <= maxDimension) {
		return data, "image/" + format, nil
	}

	resized := resize.Thumbnail(uint(maxDimension), uint(maxDimension), img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to re-encode resized image: %w", err)
	}
	if maxBytes > 0 && int64(buf.Len()) > maxBytes {
		return nil, "", fmt.Errorf("resized %w (%d > %d bytes)", ErrTooLarge, buf.Len(), maxBytes)
	}
	return buf.Bytes(), "image/jpeg", nil
}
