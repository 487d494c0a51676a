package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalize_PassThrough(t *testing.T) {
	data := pngOf(t, 40, 20)
	out, contentType, err := Normalize(data, 100, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, data, out)
}

func TestNormalize_Resizes(t *testing.T) {
	data := pngOf(t, 200, 100)
	out, contentType, err := Normalize(data, 50, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 25, img.Bounds().Dy())
}

func TestNormalize_Rejects(t *testing.T) {
	_, _, err := Normalize([]byte("definitely not an image"), 100, 1<<20)
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	data := pngOf(t, 10, 10)
	_, _, err = Normalize(data, 100, int64(len(data)-1))
	assert.ErrorIs(t, err, ErrTooLarge)
}
