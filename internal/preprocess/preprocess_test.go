package preprocess

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProducesGrayscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 90, A: 255})
		}
	}

	out := Normalize(img)
	assert.Equal(t, img.Bounds(), out.Bounds())

	r, g, b, _ := out.At(2, 2).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestLoadImageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 6))))
	require.NoError(t, f.Close())

	loaded, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Bounds().Dx())
	assert.Equal(t, 6, loaded.Bounds().Dy())
}

func TestLoadImageMissingFile(t *testing.T) {
	_, err := LoadImage(filepath.Join(t.TempDir(), "absent.png"))
	assert.Error(t, err)
}
