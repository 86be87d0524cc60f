package overlay

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextDraw(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	area := image.Rect(100, 0, 200, 100)
	New().Draw(img, area, []string{"stream#1", "psnr: 42.0"})

	touched := func(r image.Rectangle) bool {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				if img.RGBAAt(x, y) != (color.RGBA{}) {
					return true
				}
			}
		}
		return false
	}
	require.True(t, touched(area))
	require.False(t, touched(image.Rect(0, 0, 100, 100)))
}

func TestTextDrawOutside(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	New().Draw(img, image.Rect(20, 20, 30, 30), []string{"x"})
	New().Draw(img, img.Bounds(), nil)
	for _, v := range img.Pix {
		require.Zero(t, v)
	}
}
