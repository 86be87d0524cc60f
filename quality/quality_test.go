package quality

import (
	"encoding/json"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func filledImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestMetricsIdentical(t *testing.T) {
	img := filledImage(8, 8, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	for _, m := range []Metric{PSNR{}, Similarity{}, Similarity{Tolerance: 10}} {
		t.Run(m.typeName(), func(t *testing.T) {
			score, err := m.Score(img, img)
			require.NoError(t, err)
			require.Equal(t, MaxScore, score)
		})
	}
}

func TestPSNR(t *testing.T) {
	ref := filledImage(4, 4, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	dist := filledImage(4, 4, color.RGBA{R: 110, G: 110, B: 110, A: 0})

	mse, err := MSE(ref, dist)
	require.NoError(t, err)
	require.Equal(t, 100.0, mse)

	score, err := PSNR{}.Score(ref, dist)
	require.NoError(t, err)
	require.InDelta(t, 28.13, score, 0.01)

	_, err = PSNR{}.Score(ref, filledImage(2, 2, color.RGBA{}))
	require.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	ref := filledImage(4, 4, color.RGBA{A: 255})
	dist := filledImage(4, 4, color.RGBA{R: 5, G: 5, B: 5, A: 255})

	score, err := Similarity{Tolerance: 10}.Score(ref, dist)
	require.NoError(t, err)
	require.InDelta(t, 50.0, score, 1e-9)

	score, err = Similarity{Tolerance: 2}.Score(ref, dist)
	require.NoError(t, err)
	require.Zero(t, score)
}

func TestConfigSerialization(t *testing.T) {
	for _, m := range []Metric{PSNR{}, Similarity{Tolerance: 20}} {
		t.Run("json "+m.typeName(), func(t *testing.T) {
			b, err := json.Marshal(Config{Metric: m})
			require.NoError(t, err)

			var c Config
			require.NoError(t, json.Unmarshal(b, &c))
			require.Equal(t, m, c.Metric)
		})
		t.Run("yaml "+m.typeName(), func(t *testing.T) {
			b, err := yaml.Marshal(Config{Metric: m})
			require.NoError(t, err)

			var c Config
			require.NoError(t, yaml.Unmarshal(b, &c))
			require.Equal(t, m, c.Metric)
		})
	}

	var c Config
	require.Error(t, json.Unmarshal([]byte(`{"type":"ssim"}`), &c))
	require.Error(t, json.Unmarshal([]byte(`{}`), &c))
}
