package comparemixer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/comparemixer/ingest"
	"github.com/xaionaro-go/comparemixer/mixer"
	"github.com/xaionaro-go/comparemixer/pool"
	"github.com/xaionaro-go/comparemixer/quality"
	"github.com/xaionaro-go/comparemixer/types"
)

const testConfigYAML = `
queueDepth: 4
staleTimeout: 2s
maxWaitPerSlot: 150ms
nominalFrameRate: "30000/1001"
mixMode: metricsOnly
scalingPolicy: BILINEAR
backpressurePolicy: dropIncoming
metric:
  type: similarity
  tolerance: 20
poolMaxBuffers: 8
layout: splitScreen
columns: 2
rows: 1
cellWidth: 320
cellHeight: 240
placeholderColor: "#000080"
statsOverlay: true
`

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, mixer.ModeBoth, cfg.MixMode)
	require.Equal(t, ingest.BackpressurePolicyDropOldest, cfg.BackpressurePolicy)
	require.Equal(t, quality.PSNR{}, cfg.Metric.Metric)
	require.Equal(t, time.Duration(0), time.Duration(cfg.Tolerance))
	require.Equal(t, uint(DefaultInputPoolMaxBuffers), cfg.InputPoolMaxBuffers)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfigYAML))
	require.NoError(t, err)

	require.Equal(t, uint(4), cfg.QueueDepth)
	require.Equal(t, Duration(2*time.Second), cfg.StaleTimeout)
	require.Equal(t, Duration(150*time.Millisecond), cfg.MaxWaitPerSlot)
	require.Equal(t, types.Rational{Num: 30000, Den: 1001}, cfg.NominalFrameRate)
	require.Equal(t, mixer.ModeMetricsOnly, cfg.MixMode)
	require.Equal(t, mixer.ScalingPolicyBilinear, cfg.ScalingPolicy)
	require.Equal(t, ingest.BackpressurePolicyDropIncoming, cfg.BackpressurePolicy)
	require.Equal(t, quality.Similarity{Tolerance: 20}, cfg.Metric.Metric)
	require.Equal(t, uint(8), cfg.PoolMaxBuffers)
	require.Equal(t, mixer.LayoutSplitScreen, cfg.Layout)
	require.Equal(t, mixer.Color{R: 0, G: 0, B: 0x80, A: 0xff}, cfg.PlaceholderColor)
	require.True(t, cfg.StatsOverlay)

	// not mentioned in the document
	require.Equal(t, Duration(pool.DefaultAcquireTimeout), cfg.PoolAcquireTimeout)
}

func TestParseConfigErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"syntax":          "queueDepth: [",
		"zero-queue":      "queueDepth: 0",
		"unknown-mode":    "mixMode: sideBySide",
		"unknown-metric":  "metric: {type: ssim}",
		"metric-no-type":  "metric: {tolerance: 1}",
		"bad-duration":    "staleTimeout: soon",
		"negative-wait":   "maxWaitPerSlot: -1s",
		"bad-color":       `placeholderColor: "#12"`,
		"odd-split-width": "layout: splitScreen\ncellWidth: 321",
		"bad-framerate":   `nominalFrameRate: "x/y"`,
		"zero-input-pool": "inputPoolMaxBuffers: 0",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(testConfigYAML), 0o644))
	fromYAML, err := LoadConfig(yamlPath)
	require.NoError(t, err)

	b, err := json.Marshal(fromYAML)
	require.NoError(t, err)
	jsonPath := filepath.Join(dir, "config.JSON")
	require.NoError(t, os.WriteFile(jsonPath, b, 0o644))
	fromJSON, err := LoadConfig(jsonPath)
	require.NoError(t, err)
	require.Equal(t, fromYAML, fromJSON)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
