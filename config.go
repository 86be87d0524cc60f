package comparemixer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xaionaro-go/comparemixer/ingest"
	"github.com/xaionaro-go/comparemixer/mixer"
	"github.com/xaionaro-go/comparemixer/pool"
	"github.com/xaionaro-go/comparemixer/quality"
	"github.com/xaionaro-go/comparemixer/synchronizer"
	"github.com/xaionaro-go/comparemixer/types"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as "1.5s", "100ms", etc.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("unable to parse duration '%s': %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

// DefaultInputPoolMaxBuffers covers a full default queue of 8 streams.
const DefaultInputPoolMaxBuffers = 8 * ingest.DefaultQueueDepth

type Config struct {
	// QueueDepth is the backlog size of every input stream.
	QueueDepth uint `yaml:"queueDepth" json:"queueDepth"`

	// StaleTimeout is the inactivity after which a stream is considered dead.
	StaleTimeout Duration `yaml:"staleTimeout" json:"staleTimeout"`

	// MaxWaitPerSlot bounds the wait for streams without data in every slot.
	MaxWaitPerSlot Duration `yaml:"maxWaitPerSlot" json:"maxWaitPerSlot"`

	// Tolerance is the alignment window; zero means half of a frame
	// period at NominalFrameRate.
	Tolerance        Duration       `yaml:"tolerance" json:"tolerance"`
	NominalFrameRate types.Rational `yaml:"nominalFrameRate" json:"nominalFrameRate"`

	MixMode            mixer.Mode                `yaml:"mixMode" json:"mixMode"`
	ScalingPolicy      mixer.ScalingPolicy       `yaml:"scalingPolicy" json:"scalingPolicy"`
	BackpressurePolicy ingest.BackpressurePolicy `yaml:"backpressurePolicy" json:"backpressurePolicy"`
	Metric             quality.Config            `yaml:"metric" json:"metric"`

	// PoolMaxBuffers bounds the output frames.
	PoolMaxBuffers     uint     `yaml:"poolMaxBuffers" json:"poolMaxBuffers"`
	PoolAcquireTimeout Duration `yaml:"poolAcquireTimeout" json:"poolAcquireTimeout"`

	// InputPoolMaxBuffers bounds the frames handed out by Engine.AcquireFrame.
	InputPoolMaxBuffers uint `yaml:"inputPoolMaxBuffers" json:"inputPoolMaxBuffers"`

	Layout           mixer.Layout `yaml:"layout" json:"layout"`
	Columns          uint         `yaml:"columns" json:"columns"`
	Rows             uint         `yaml:"rows" json:"rows"`
	CellWidth        uint         `yaml:"cellWidth" json:"cellWidth"`
	CellHeight       uint         `yaml:"cellHeight" json:"cellHeight"`
	PlaceholderColor mixer.Color  `yaml:"placeholderColor" json:"placeholderColor"`
	StatsOverlay     bool         `yaml:"statsOverlay" json:"statsOverlay"`
}

func DefaultConfig() Config {
	mixerCfg := mixer.DefaultConfig()
	return Config{
		QueueDepth:          ingest.DefaultQueueDepth,
		StaleTimeout:        Duration(ingest.DefaultStaleTimeout),
		MaxWaitPerSlot:      Duration(synchronizer.DefaultMaxWaitPerSlot),
		NominalFrameRate:    synchronizer.DefaultNominalFrameRate,
		MixMode:             mixerCfg.Mode,
		ScalingPolicy:       mixerCfg.ScalingPolicy,
		BackpressurePolicy:  ingest.BackpressurePolicyDropOldest,
		Metric:              quality.Config{Metric: mixerCfg.Metric},
		PoolMaxBuffers:      pool.DefaultMaxItems,
		PoolAcquireTimeout:  Duration(pool.DefaultAcquireTimeout),
		InputPoolMaxBuffers: DefaultInputPoolMaxBuffers,
		Layout:              mixerCfg.Layout,
		Columns:             mixerCfg.Columns,
		Rows:                mixerCfg.Rows,
		CellWidth:           mixerCfg.CellWidth,
		CellHeight:          mixerCfg.CellHeight,
		PlaceholderColor:    mixerCfg.PlaceholderColor,
	}
}

func (cfg Config) Validate() error {
	if cfg.QueueDepth == 0 {
		return fmt.Errorf("queueDepth must be positive")
	}
	if cfg.StaleTimeout <= 0 {
		return fmt.Errorf("staleTimeout must be positive, got %v", cfg.StaleTimeout)
	}
	if cfg.MaxWaitPerSlot <= 0 {
		return fmt.Errorf("maxWaitPerSlot must be positive, got %v", cfg.MaxWaitPerSlot)
	}
	if cfg.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative, got %v", cfg.Tolerance)
	}
	if cfg.NominalFrameRate.IsZero() && cfg.Tolerance == 0 {
		return fmt.Errorf("either tolerance or nominalFrameRate must be set")
	}
	if cfg.NominalFrameRate.Num < 0 || cfg.NominalFrameRate.Den < 0 {
		return fmt.Errorf("invalid nominalFrameRate %s", cfg.NominalFrameRate)
	}
	if cfg.PoolMaxBuffers == 0 {
		return fmt.Errorf("poolMaxBuffers must be positive")
	}
	if cfg.InputPoolMaxBuffers == 0 {
		return fmt.Errorf("inputPoolMaxBuffers must be positive")
	}
	if cfg.MixMode == mixer.UndefinedMode {
		return fmt.Errorf("mixMode is not set")
	}
	if cfg.ScalingPolicy == mixer.UndefinedScalingPolicy {
		return fmt.Errorf("scalingPolicy is not set")
	}
	if cfg.BackpressurePolicy == ingest.UndefinedBackpressurePolicy || cfg.BackpressurePolicy >= ingest.EndOfBackpressurePolicy {
		return fmt.Errorf("invalid backpressurePolicy %s", cfg.BackpressurePolicy)
	}
	if cfg.Layout == mixer.UndefinedLayout {
		return fmt.Errorf("layout is not set")
	}
	if cfg.MixMode.Composites() && (cfg.CellWidth == 0 || cfg.CellHeight == 0) {
		return fmt.Errorf("the cell size must be positive, got %dx%d", cfg.CellWidth, cfg.CellHeight)
	}
	if err := cfg.mixerConfig().Validate(); err != nil {
		return err
	}
	return nil
}

func (cfg Config) ingestConfig() ingest.Config {
	return ingest.Config{
		QueueDepth:         cfg.QueueDepth,
		StaleTimeout:       time.Duration(cfg.StaleTimeout),
		BackpressurePolicy: cfg.BackpressurePolicy,
	}
}

func (cfg Config) synchronizerConfig() synchronizer.Config {
	return synchronizer.Config{
		Tolerance:        time.Duration(cfg.Tolerance),
		NominalFrameRate: cfg.NominalFrameRate,
		MaxWaitPerSlot:   time.Duration(cfg.MaxWaitPerSlot),
	}
}

func (cfg Config) mixerConfig() mixer.Config {
	return mixer.Config{
		Mode:             cfg.MixMode,
		ScalingPolicy:    cfg.ScalingPolicy,
		Layout:           cfg.Layout,
		Columns:          cfg.Columns,
		Rows:             cfg.Rows,
		CellWidth:        cfg.CellWidth,
		CellHeight:       cfg.CellHeight,
		PlaceholderColor: cfg.PlaceholderColor,
		StatsOverlay:     cfg.StatsOverlay,
		Metric:           cfg.Metric.Metric,
	}
}

func (cfg Config) poolConfig() pool.Config {
	return pool.Config{
		MaxItems:       cfg.PoolMaxBuffers,
		AcquireTimeout: time.Duration(cfg.PoolAcquireTimeout),
	}
}

func (cfg Config) inputPoolConfig() pool.Config {
	return pool.Config{
		MaxItems:       cfg.InputPoolMaxBuffers,
		AcquireTimeout: time.Duration(cfg.PoolAcquireTimeout),
	}
}

// ParseConfig decodes YAML (a superset of JSON) on top of DefaultConfig.
func ParseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("unable to parse the config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads a YAML or JSON (by the ".json" extension) config file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseConfig(b)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("unable to parse '%s': %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config '%s': %w", path, err)
	}
	return cfg, nil
}
