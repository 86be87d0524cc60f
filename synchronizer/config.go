package synchronizer

import (
	"context"
	"time"

	"github.com/xaionaro-go/comparemixer/types"
)

const (
	DefaultMaxWaitPerSlot = 100 * time.Millisecond
)

var (
	DefaultNominalFrameRate = types.Rational{Num: 30, Den: 1}
)

type Config struct {
	// Tolerance is how far a frame timestamp may be from the slot target
	// to be considered aligned; zero means half of the nominal frame period.
	Tolerance time.Duration

	// NominalFrameRate is used only to derive the default Tolerance.
	NominalFrameRate types.Rational

	// MaxWaitPerSlot bounds how long a slot waits for streams which have
	// no data yet before they are recorded as missing.
	MaxWaitPerSlot time.Duration

	// OnStreamRemoved is called after an unregistered stream got drained.
	OnStreamRemoved func(context.Context, types.StreamID)

	// NowFunc is the clock used for stall detection; nil means time.Now.
	NowFunc func() time.Time
}

func DefaultConfig() Config {
	return Config{
		NominalFrameRate: DefaultNominalFrameRate,
		MaxWaitPerSlot:   DefaultMaxWaitPerSlot,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.NominalFrameRate.IsZero() {
		cfg.NominalFrameRate = def.NominalFrameRate
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = cfg.NominalFrameRate.Period() / 2
	}
	if cfg.MaxWaitPerSlot <= 0 {
		cfg.MaxWaitPerSlot = def.MaxWaitPerSlot
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	return cfg
}
