package ingest

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultQueueDepth   = 8
	DefaultStaleTimeout = time.Second
)

// BackpressurePolicy defines what Push does when the queue is full.
type BackpressurePolicy int

const (
	UndefinedBackpressurePolicy = BackpressurePolicy(iota)
	BackpressurePolicyBlockProducer
	BackpressurePolicyDropOldest
	BackpressurePolicyDropIncoming
	EndOfBackpressurePolicy
)

func (p BackpressurePolicy) String() string {
	switch p {
	case UndefinedBackpressurePolicy:
		return "<undefined>"
	case BackpressurePolicyBlockProducer:
		return "blockProducer"
	case BackpressurePolicyDropOldest:
		return "dropOldest"
	case BackpressurePolicyDropIncoming:
		return "dropIncoming"
	default:
		return fmt.Sprintf("BackpressurePolicy(%d)", int(p))
	}
}

func (p BackpressurePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *BackpressurePolicy) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for c := UndefinedBackpressurePolicy + 1; c < EndOfBackpressurePolicy; c++ {
		if strings.ToLower(c.String()) == s {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown backpressure policy '%s'", string(b))
}

type Config struct {
	QueueDepth         uint
	StaleTimeout       time.Duration
	BackpressurePolicy BackpressurePolicy

	// OnActivity is called (without locks held) after every successful push
	// and on end-of-stream; the synchronizer uses it to wake up.
	OnActivity func()

	// NowFunc is the clock used for liveness tracking; nil means time.Now.
	NowFunc func() time.Time
}

func DefaultConfig() Config {
	return Config{
		QueueDepth:         DefaultQueueDepth,
		StaleTimeout:       DefaultStaleTimeout,
		BackpressurePolicy: BackpressurePolicyDropOldest,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = def.QueueDepth
	}
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = def.StaleTimeout
	}
	if cfg.BackpressurePolicy == UndefinedBackpressurePolicy {
		cfg.BackpressurePolicy = def.BackpressurePolicy
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	return cfg
}
