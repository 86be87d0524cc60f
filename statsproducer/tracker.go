// Package statsproducer collects per-frame encoder statistics and attaches
// them to the encoded frames as metadata records.
package statsproducer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/comparemixer/frame"
	"github.com/xaionaro-go/comparemixer/logger"
	"github.com/xaionaro-go/comparemixer/meta"
	"github.com/xaionaro-go/comparemixer/types"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xsync"
)

// Encoded describes one frame produced by an encoder.
type Encoded struct {
	PresentationTimestamp time.Duration
	FrameType             types.FrameType
	SizeBytes             uint64
	QuantizationParameter typing.Optional[float64]
}

// Tracker measures the encoder latency: BufferIn is called when a raw frame
// enters the encoder and BufferOut when an encoded frame leaves it, in the
// same order.
type Tracker struct {
	Name      string
	FrameRate types.Rational
	NowFunc   func() time.Time

	locker          xsync.Mutex
	inFlight        []time.Time
	maxInFlight     int
	totalProcessing time.Duration
	countBuffers    uint64
	countBytes      uint64
}

func NewTracker(name string, frameRate types.Rational) *Tracker {
	return &Tracker{
		Name:      name,
		FrameRate: frameRate,
		NowFunc:   time.Now,
	}
}

func (t *Tracker) String() string {
	return fmt.Sprintf("StatsTracker(%s)", t.Name)
}

func (t *Tracker) BufferIn(ctx context.Context) {
	now := t.NowFunc()
	t.locker.Do(ctx, func() {
		t.inFlight = append(t.inFlight, now)
		if len(t.inFlight) > t.maxInFlight {
			t.maxInFlight = len(t.inFlight)
		}
	})
}

// BufferOut accounts an encoded frame and returns its metadata record.
func (t *Tracker) BufferOut(
	ctx context.Context,
	enc Encoded,
) (meta.Meta, error) {
	now := t.NowFunc()
	return xsync.DoR2(ctx, &t.locker, func() (meta.Meta, error) {
		if len(t.inFlight) == 0 {
			return meta.Meta{}, fmt.Errorf("%s: an output frame without an input frame", t.Name)
		}
		arrivedAt := t.inFlight[0]
		t.inFlight = t.inFlight[1:]

		processing := now.Sub(arrivedAt)
		t.totalProcessing += processing
		t.countBuffers++
		t.countBytes += enc.SizeBytes

		return meta.Meta{
			SequenceNumber:        t.countBuffers - 1,
			PresentationTimestamp: enc.PresentationTimestamp,
			FrameType:             enc.FrameType,
			EncodedSizeBits:       enc.SizeBytes * 8,
			EncodeDuration:        typing.Opt(processing),
			QuantizationParameter: enc.QuantizationParameter,
			EncoderName:           t.Name,
		}, nil
	})
}

// Observe attaches the record of the encoded frame to f.
func (t *Tracker) Observe(
	ctx context.Context,
	f *frame.Frame,
	enc Encoded,
) error {
	m, err := t.BufferOut(ctx, enc)
	if err != nil {
		return err
	}
	if err := f.SetMeta(m); err != nil {
		return fmt.Errorf("unable to attach the stats: %w", err)
	}
	logger.Tracef(ctx, "%s: %s", t.Name, &m)
	return nil
}

type Statistics struct {
	Name              string
	Buffers           uint64
	Bytes             uint64
	InFlight          int
	MaxInFlight       int
	AvgProcessingTime time.Duration

	// Bitrate is in bits per second assuming the nominal frame rate;
	// zero if it is unknown.
	Bitrate float64
}

func (t *Tracker) Stats(ctx context.Context) Statistics {
	return xsync.DoR1(ctx, &t.locker, func() Statistics {
		s := Statistics{
			Name:        t.Name,
			Buffers:     t.countBuffers,
			Bytes:       t.countBytes,
			InFlight:    len(t.inFlight),
			MaxInFlight: t.maxInFlight,
		}
		if t.countBuffers > 0 {
			s.AvgProcessingTime = t.totalProcessing / time.Duration(t.countBuffers)
			if !t.FrameRate.IsZero() {
				seconds := float64(t.countBuffers) / t.FrameRate.Float64()
				s.Bitrate = float64(t.countBytes) * 8 / seconds
			}
		}
		return s
	})
}

func (s Statistics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Encoder: %s\n", s.Name)
	fmt.Fprintf(&b, "Buffers: %d\n", s.Buffers)
	fmt.Fprintf(&b, "Bytes: %s\n", humanize.Bytes(s.Bytes))
	fmt.Fprintf(&b, "Bitrate: %s\n", humanize.SIWithDigits(s.Bitrate, 2, "b/s"))
	fmt.Fprintf(&b, "Processing time: %v (max in flight: %d)\n", s.AvgProcessingTime, s.MaxInFlight)
	return b.String()
}
