// Package avpacket derives encoder statistics from libav packets.
package avpacket

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/comparemixer/frame"
	"github.com/xaionaro-go/comparemixer/logger"
	"github.com/xaionaro-go/comparemixer/statsproducer"
	"github.com/xaionaro-go/comparemixer/ts"
	"github.com/xaionaro-go/comparemixer/types"
)

func TimeBase(r astiav.Rational) types.Rational {
	return types.Rational{Num: r.Num(), Den: r.Den()}
}

// Source converts the packets of one encoded stream.
type Source struct {
	Tracker *statsproducer.Tracker
	Clock   *ts.ClockCalculator
}

func NewSource(
	tracker *statsproducer.Tracker,
	timeBase astiav.Rational,
) *Source {
	return &Source{
		Tracker: tracker,
		Clock:   ts.NewClockCalculator(TimeBase(timeBase)),
	}
}

func (s *Source) Encoded(
	ctx context.Context,
	pkt *astiav.Packet,
) (statsproducer.Encoded, error) {
	pts, ok := s.Clock.ToDuration(ctx, pkt.Pts())
	if !ok {
		return statsproducer.Encoded{}, fmt.Errorf("the packet has no presentation timestamp")
	}
	frameType := types.FrameTypeUnknown
	if pkt.Flags().Has(astiav.PacketFlagKey) {
		frameType = types.FrameTypeKey
	}
	return statsproducer.Encoded{
		PresentationTimestamp: pts,
		FrameType:             frameType,
		SizeBytes:             uint64(pkt.Size()),
	}, nil
}

// Observe attaches the statistics of the packet to the frame; the frame
// timestamp is set to the packet presentation timestamp.
func (s *Source) Observe(
	ctx context.Context,
	f *frame.Frame,
	pkt *astiav.Packet,
) error {
	enc, err := s.Encoded(ctx, pkt)
	if err != nil {
		return err
	}
	logger.Tracef(ctx, "packet pts:%d size:%d -> %v", pkt.Pts(), pkt.Size(), enc.PresentationTimestamp)
	if err := s.Tracker.Observe(ctx, f, enc); err != nil {
		return err
	}
	f.Timestamp = enc.PresentationTimestamp
	return nil
}
