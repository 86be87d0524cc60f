// Package meta defines the per-frame statistics record that travels with a
// frame buffer from the encoder statistics producer down to the mixer output.
//
// A Meta is immutable once attached to a frame: producers build a value,
// attach it, and from that moment on it is only read.
package meta

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/comparemixer/types"
	"github.com/xaionaro-go/typing"
)

type Meta struct {
	// SequenceNumber increases monotonically within a source stream.
	SequenceNumber uint64

	// PresentationTimestamp is the alignment key, in the stream clock domain.
	PresentationTimestamp time.Duration

	FrameType       types.FrameType
	EncodedSizeBits uint64

	EncodeDuration        typing.Optional[time.Duration]
	QuantizationParameter typing.Optional[float64]

	// QualityScore is set only by the comparator.
	QualityScore typing.Optional[float64]

	// EncoderName is the name of the encoder which produced the frame, if known.
	EncoderName string

	streams []StreamEntry
}

// StreamEntry describes the contribution of one input stream to a mixed output.
type StreamEntry struct {
	StreamID types.StreamID
	Present  bool

	SequenceNumber  typing.Optional[uint64]
	QualityScore    typing.Optional[float64]
	FrameType       types.FrameType
	EncodedSizeBits uint64
}

// WithStreams returns a copy of m which carries the given per-stream entries.
func (m Meta) WithStreams(entries []StreamEntry) Meta {
	m.streams = slices.Clone(entries)
	return m
}

// Streams returns a copy of the per-stream entries.
func (m *Meta) Streams() []StreamEntry {
	if m == nil {
		return nil
	}
	return slices.Clone(m.streams)
}

func (m *Meta) Stream(streamID types.StreamID) (StreamEntry, bool) {
	if m == nil {
		return StreamEntry{}, false
	}
	for _, e := range m.streams {
		if e.StreamID == streamID {
			return e, true
		}
	}
	return StreamEntry{}, false
}

func (m *Meta) EncodedSizeBytes() uint64 {
	return (m.EncodedSizeBits + 7) / 8
}

func (m *Meta) String() string {
	if m == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s pts:%v size:%s", m.SequenceNumber, m.FrameType.Letter(), m.PresentationTimestamp, humanize.Bytes(m.EncodedSizeBytes()))
	if m.EncoderName != "" {
		fmt.Fprintf(&b, " enc:%s", m.EncoderName)
	}
	if m.EncodeDuration.IsSet() {
		fmt.Fprintf(&b, " took:%v", m.EncodeDuration.Get())
	}
	if m.QuantizationParameter.IsSet() {
		fmt.Fprintf(&b, " qp:%.1f", m.QuantizationParameter.Get())
	}
	if m.QualityScore.IsSet() {
		fmt.Fprintf(&b, " score:%.3f", m.QualityScore.Get())
	}
	return b.String()
}
