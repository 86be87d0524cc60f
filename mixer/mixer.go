// Package mixer turns aligned slices into output frames: it composites the
// source frames into a fixed layout and/or scores them against a reference
// stream.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/xaionaro-go/comparemixer/frame"
	"github.com/xaionaro-go/comparemixer/indicator"
	"github.com/xaionaro-go/comparemixer/logger"
	"github.com/xaionaro-go/comparemixer/meta"
	"github.com/xaionaro-go/comparemixer/mixer/overlay"
	"github.com/xaionaro-go/comparemixer/synchronizer"
	"github.com/xaionaro-go/comparemixer/types"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type streamInfo struct {
	StreamID types.StreamID
	Cell     int
}

// Mixer is used by a single consumer goroutine (Mix); streams may be
// added and removed concurrently.
type Mixer struct {
	Config    Config
	FramePool *frame.Pool

	locker    xsync.Mutex
	streams   []streamInfo
	reference typing.Optional[types.StreamID]

	overlay *overlay.Text
	trend   *indicator.Trend[types.StreamID]

	CountSlices         atomic.Uint64
	CountSkippedMetrics atomic.Uint64
	CountScoreErrors    atomic.Uint64
}

func New(cfg Config, framePool *frame.Pool) (*Mixer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Mixer{
		Config:    cfg,
		FramePool: framePool,
		overlay:   overlay.New(),
		trend:     indicator.NewTrend[types.StreamID](indicator.DefaultTrendWindow),
	}, nil
}

func (m *Mixer) String() string {
	w, h := m.Config.OutputSize()
	return fmt.Sprintf("Mixer(%s, %s, %dx%d)", m.Config.Mode, m.Config.Layout, w, h)
}

// AddStream assigns a cell to the stream: the hinted one if given, otherwise
// the first free one. A stream which does not fit is only scored.
func (m *Mixer) AddStream(
	ctx context.Context,
	streamID types.StreamID,
	layoutHint typing.Optional[int],
	isReference bool,
) error {
	return xsync.DoR1(ctx, &m.locker, func() error {
		return m.addStreamLocked(ctx, streamID, layoutHint, isReference)
	})
}

func (m *Mixer) addStreamLocked(
	ctx context.Context,
	streamID types.StreamID,
	layoutHint typing.Optional[int],
	isReference bool,
) error {
	occupied := map[int]types.StreamID{}
	for _, s := range m.streams {
		if s.StreamID == streamID {
			return fmt.Errorf("%s is already added", streamID)
		}
		if s.Cell != noCell {
			occupied[s.Cell] = s.StreamID
		}
	}
	if isReference && m.reference.IsSet() {
		return fmt.Errorf("the reference is already %s", m.reference.Get())
	}

	cell := noCell
	if layoutHint.IsSet() {
		cell = layoutHint.Get()
		if cell < 0 || cell >= m.Config.CellCount() {
			return fmt.Errorf("the layout hint %d is out of range [0, %d)", cell, m.Config.CellCount())
		}
		if other, ok := occupied[cell]; ok {
			return fmt.Errorf("the cell %d is already occupied by %s", cell, other)
		}
	} else {
		for idx := 0; idx < m.Config.CellCount(); idx++ {
			if _, ok := occupied[idx]; !ok {
				cell = idx
				break
			}
		}
	}
	if cell == noCell && m.Config.Mode.Composites() {
		logger.Warnf(ctx, "no free cell for %s: it will not be displayed", streamID)
	}

	m.streams = append(m.streams, streamInfo{StreamID: streamID, Cell: cell})
	if isReference {
		m.reference = typing.Opt(streamID)
	}
	return nil
}

func (m *Mixer) RemoveStream(
	ctx context.Context,
	streamID types.StreamID,
) {
	m.locker.Do(ctx, func() {
		m.streams = slices.DeleteFunc(m.streams, func(s streamInfo) bool {
			return s.StreamID == streamID
		})
		if m.reference.IsSet() && m.reference.Get() == streamID {
			m.reference = typing.Optional[types.StreamID]{}
		}
	})
	m.trend.Remove(ctx, streamID)
}

func (m *Mixer) Reference(ctx context.Context) typing.Optional[types.StreamID] {
	return xsync.DoR1(ctx, &m.locker, func() typing.Optional[types.StreamID] {
		return m.reference
	})
}

// Cell returns the layout cell of the stream, if it is displayed.
func (m *Mixer) Cell(ctx context.Context, streamID types.StreamID) (int, bool) {
	return xsync.DoR2(ctx, &m.locker, func() (int, bool) {
		for _, s := range m.streams {
			if s.StreamID == streamID {
				return s.Cell, s.Cell != noCell
			}
		}
		return noCell, false
	})
}

// Mix produces exactly one output frame for the slice and releases the
// slice's source frames. The only error is a failure to obtain the output
// frame from the pool.
func (m *Mixer) Mix(
	ctx context.Context,
	slice *synchronizer.Slice,
) (_ret *frame.Frame, _err error) {
	logger.Tracef(ctx, "Mix(%s)", slice)
	defer func() { logger.Tracef(ctx, "/Mix(%s): %v %v", slice, _ret, _err) }()
	defer slice.Release(ctx)

	streams, reference := xsync.DoR2(ctx, &m.locker, func() ([]streamInfo, typing.Optional[types.StreamID]) {
		return slices.Clone(m.streams), m.reference
	})

	width, height := 0, 0
	if m.Config.Mode.Composites() {
		width, height = m.Config.OutputSize()
	}
	out, err := m.FramePool.AcquireRGBA(ctx, width, height)
	if err != nil {
		return nil, fmt.Errorf("unable to acquire an output frame: %w", err)
	}
	out.Timestamp = slice.Timestamp

	var scores map[types.StreamID]float64
	if m.Config.Mode.ComputesMetrics() {
		scores, err = m.score(ctx, slice, reference)
		if err != nil {
			var errRef ErrReferenceUnavailable
			if !errors.As(err, &errRef) {
				out.Release(ctx)
				return nil, err
			}
			m.CountSkippedMetrics.Inc()
			logger.Debugf(ctx, "skipping metrics: %v", err)
		}
	}

	if m.Config.Mode.Composites() {
		m.composite(ctx, out.Image, slice, streams, scores)
	}

	if err := out.SetMeta(m.buildMeta(slice, scores)); err != nil {
		out.Release(ctx)
		return nil, fmt.Errorf("unable to attach the metadata: %w", err)
	}
	out.Finalize()
	m.CountSlices.Inc()
	return out, nil
}

// score compares every present non-reference frame to the reference frame;
// missing streams get no score.
func (m *Mixer) score(
	ctx context.Context,
	slice *synchronizer.Slice,
	reference typing.Optional[types.StreamID],
) (map[types.StreamID]float64, error) {
	if !reference.IsSet() {
		return nil, ErrReferenceUnavailable{Sequence: slice.Sequence}
	}
	refFrame := slice.Frame(reference.Get())
	if refFrame == nil || refFrame.Image == nil {
		return nil, ErrReferenceUnavailable{
			Sequence:    slice.Sequence,
			ReferenceID: reference,
		}
	}

	refSize := refFrame.Image.Bounds().Size()
	scores := map[types.StreamID]float64{}
	for _, e := range slice.Entries {
		if e.StreamID == reference.Get() || !e.IsPresent() || e.Frame.Image == nil {
			continue
		}
		distorted := scale(e.Frame.Image, refSize.X, refSize.Y, m.Config.ScalingPolicy)
		score, err := m.Config.Metric.Score(refFrame.Image, distorted)
		if err != nil {
			m.CountScoreErrors.Inc()
			logger.Warnf(ctx, "unable to score %s against %s: %v", e.StreamID, reference.Get(), err)
			continue
		}
		scores[e.StreamID] = score
		m.trend.Update(ctx, e.StreamID, score)
	}
	return scores, nil
}

func (m *Mixer) composite(
	ctx context.Context,
	dst *image.RGBA,
	slice *synchronizer.Slice,
	streams []streamInfo,
	scores map[types.StreamID]float64,
) {
	fill(dst, dst.Bounds(), m.Config.PlaceholderColor)
	for _, s := range streams {
		if s.Cell == noCell {
			continue
		}
		f := slice.Frame(s.StreamID)
		if f == nil || f.Image == nil {
			continue
		}
		m.Config.drawCell(dst, s.Cell, f.Image)
		if m.Config.StatsOverlay {
			m.overlay.Draw(dst, m.Config.cellRect(s.Cell), overlayLines(s.StreamID, f.Meta(), scores))
		}
	}
	logger.Tracef(ctx, "composited %d streams", slice.PresentCount())
}

func overlayLines(
	streamID types.StreamID,
	m *meta.Meta,
	scores map[types.StreamID]float64,
) []string {
	lines := []string{streamID.String()}
	if m != nil {
		if m.EncoderName != "" {
			lines = append(lines, m.EncoderName)
		}
		lines = append(lines, m.String())
	}
	if score, ok := scores[streamID]; ok {
		lines = append(lines, fmt.Sprintf("score: %.2f", score))
	}
	return lines
}

func (m *Mixer) buildMeta(
	slice *synchronizer.Slice,
	scores map[types.StreamID]float64,
) meta.Meta {
	result := meta.Meta{
		SequenceNumber:        slice.Sequence,
		PresentationTimestamp: slice.Timestamp,
	}
	if anchor := slice.Frame(slice.Anchor); anchor != nil && anchor.Meta() != nil {
		result.FrameType = anchor.Meta().FrameType
	}

	entries := make([]meta.StreamEntry, 0, len(slice.Entries))
	var scoreSum float64
	for _, e := range slice.Entries {
		entry := meta.StreamEntry{
			StreamID: e.StreamID,
			Present:  e.IsPresent(),
		}
		if e.IsPresent() {
			if src := e.Frame.Meta(); src != nil {
				entry.SequenceNumber = typing.Opt(src.SequenceNumber)
				entry.FrameType = src.FrameType
				entry.EncodedSizeBits = src.EncodedSizeBits
				result.EncodedSizeBits += src.EncodedSizeBits
			}
		}
		if score, ok := scores[e.StreamID]; ok {
			entry.QualityScore = typing.Opt(score)
			scoreSum += score
		}
		entries = append(entries, entry)
	}
	if len(scores) > 0 {
		result.QualityScore = typing.Opt(scoreSum / float64(len(scores)))
	}
	return result.WithStreams(entries)
}

type StreamStatistics struct {
	StreamID     types.StreamID
	Cell         typing.Optional[int]
	IsReference  bool
	QualityTrend typing.Optional[float64]
}

type Statistics struct {
	Slices         uint64
	SkippedMetrics uint64
	ScoreErrors    uint64
	Streams        []StreamStatistics
}

func (m *Mixer) Stats(ctx context.Context) Statistics {
	stats := Statistics{
		Slices:         m.CountSlices.Load(),
		SkippedMetrics: m.CountSkippedMetrics.Load(),
		ScoreErrors:    m.CountScoreErrors.Load(),
	}
	streams, reference := xsync.DoR2(ctx, &m.locker, func() ([]streamInfo, typing.Optional[types.StreamID]) {
		return slices.Clone(m.streams), m.reference
	})
	for _, s := range streams {
		st := StreamStatistics{
			StreamID:    s.StreamID,
			IsReference: reference.IsSet() && reference.Get() == s.StreamID,
		}
		if s.Cell != noCell {
			st.Cell = typing.Opt(s.Cell)
		}
		if v, ok := m.trend.Get(ctx, s.StreamID); ok {
			st.QualityTrend = typing.Opt(v)
		}
		stats.Streams = append(stats.Streams, st)
	}
	return stats
}
