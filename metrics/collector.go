// Package metrics exports the engine statistics as Prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xaionaro-go/comparemixer"
)

const namespace = "comparemixer"

type StatsSource interface {
	Stats(ctx context.Context) comparemixer.Statistics
}

var _ StatsSource = (*comparemixer.Engine)(nil)

type desc struct {
	*prometheus.Desc
	valueType prometheus.ValueType
}

func newDesc(
	name string,
	help string,
	valueType prometheus.ValueType,
	labels ...string,
) desc {
	return desc{
		Desc:      prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil),
		valueType: valueType,
	}
}

// Collector takes a statistics snapshot on every scrape.
type Collector struct {
	Source StatsSource

	outputs         desc
	sinkErrors      desc
	lateFrames      desc
	stalledStreams  desc
	waitExpirations desc
	skippedMetrics  desc
	scoreErrors     desc
	nonMonotonic    desc
	waitSeconds     desc
	poolLive        desc
	poolIdle        desc
	poolExhausted   desc

	queueLength   desc
	pushedFrames  desc
	droppedFrames desc
	missingFrames desc
	excluded      desc
	qualityTrend  desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(source StatsSource) *Collector {
	return &Collector{
		Source:          source,
		outputs:         newDesc("outputs_total", "Output frames delivered to the sink", prometheus.CounterValue),
		sinkErrors:      newDesc("sink_errors_total", "Output frames the sink failed to accept", prometheus.CounterValue),
		lateFrames:      newDesc("late_frames_total", "Frames which arrived after their slot was emitted", prometheus.CounterValue),
		stalledStreams:  newDesc("stalled_total", "Slots in which a stream was recorded as stalled", prometheus.CounterValue),
		waitExpirations: newDesc("wait_expirations_total", "Slots in which the wait for a stream expired", prometheus.CounterValue),
		skippedMetrics:  newDesc("skipped_metrics_total", "Slices mixed without scores due to a missing reference", prometheus.CounterValue),
		scoreErrors:     newDesc("score_errors_total", "Failures to score a frame against the reference", prometheus.CounterValue),
		nonMonotonic:    newDesc("non_monotonic_frames_total", "Frames discarded for an out-of-order timestamp", prometheus.CounterValue),
		waitSeconds:     newDesc("slot_wait_seconds", "Time spent waiting for a slot to complete", prometheus.GaugeValue, "quantile"),
		poolLive:        newDesc("pool_live_buffers", "Output buffers allocated by the pool", prometheus.GaugeValue),
		poolIdle:        newDesc("pool_idle_buffers", "Output buffers ready for reuse", prometheus.GaugeValue),
		poolExhausted:   newDesc("pool_exhausted_total", "Failures to obtain an output buffer", prometheus.CounterValue),

		queueLength:   newDesc("stream_queue_length", "Frames waiting in the stream queue", prometheus.GaugeValue, "stream"),
		pushedFrames:  newDesc("stream_pushed_frames_total", "Frames accepted into the stream queue", prometheus.CounterValue, "stream"),
		droppedFrames: newDesc("stream_dropped_frames_total", "Frames dropped by the backpressure policy", prometheus.CounterValue, "stream"),
		missingFrames: newDesc("stream_missing_total", "Slices emitted without a frame of the stream", prometheus.CounterValue, "stream"),
		excluded:      newDesc("stream_excluded", "Whether the stream is not waited for", prometheus.GaugeValue, "stream"),
		qualityTrend:  newDesc("stream_quality_score", "Smoothed quality score against the reference", prometheus.GaugeValue, "stream"),
	}
}

func (c *Collector) descs() []desc {
	return []desc{
		c.outputs, c.sinkErrors, c.lateFrames, c.stalledStreams,
		c.waitExpirations, c.skippedMetrics, c.scoreErrors, c.nonMonotonic,
		c.waitSeconds, c.poolLive, c.poolIdle, c.poolExhausted,
		c.queueLength, c.pushedFrames, c.droppedFrames, c.missingFrames,
		c.excluded, c.qualityTrend,
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs() {
		ch <- d.Desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.Source.Stats(context.Background())

	send := func(d desc, value float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d.Desc, d.valueType, value, labels...)
	}

	send(c.outputs, float64(stats.Outputs))
	send(c.sinkErrors, float64(stats.SinkErrors))
	send(c.lateFrames, float64(stats.LateFrames))
	send(c.stalledStreams, float64(stats.StalledStreams))
	send(c.waitExpirations, float64(stats.WaitExpirations))
	send(c.skippedMetrics, float64(stats.SkippedMetrics))
	send(c.scoreErrors, float64(stats.ScoreErrors))
	send(c.nonMonotonic, float64(stats.NonMonotonic))
	send(c.waitSeconds, stats.WaitP50.Seconds(), "0.5")
	send(c.waitSeconds, stats.WaitP99.Seconds(), "0.99")
	send(c.poolLive, float64(stats.Pool.Live))
	send(c.poolIdle, float64(stats.Pool.Idle))
	send(c.poolExhausted, float64(stats.Pool.Exhausted))

	for _, st := range stats.Streams {
		stream := st.StreamID.String()
		send(c.queueLength, float64(st.Queue.QueueLength), stream)
		send(c.pushedFrames, float64(st.Queue.Pushed), stream)
		send(c.droppedFrames, float64(st.Queue.Dropped), stream)
		send(c.missingFrames, float64(st.Missing), stream)
		excluded := 0.0
		if st.Excluded {
			excluded = 1
		}
		send(c.excluded, excluded, stream)
		if st.QualityTrend.IsSet() {
			send(c.qualityTrend, st.QualityTrend.Get(), stream)
		}
	}
}
