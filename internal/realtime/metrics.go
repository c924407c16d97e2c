package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the realtime gateway.
//
// Metrics:
//   - realtime_sessions - connected sessions
//   - realtime_rooms - rooms with at least one member
//   - realtime_frames_sent_total{event} - frames enqueued to sessions
//   - realtime_frames_dropped_total - frames dropped on full send buffers
//   - realtime_inbound_events_total{event,outcome} - client events handled
//   - realtime_message_append_seconds - message store write latency
type Metrics struct {
	Sessions       prometheus.Gauge
	Rooms          prometheus.Gauge
	FramesSent     *prometheus.CounterVec
	FramesDropped  prometheus.Counter
	InboundEvents  *prometheus.CounterVec
	AppendDuration prometheus.Histogram
}

// NewMetrics registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_sessions",
			Help: "Number of connected websocket sessions",
		}),
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_rooms",
			Help: "Number of project rooms with at least one member",
		}),
		FramesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_frames_sent_total",
				Help: "Total number of frames enqueued to sessions",
			},
			[]string{"event"},
		),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_frames_dropped_total",
			Help: "Total number of frames dropped because a session buffer was full",
		}),
		InboundEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_inbound_events_total",
				Help: "Total number of client events handled",
			},
			[]string{"event", "outcome"},
		),
		AppendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "realtime_message_append_seconds",
			Help:    "Duration of message store writes in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
