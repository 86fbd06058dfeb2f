// Package metrics holds the prometheus collectors for external tool calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Transcoder struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewTranscoder registers the transcoder collectors on reg. A nil reg keeps
// the collectors unregistered.
func NewTranscoder(reg prometheus.Registerer) *Transcoder {
	m := &Transcoder{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clipcraft",
			Subsystem: "transcoder",
			Name:      "invocations_total",
			Help:      "External transcoder invocations by operation and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clipcraft",
			Subsystem: "transcoder",
			Name:      "duration_seconds",
			Help:      "Wall time of external transcoder invocations.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 180, 600},
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.invocations, m.duration)
	}
	return m
}

// Observe records one finished invocation. Safe on a nil receiver.
func (m *Transcoder) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.invocations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// WriteTextfile dumps everything in g to path in the text exposition format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
