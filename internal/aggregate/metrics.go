// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/trialscout/internal/sources"
	"github.com/pdiddy/trialscout/pkg/types"
)

// Metrics holds the per-source Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	fetches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	records  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trialscout",
			Name:      "source_fetches_total",
			Help:      "Source adapter calls by outcome.",
		}, []string{"source", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trialscout",
			Name:      "source_fetch_duration_seconds",
			Help:      "Source adapter call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"source"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trialscout",
			Name:      "source_records_total",
			Help:      "Normalized records returned per source.",
		}, []string{"source"}),
	}
	for _, c := range []prometheus.Collector{m.fetches, m.duration, m.records} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Outcome labels.
const (
	outcomeOK        = "ok"
	outcomeTransport = "transport_error"
	outcomeMalformed = "malformed"
)

func (m *Metrics) observe(kind types.SourceKind, err error, elapsed time.Duration, n int) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	switch {
	case err == nil:
	case sources.IsMalformed(err):
		outcome = outcomeMalformed
	default:
		outcome = outcomeTransport
	}
	m.fetches.WithLabelValues(string(kind), outcome).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	m.records.WithLabelValues(string(kind)).Add(float64(n))
}
