package replacer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts expansion outcomes. A nil *Metrics is valid and counts
// nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	variants       prometheus.Counter
	decodeFailures prometheus.Counter
}

const (
	outcomePassthrough = "passthrough"
	outcomeExpanded    = "expanded"
	outcomeDropped     = "dropped"
)

// NewMetrics registers the subreq collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subreq",
			Name:      "requests_total",
			Help:      "Pending subrequests processed, by outcome.",
		}, []string{"outcome"}),
		variants: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subreq",
			Name:      "variants_total",
			Help:      "Concrete subrequests emitted by token expansion.",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subreq",
			Name:      "response_decode_failures_total",
			Help:      "Completed responses skipped because they could not be indexed.",
		}),
	}
	reg.MustRegister(m.requests, m.variants, m.decodeFailures)
	return m
}

func (m *Metrics) passthrough() {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcomePassthrough).Inc()
}

func (m *Metrics) expanded(n int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcomeExpanded).Inc()
	m.variants.Add(float64(n))
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcomeDropped).Inc()
}

func (m *Metrics) failures(n int) {
	if m == nil || n == 0 {
		return
	}
	m.decodeFailures.Add(float64(n))
}
