package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for a riverine core. All
// methods are nil-safe so instrumentation points never need guarding.
type Metrics struct {
	eventsReceived  *prometheus.CounterVec
	eventsMalformed *prometheus.CounterVec
	eventsExpired   prometheus.Counter
	indexSize       prometheus.Gauge
	sinkSends       *prometheus.CounterVec
	sinkErrors      *prometheus.CounterVec
	sinkDropped     *prometheus.CounterVec
}

// NewMetrics creates and registers the riverine instruments with the
// given registerer. Pass prometheus.DefaultRegisterer for the process
// default, or a private registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riverine_events_received_total",
			Help: "Events accepted at the ingestion boundary, by transport.",
		}, []string{"transport"}),
		eventsMalformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riverine_events_malformed_total",
			Help: "Payloads rejected at the ingestion boundary, by transport.",
		}, []string{"transport"}),
		eventsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riverine_index_expired_total",
			Help: "Index entries removed by the expiry reaper.",
		}),
		indexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riverine_index_size",
			Help: "Current number of index entries.",
		}),
		sinkSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riverine_sink_sends_total",
			Help: "Successful sink deliveries, by sink.",
		}, []string{"sink"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riverine_sink_errors_total",
			Help: "Failed sink deliveries, by sink.",
		}, []string{"sink"}),
		sinkDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riverine_sink_dropped_total",
			Help: "Events shed because a sink queue was full, by sink.",
		}, []string{"sink"}),
	}
	reg.MustRegister(
		m.eventsReceived,
		m.eventsMalformed,
		m.eventsExpired,
		m.indexSize,
		m.sinkSends,
		m.sinkErrors,
		m.sinkDropped,
	)
	return m
}

// EventReceived counts one accepted event on a transport.
func (m *Metrics) EventReceived(transport string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(transport).Inc()
}

// EventMalformed counts one rejected payload on a transport.
func (m *Metrics) EventMalformed(transport string) {
	if m == nil {
		return
	}
	m.eventsMalformed.WithLabelValues(transport).Inc()
}

// EventsExpired counts entries removed by a reaper sweep.
func (m *Metrics) EventsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsExpired.Add(float64(n))
}

// SetIndexSize records the current index entry count.
func (m *Metrics) SetIndexSize(n int) {
	if m == nil {
		return
	}
	m.indexSize.Set(float64(n))
}

// SinkSend counts one successful delivery of a batch to a sink.
func (m *Metrics) SinkSend(sink string) {
	if m == nil {
		return
	}
	m.sinkSends.WithLabelValues(sink).Inc()
}

// SinkError counts one failed delivery to a sink.
func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// SinkDropped counts events shed because a sink queue was full.
func (m *Metrics) SinkDropped(sink string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sinkDropped.WithLabelValues(sink).Add(float64(n))
}
