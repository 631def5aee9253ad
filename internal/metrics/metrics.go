// Package metrics exposes engine counters in the Prometheus format.
package metrics

import (
	"time"

	"github.com/matheus3301/nexus/internal/bus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one client instance. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	MessagesReceived prometheus.Counter
	MessagesSent     *prometheus.CounterVec
	StatusUpdates    *prometheus.CounterVec
	ReadReceipts     *prometheus.CounterVec
	StaleResponses   *prometheus.CounterVec
	FetchErrors      *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	TransportOnline  prometheus.Gauge
}

// New registers the collectors on a fresh registry. When b is set, the bus
// drop counter is exported too.
func New(b *bus.Bus) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	m := &Metrics{
		Registry: reg,
		MessagesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "nexus_messages_received_total",
			Help: "Chat messages pushed to the private inbox",
		}),
		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_messages_sent_total",
			Help: "Messages composed locally",
		}, []string{"result"}), // "published" or "offline"
		StatusUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_status_updates_total",
			Help: "Status pushes by outcome",
		}, []string{"outcome"}), // "applied" or "ignored"
		ReadReceipts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_read_receipts_total",
			Help: "Bulk read receipts issued",
		}, []string{"via"}), // "stomp" or "rest"
		StaleResponses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_stale_responses_total",
			Help: "Fetch responses discarded because a newer request superseded them",
		}, []string{"kind"}),
		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_fetch_errors_total",
			Help: "Failed REST requests",
		}, []string{"op"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nexus_fetch_duration_seconds",
			Help:    "REST request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
		TransportOnline: f.NewGauge(prometheus.GaugeOpts{
			Name: "nexus_transport_online",
			Help: "1 while the real-time connection is online",
		}),
	}
	reg.MustRegister(collectors.NewGoCollector())
	if b != nil {
		f.NewCounterFunc(prometheus.CounterOpts{
			Name: "nexus_bus_dropped_total",
			Help: "Bus deliveries skipped because a subscriber was full",
		}, func() float64 { return float64(b.Dropped()) })
	}
	return m
}

func (m *Metrics) Received() {
	if m == nil {
		return
	}
	m.MessagesReceived.Inc()
}

func (m *Metrics) Sent(published bool) {
	if m == nil {
		return
	}
	result := "offline"
	if published {
		result = "published"
	}
	m.MessagesSent.WithLabelValues(result).Inc()
}

// StatusUpdate records one status push; changed is how many lines it affected.
func (m *Metrics) StatusUpdate(changed int) {
	if m == nil {
		return
	}
	outcome := "ignored"
	if changed > 0 {
		outcome = "applied"
	}
	m.StatusUpdates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReadReceipt(via string) {
	if m == nil {
		return
	}
	m.ReadReceipts.WithLabelValues(via).Inc()
}

func (m *Metrics) Stale(kind string) {
	if m == nil {
		return
	}
	m.StaleResponses.WithLabelValues(kind).Inc()
}

// Fetch records a completed REST request.
func (m *Metrics) Fetch(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.TransportOnline.Set(1)
	} else {
		m.TransportOnline.Set(0)
	}
}
