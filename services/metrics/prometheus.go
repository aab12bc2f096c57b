package metricsvc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sameeradaveen/lms-new-main/core/collab"
)

const namespace = "collab"

// PrometheusObserver exports the relay outcomes as Prometheus metrics, on its own registry.
type PrometheusObserver struct {
	registry *prometheus.Registry

	connections     prometheus.Gauge
	joinsRejected   prometheus.Counter
	eventsRelayed   *prometheus.CounterVec
	eventRecipients *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
}

var _ collab.Observer = (*PrometheusObserver)(nil)

func NewPrometheusObserver() *PrometheusObserver {
	o := &PrometheusObserver{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of connections joined to a room.",
		}),
		joinsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_rejected_total",
			Help:      "Join requests rejected because the username is taken in the room.",
		}),
		eventsRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_relayed_total",
			Help:      "Outbound events sent, by event name.",
		}, []string{"event"}),
		eventRecipients: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_recipients_total",
			Help:      "Connections an outbound event was queued for, by event name.",
		}, []string{"event"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Inbound events dropped, by event name and reason.",
		}, []string{"event", "reason"}),
	}
	o.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		o.connections,
		o.joinsRejected,
		o.eventsRelayed,
		o.eventRecipients,
		o.eventsDropped,
	)
	return o
}

// Handler serves the registry in the Prometheus exposition format.
func (o *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{Registry: o.registry})
}

func (o *PrometheusObserver) ConnectionJoined(string) { o.connections.Inc() }
func (o *PrometheusObserver) ConnectionLeft(string)   { o.connections.Dec() }
func (o *PrometheusObserver) JoinRejected(string)     { o.joinsRejected.Inc() }

func (o *PrometheusObserver) EventRelayed(event string, recipients int) {
	o.eventsRelayed.WithLabelValues(event).Inc()
	o.eventRecipients.WithLabelValues(event).Add(float64(recipients))
}

func (o *PrometheusObserver) EventDropped(event, reason string) {
	// unknown event names come from clients: keep the label set bounded
	if reason == "unknown_event" {
		event = "unknown"
	}
	o.eventsDropped.WithLabelValues(event, reason).Inc()
}
