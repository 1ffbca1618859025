package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatlite_connected_clients",
		Help: "Number of currently registered connections",
	})

	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatlite_events_total",
		Help: "Total events handled by the hub, by type",
	}, []string{"type"})

	EventProcessingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatlite_event_processing_seconds",
		Help:    "Time to process each event type",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	RejectedConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatlite_rejected_connections_total",
		Help: "Connections turned away because the registry was full",
	})

	DroppedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatlite_dropped_frames_total",
		Help: "Outbound frames dropped because a recipient queue was full",
	})
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(EventProcessingDuration)
	prometheus.MustRegister(RejectedConnections)
	prometheus.MustRegister(DroppedFrames)
}
