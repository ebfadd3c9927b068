package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "burnnote"

var (
	MessagesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "messages_created_total", Help: "Messages created"},
	)
	CreateConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "create_conflicts_total", Help: "Token collisions retried during create"},
	)
	MessageViews = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "message_views_total", Help: "Message views by outcome"},
		[]string{"outcome"},
	)
	MessagesDestroyed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "messages_destroyed_total", Help: "Messages destroyed by their reader"},
	)
	MessagesPurged = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "messages_purged_total", Help: "Expired messages removed by purge"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Request duration seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		MessagesCreated,
		CreateConflicts,
		MessageViews,
		MessagesDestroyed,
		MessagesPurged,
		RequestsTotal,
		ReqDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
