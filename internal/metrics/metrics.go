package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Mutations        prometheus.Counter
	SnapshotsWritten prometheus.Counter
	SnapshotFailures prometheus.Counter
	EnqueuedJobs     prometheus.Counter
	ProcessedJobs    prometheus.Counter
	FailedJobs       prometheus.Counter
	HTTPRequests     prometheus.Counter
	TelegramUpdates  prometheus.Counter
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			Mutations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "botadmin",
				Name:      "store_mutations_total",
				Help:      "Total store mutations applied",
			}),
			SnapshotsWritten: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "botadmin",
				Name:      "snapshots_written_total",
				Help:      "Total state snapshots persisted",
			}),
			SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "botadmin",
				Name:      "snapshot_failures_total",
				Help:      "Total snapshot writes that failed",
			}),
			EnqueuedJobs: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "botadmin",
				Name:      "queue_enqueued_total",
				Help:      "Total file jobs enqueued to redis stream",
			}),
			ProcessedJobs: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "botadmin",
				Name:      "queue_processed_total",
				Help:      "Total file jobs successfully processed",
			}),
			FailedJobs: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "botadmin",
				Name:      "queue_failed_total",
				Help:      "Total file jobs failed during processing",
			}),
			HTTPRequests: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "botadmin",
				Name:      "http_requests_total",
				Help:      "Total API requests served",
			}),
			TelegramUpdates: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "botadmin",
				Name:      "telegram_updates_total",
				Help:      "Total telegram updates received by channel bridges",
			}),
		}
		prometheus.MustRegister(
			global.Mutations,
			global.SnapshotsWritten,
			global.SnapshotFailures,
			global.EnqueuedJobs,
			global.ProcessedJobs,
			global.FailedJobs,
			global.HTTPRequests,
			global.TelegramUpdates,
		)
	})
	return global
}
