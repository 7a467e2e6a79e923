// Package metrics registers the Prometheus instrumentation exported by
// the aggregator's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmailsProcessed counts every message pulled through the pipeline,
	// labelled by account and final status.
	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_processed_total",
			Help: "Total number of emails processed",
		},
		[]string{"account", "status"}, // status: success, failed
	)

	// EmailsClassified counts classification outcomes by category.
	EmailsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_classified_total",
			Help: "Total number of emails classified",
		},
		[]string{"category"},
	)

	// NotificationsSent counts webhook deliveries by sink and status.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"sink", "status"}, // sink: slack, webhook
	)

	// IdleCycles counts IDLE windows completed per account, labelled by
	// whether the window ended with a mailbox update.
	IdleCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imap_idle_cycles_total",
			Help: "Total number of completed IMAP IDLE cycles",
		},
		[]string{"account", "result"}, // result: update, timeout
	)
)

// RecordProcessed increments the processed counter for an account.
func RecordProcessed(account string, ok bool) {
	status := "success"
	if !ok {
		status = "failed"
	}
	EmailsProcessed.WithLabelValues(account, status).Inc()
}

// RecordClassified increments the classification counter for a category.
func RecordClassified(category string) {
	EmailsClassified.WithLabelValues(category).Inc()
}

// RecordNotification increments the notification counter for a sink.
func RecordNotification(sink string, ok bool) {
	status := "success"
	if !ok {
		status = "failed"
	}
	NotificationsSent.WithLabelValues(sink, status).Inc()
}
