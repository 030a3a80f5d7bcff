package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemindersClaimed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_claimed_total",
			Help: "Total number of (meeting, bucket) reminders claimed for delivery",
		},
		[]string{"bucket"},
	)

	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total number of push messages accepted by a push service",
		},
		[]string{"bucket"},
	)

	PushSendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_send_failures_total",
			Help: "Total number of failed push sends by reason",
		},
		[]string{"reason"},
	)

	SubscriptionsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_subscriptions_pruned_total",
			Help: "Total number of subscriptions deleted after HTTP 410",
		},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "dispatch_cycle_duration_seconds",
			Help: "Duration of one dispatch cycle in seconds",
		},
	)
)
