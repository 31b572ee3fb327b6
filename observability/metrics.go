package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_outcomes_total",
			Help: "Payment webhook notifications by outcome",
		},
		[]string{"outcome"},
	)

	VerifyOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_outcomes_total",
			Help: "Verify-now calls by outcome",
		},
		[]string{"outcome"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_status_transitions_total",
			Help: "Committed ticket payment status transitions",
		},
		[]string{"to"},
	)

	ArtifactRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_artifact_renders_total",
			Help: "Ticket PDF renders",
		},
		[]string{"status"},
	)

	ArtifactRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticket_artifact_render_duration_seconds",
			Help:    "Duration of ticket PDF renders",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_notifications_sent_total",
			Help: "Ticket notifications handed to the delivery backend",
		},
		[]string{"kind", "status"},
	)
)

func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
