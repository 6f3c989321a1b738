// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_transitions_total",
			Help: "Total number of state machine transitions attempted",
		},
		[]string{"transition", "outcome"},
	)

	TransitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "admission_transition_duration_seconds",
			Help: "Duration of transition processing in seconds",
		},
		[]string{"transition"},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_notifications_dispatched_total",
			Help: "Total number of notification records appended to the audit log",
		},
		[]string{"message_type", "render_path"},
	)

	LedgerReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_ledger_reservations_total",
			Help: "Total budget reservation attempts by result",
		},
		[]string{"result"},
	)

	LedgerRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loan_ledger_remaining",
			Help: "Remaining disbursable loan budget",
		},
	)

	PolicyExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_extractions_total",
			Help: "Policy rule extractions by rule key and confidence",
		},
		[]string{"rule", "confidence"},
	)
)
