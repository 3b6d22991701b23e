package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingOutcome = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pitstop",
			Name:      "booking_outcome_total",
			Help:      "Count of booking submissions by outcome.",
		},
		[]string{"outcome"},
	)

	slotRefresh = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pitstop",
			Name:      "slot_refresh_total",
			Help:      "Count of slot list fetches by trigger.",
		},
		[]string{"trigger"},
	)

	staleSlotDrop = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pitstop",
			Name:      "stale_slot_responses_total",
			Help:      "Count of slot fetch responses discarded as stale.",
		},
	)

	backendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pitstop",
			Name:      "backend_errors_total",
			Help:      "Count of backend call failures by error kind.",
		},
		[]string{"kind"},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pitstop",
			Name:      "notifications_sent_total",
			Help:      "Count of status-change notifications by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingOutcome, slotRefresh, staleSlotDrop, backendErrors, notificationsSent)
	})
}

func IncBookingOutcome(outcome string) {
	bookingOutcome.WithLabelValues(outcome).Inc()
}

func IncSlotRefresh(trigger string) {
	slotRefresh.WithLabelValues(trigger).Inc()
}

func IncStaleSlotDrop() {
	staleSlotDrop.Inc()
}

func IncBackendError(kind string) {
	backendErrors.WithLabelValues(kind).Inc()
}

func IncNotification(result string) {
	notificationsSent.WithLabelValues(result).Inc()
}
