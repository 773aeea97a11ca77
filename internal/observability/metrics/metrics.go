package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking and reconciliation flows.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	conflictsTotal   prometheus.Counter
	cancellations    prometheus.Counter
	compensations    prometheus.Counter
	reconciledSlots  prometheus.Counter
	assistantActions *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Total successful bookings",
		}, []string{"kind"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "conflicts_total",
			Help:      "Reservations lost to a concurrent booker",
		}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Total cancelled appointments",
		}),
		compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "compensations_total",
			Help:      "Multi-step bookings rolled back after partial failure",
		}),
		reconciledSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "reconciled_slots_total",
			Help:      "Orphaned reservations freed by the reconcile worker",
		}),
		assistantActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "assistant",
			Name:      "actions_total",
			Help:      "Dispatched assistant actions by outcome",
		}, []string{"action", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.bookingsTotal,
		m.conflictsTotal,
		m.cancellations,
		m.compensations,
		m.reconciledSlots,
		m.assistantActions,
	)
	return m
}

func (m *BookingMetrics) ObserveBooking(kind string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(kind).Inc()
}

func (m *BookingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *BookingMetrics) ObserveCancellation() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

func (m *BookingMetrics) ObserveCompensation() {
	if m == nil {
		return
	}
	m.compensations.Inc()
}

func (m *BookingMetrics) ObserveReconciledSlots(n int) {
	if m == nil {
		return
	}
	m.reconciledSlots.Add(float64(n))
}

func (m *BookingMetrics) ObserveAssistantAction(action string, status int) {
	if m == nil {
		return
	}
	label := "ok"
	if status >= 400 {
		label = "error"
	}
	m.assistantActions.WithLabelValues(action, label).Inc()
}
