package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters for lead capture flows.
type IntakeMetrics struct {
	leadsCreated       *prometheus.CounterVec
	storeDegraded      *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	dialogueOutcomes   *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		leadsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crystalcare",
			Subsystem: "leads",
			Name:      "created_total",
			Help:      "Total leads appended to the store",
		}, []string{"source"}),
		storeDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crystalcare",
			Subsystem: "leads",
			Name:      "store_degraded_total",
			Help:      "Lead store reads or writes that fell back to defaults",
		}, []string{"reason"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crystalcare",
			Subsystem: "notify",
			Name:      "dispatch_total",
			Help:      "Confirmation notifications by delivery status",
		}, []string{"status"}),
		dialogueOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crystalcare",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns by outcome",
		}, []string{"outcome"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crystalcare",
			Subsystem: "booking",
			Name:      "validation_failures_total",
			Help:      "Booking wizard advances rejected by validation",
		}, []string{"step"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.leadsCreated, m.storeDegraded, m.notifications, m.dialogueOutcomes, m.validationFailures)
	return m
}

func (m *IntakeMetrics) ObserveLeadCreated(source string) {
	if m == nil {
		return
	}
	m.leadsCreated.WithLabelValues(source).Inc()
}

func (m *IntakeMetrics) ObserveLeadStoreDegraded(reason string) {
	if m == nil {
		return
	}
	m.storeDegraded.WithLabelValues(reason).Inc()
}

func (m *IntakeMetrics) ObserveNotification(status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(status).Inc()
}

func (m *IntakeMetrics) ObserveDialogue(outcome string) {
	if m == nil {
		return
	}
	m.dialogueOutcomes.WithLabelValues(outcome).Inc()
}

func (m *IntakeMetrics) ObserveValidationFailure(step string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(step).Inc()
}
