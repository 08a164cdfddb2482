package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchMetrics counts order dispatch activity.
type DispatchMetrics struct {
	sends        *prometheus.CounterVec
	sendFailures *prometheus.CounterVec
	reminders    *prometheus.CounterVec
	expiries     prometheus.Counter
}

// NewDispatchMetrics registers dispatch counters on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	sends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_messages_sent_total",
		Help: "Order messages delivered to recipients, by role.",
	}, []string{"role"})
	sendFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_send_failures_total",
		Help: "Per-recipient send failures, by role.",
	}, []string{"role"})
	reminders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_reminders_total",
		Help: "Reminder ticks that re-sent a notification, by stage.",
	}, []string{"stage"})
	expiries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_expired_total",
		Help: "Dispatch rows expired by reconciliation.",
	})
	reg.MustRegister(sends, sendFailures, reminders, expiries)
	return &DispatchMetrics{
		sends:        sends,
		sendFailures: sendFailures,
		reminders:    reminders,
		expiries:     expiries,
	}
}

// IncSend counts a successful send for the given role.
func (d *DispatchMetrics) IncSend(role string) {
	if d == nil || d.sends == nil {
		return
	}
	d.sends.WithLabelValues(normalizeLabel(role)).Inc()
}

// IncSendFailure counts a failed send for the given role.
func (d *DispatchMetrics) IncSendFailure(role string) {
	if d == nil || d.sendFailures == nil {
		return
	}
	d.sendFailures.WithLabelValues(normalizeLabel(role)).Inc()
}

// IncReminder counts a reminder re-send for the given stage.
func (d *DispatchMetrics) IncReminder(stage string) {
	if d == nil || d.reminders == nil {
		return
	}
	d.reminders.WithLabelValues(normalizeLabel(stage)).Inc()
}

// IncExpired counts a dispatch row expired during reconciliation.
func (d *DispatchMetrics) IncExpired() {
	if d == nil || d.expiries == nil {
		return
	}
	d.expiries.Inc()
}
