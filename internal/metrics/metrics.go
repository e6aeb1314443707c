// Package metrics exposes Prometheus instrumentation for the lock engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Transitions     *prometheus.CounterVec // to=UNLOCKED|LOCKING|LOCKED|UNLOCKING
	Commands        *prometheus.CounterVec // intent, result=success|fail|unavailable
	ReleaseOutcomes *prometheus.CounterVec // tier=role|legacy|system_default|manual
	Reasserts       *prometheus.CounterVec // action=reasserted|throttled
	Suppressed      prometheus.Counter

	Locked           prometheus.Gauge
	SecondsRemaining prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focuslock_transitions_total",
				Help: "Lock state transitions by target state",
			},
			[]string{"to"},
		),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focuslock_commands_total",
				Help: "Privileged commands issued by intent and result",
			},
			[]string{"intent", "result"},
		),
		ReleaseOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focuslock_release_outcomes_total",
				Help: "Launcher release outcomes by the tier that finished the cascade",
			},
			[]string{"tier"},
		),
		Reasserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focuslock_watchdog_reasserts_total",
				Help: "Watchdog intrusion handling by action",
			},
			[]string{"action"},
		),
		Suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "focuslock_notifications_suppressed_total",
			Help: "Notification-posted signals answered with a cancel-all",
		}),
		Locked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "focuslock_locked",
			Help: "1 while a focus lock is active",
		}),
		SecondsRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "focuslock_seconds_remaining",
			Help: "Seconds until the active lock expires",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Transitions,
			m.Commands,
			m.ReleaseOutcomes,
			m.Reasserts,
			m.Suppressed,
			m.Locked,
			m.SecondsRemaining,
		)
	}
	return m
}

// Transition records a state change.
func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

// Command records one privileged command execution.
func (m *Metrics) Command(intent, result string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(intent, result).Inc()
}

// Release records the terminal tier of a release cascade.
func (m *Metrics) Release(tier string) {
	if m == nil {
		return
	}
	m.ReleaseOutcomes.WithLabelValues(tier).Inc()
}

// Reassert records watchdog handling of one intrusion.
func (m *Metrics) Reassert(action string) {
	if m == nil {
		return
	}
	m.Reasserts.WithLabelValues(action).Inc()
}

// NotificationSuppressed records one cancel-all.
func (m *Metrics) NotificationSuppressed() {
	if m == nil {
		return
	}
	m.Suppressed.Inc()
}

// Status updates the lock gauges.
func (m *Metrics) Status(locked bool, secondsRemaining int64) {
	if m == nil {
		return
	}
	if locked {
		m.Locked.Set(1)
	} else {
		m.Locked.Set(0)
	}
	m.SecondsRemaining.Set(float64(secondsRemaining))
}
