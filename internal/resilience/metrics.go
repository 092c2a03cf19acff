package resilience

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the breaker collectors. A nil *Metrics records nothing.
type Metrics struct {
	State       *prometheus.GaugeVec
	Transitions *prometheus.CounterVec
	Opened      *prometheus.CounterVec
	Attempts    *prometheus.CounterVec
}

// NewMetrics registers breaker and retry collectors on reg, reusing collectors
// that are already registered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open",
		}, []string{"target"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions",
		}, []string{"target", "from", "to"}),
		Opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_open_total",
			Help:      "Number of times a breaker transitioned into open state",
		}, []string{"target"}),
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_attempt_total",
			Help:      "Outbound HTTP attempts by target and outcome",
		}, []string{"target", "result"}),
	}
	m.State = register(reg, m.State)
	m.Transitions = register(reg, m.Transitions)
	m.Opened = register(reg, m.Opened)
	m.Attempts = register(reg, m.Attempts)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register resilience metric: %w", err))
	}
	return c
}

func (m *Metrics) setState(target string, s State) {
	if m == nil {
		return
	}
	m.State.WithLabelValues(target).Set(stateGaugeValue(s))
}

func (m *Metrics) transition(target string, from, to State) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(target, from.String(), to.String()).Inc()
	if to == Open {
		m.Opened.WithLabelValues(target).Inc()
	}
}

func (m *Metrics) attempt(target, result string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(target, result).Inc()
}
