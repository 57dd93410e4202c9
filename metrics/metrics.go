// Package metrics wraps a Prometheus CounterVec for handshake phase
// transitions. It is purely observational: no core package reads a
// metric back to decide anything.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder records phase transitions. Construct with New; the zero
// value, which Noop() returns, records nothing.
type Recorder struct {
	phases *prometheus.CounterVec
}

// New registers a "handshake_phase_total" counter vector (labeled by
// role and phase) against reg and returns a Recorder backed by it. reg
// may be nil, in which case metrics are registered against the global
// default registerer. If the counter vector is already registered
// there, the existing one is reused.
func New(reg prometheus.Registerer) *Recorder {
	phases := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sshcore",
			Subsystem: "handshake",
			Name:      "phase_total",
			Help:      "Total number of handshake phase transitions observed.",
		},
		[]string{"role", "phase"},
	)
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(phases); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		phases = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return &Recorder{phases: phases}
}

// Noop returns a Recorder whose methods are safe no-ops, for tests and
// non-instrumented callers.
func Noop() *Recorder {
	return &Recorder{}
}

// Phase increments the counter for (role, phase). Safe to call on a
// nil *Recorder or one constructed with Noop().
func (r *Recorder) Phase(role, phase string) {
	if r == nil || r.phases == nil {
		return
	}
	r.phases.WithLabelValues(role, phase).Inc()
}
