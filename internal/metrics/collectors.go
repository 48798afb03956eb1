package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "tickd"

// Collectors records run loop activity per identity.
type Collectors struct {
	registry       *prometheus.Registry
	ticks          *prometheus.CounterVec
	callbackErrors *prometheus.CounterVec
	shutdowns      *prometheus.CounterVec
	running        *prometheus.GaugeVec
	elapsed        *prometheus.GaugeVec
}

// NewCollectors registers the tickd metrics, plus the Go runtime and process
// collectors, on a dedicated registry.
func NewCollectors() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Ticks that reached the unit of work.",
		}, []string{"identity"}),
		callbackErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_errors_total",
			Help:      "Units of work that returned an error or panicked.",
		}, []string{"identity"}),
		shutdowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shutdowns_total",
			Help:      "Shutdowns by trigger.",
		}, []string{"identity", "cause"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the identity's run loop is active.",
		}, []string{"identity"}),
		elapsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "elapsed_seconds",
			Help:      "Seconds since the run loop started.",
		}, []string{"identity"}),
	}
	c.registry.MustRegister(
		c.ticks,
		c.callbackErrors,
		c.shutdowns,
		c.running,
		c.elapsed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the registry for HTTP handlers and tests.
func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

func (c *Collectors) Tick(identity string) {
	c.ticks.WithLabelValues(identity).Inc()
}

func (c *Collectors) CallbackError(identity string) {
	c.callbackErrors.WithLabelValues(identity).Inc()
}

func (c *Collectors) Shutdown(identity, cause string) {
	c.shutdowns.WithLabelValues(identity, cause).Inc()
}

func (c *Collectors) SetRunning(identity string, running bool) {
	value := 0.0
	if running {
		value = 1
	}
	c.running.WithLabelValues(identity).Set(value)
}

func (c *Collectors) SetElapsed(identity string, seconds float64) {
	c.elapsed.WithLabelValues(identity).Set(seconds)
}
