// Package metrics exposes run loop counters and gauges to Prometheus and
// serves them, along with a JSON health probe, over HTTP when a bind address
// is configured.
package metrics
