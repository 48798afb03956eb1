package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

// gathered returns the value of the series name whose labels include want.
func gathered(t *testing.T, c *Collectors, name string, want map[string]string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if !labelsMatch(metric, want) {
				continue
			}
			if metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatalf("series %s%v not found", name, want)
	return 0
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if value, ok := want[pair.GetName()]; ok {
			if value != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

func TestCollectorsRecordPerIdentity(t *testing.T) {
	c := NewCollectors()
	c.Tick("nightly")
	c.Tick("nightly")
	c.Tick("hourly")
	c.CallbackError("nightly")
	c.Shutdown("nightly", "timeout")
	c.SetRunning("nightly", true)
	c.SetElapsed("nightly", 2.5)

	if got := gathered(t, c, "tickd_ticks_total", map[string]string{"identity": "nightly"}); got != 2 {
		t.Fatalf("ticks = %v, want 2", got)
	}
	if got := gathered(t, c, "tickd_callback_errors_total", map[string]string{"identity": "nightly"}); got != 1 {
		t.Fatalf("callback errors = %v, want 1", got)
	}
	if got := gathered(t, c, "tickd_shutdowns_total", map[string]string{"identity": "nightly", "cause": "timeout"}); got != 1 {
		t.Fatalf("shutdowns = %v, want 1", got)
	}
	if got := gathered(t, c, "tickd_running", map[string]string{"identity": "nightly"}); got != 1 {
		t.Fatalf("running = %v, want 1", got)
	}
	c.SetRunning("nightly", false)
	if got := gathered(t, c, "tickd_running", map[string]string{"identity": "nightly"}); got != 0 {
		t.Fatalf("running = %v, want 0", got)
	}
	if got := gathered(t, c, "tickd_elapsed_seconds", map[string]string{"identity": "nightly"}); got != 2.5 {
		t.Fatalf("elapsed = %v, want 2.5", got)
	}
}

func TestNewServerDisabledWithoutBind(t *testing.T) {
	s := NewServer("  ", NewCollectors(), nil, nil)
	if s != nil {
		t.Fatal("expected nil server for empty bind")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil server: %v", err)
	}
	s.Stop()
}

func TestServerRoutes(t *testing.T) {
	c := NewCollectors()
	c.Tick("nightly")
	s := NewServer("127.0.0.1:0", c, func() Health {
		return Health{Identity: "nightly", State: "running", Ticks: 1}
	}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `tickd_ticks_total{identity="nightly"} 1`) {
		t.Fatalf("metrics body missing ticks counter:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/healthz status = %d", rec.Code)
	}
	var health Health
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Identity != "nightly" || health.State != "running" || health.Ticks != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestServerStartAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewServer("127.0.0.1:0", NewCollectors(), nil, nil)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body %s", resp.StatusCode, body)
	}
}
