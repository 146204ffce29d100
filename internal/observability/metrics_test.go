package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCacheCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCacheCollector(reg)
	if err != nil {
		t.Fatalf("NewCacheCollector: %v", err)
	}

	c.ObserveServed(4)
	c.ObserveServed(3)
	c.ObserveAttempt(OutcomeSuccess)
	c.ObserveAttempt(OutcomeNetwork)
	c.ObserveAttempt(OutcomeNetwork)
	c.ObserveStale()
	c.ObserveFill(ModeForeground, 1500*time.Millisecond, 5)
	c.ObserveNoRound()

	if got := testutil.ToFloat64(c.RoundsServed); got != 2 {
		t.Errorf("rounds served = %v; want 2", got)
	}
	if got := testutil.ToFloat64(c.FillAttempts.WithLabelValues(OutcomeNetwork)); got != 2 {
		t.Errorf("network attempts = %v; want 2", got)
	}
	if got := testutil.ToFloat64(c.StaleDiscarded); got != 1 {
		t.Errorf("stale = %v; want 1", got)
	}
	if got := testutil.ToFloat64(c.Buffered); got != 0 {
		t.Errorf("buffered = %v; want 0 after no-round", got)
	}
	if got := testutil.CollectAndCount(c.FillDurations); got != 1 {
		t.Errorf("fill duration series = %d; want 1", got)
	}
}

func TestCacheCollector_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCacheCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewCacheCollector(reg)
	if err != nil {
		t.Fatalf("second NewCacheCollector: %v", err)
	}
	second.ObserveServed(1)
	if got := testutil.ToFloat64(first.RoundsServed); got != 1 {
		t.Errorf("collectors not shared: first saw %v", got)
	}
}

func TestCacheCollector_NilSafe(t *testing.T) {
	var c *CacheCollector
	c.ObserveServed(1)
	c.ObserveAttempt(OutcomeFailure)
	c.ObserveFill(ModeBackground, time.Second, 0)
	c.ObserveStale()
	c.ObserveNoRound()
}

func TestCacheCollector_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCacheCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	c.ObserveServed(2)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "panoguess_rounds_served_total 1") {
		t.Errorf("metrics output missing served counter:\n%s", rec.Body.String())
	}
}
