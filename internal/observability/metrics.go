// Package observability exposes Prometheus collectors for the round cache.
package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fill modes and attempt outcomes used as label values.
const (
	ModeForeground = "foreground"
	ModeBackground = "background"

	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeTooLarge = "region_too_large"
	OutcomeNetwork  = "network"
	OutcomeParse    = "parse"
	OutcomeEmpty    = "no_results"
	OutcomeConfig   = "configuration"
)

// CacheCollector bundles the cache metrics. A nil *CacheCollector is valid
// and records nothing.
type CacheCollector struct {
	gatherer prometheus.Gatherer

	RoundsServed   prometheus.Counter
	NoRound        prometheus.Counter
	StaleDiscarded prometheus.Counter
	FillAttempts   *prometheus.CounterVec
	FillDurations  *prometheus.HistogramVec
	Buffered       prometheus.Gauge
}

// NewCacheCollector registers the cache metrics against reg, defaulting to
// the global registry when reg is nil.
func NewCacheCollector(reg prometheus.Registerer) (*CacheCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	served, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "panoguess_rounds_served_total",
		Help: "Rounds handed to the consumer.",
	}))
	if err != nil {
		return nil, err
	}
	noRound, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "panoguess_no_round_total",
		Help: "Requests that ended with no round available.",
	}))
	if err != nil {
		return nil, err
	}
	stale, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "panoguess_stale_rounds_discarded_total",
		Help: "Rounds produced by a superseded fill generation and dropped.",
	}))
	if err != nil {
		return nil, err
	}
	attempts, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "panoguess_fill_attempts_total",
		Help: "Round build attempts, labeled by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "panoguess_fill_duration_seconds",
		Help:    "Wall time of a cache fill, labeled by foreground or background mode.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"mode"}))
	if err != nil {
		return nil, err
	}
	buffered, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "panoguess_cache_buffered_rounds",
		Help: "Unconsumed rounds currently in the lookahead buffer.",
	}))
	if err != nil {
		return nil, err
	}

	return &CacheCollector{
		gatherer:       gatherer,
		RoundsServed:   served,
		NoRound:        noRound,
		StaleDiscarded: stale,
		FillAttempts:   attempts,
		FillDurations:  durations,
		Buffered:       buffered,
	}, nil
}

// register returns the already-registered collector when an identical one
// exists, so building a second cache against the same registry is harmless.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

func (c *CacheCollector) ObserveServed(remaining int) {
	if c == nil {
		return
	}
	c.RoundsServed.Inc()
	c.Buffered.Set(float64(remaining))
}

func (c *CacheCollector) ObserveNoRound() {
	if c == nil {
		return
	}
	c.NoRound.Inc()
	c.Buffered.Set(0)
}

func (c *CacheCollector) ObserveAttempt(outcome string) {
	if c == nil {
		return
	}
	c.FillAttempts.WithLabelValues(outcome).Inc()
}

func (c *CacheCollector) ObserveStale() {
	if c == nil {
		return
	}
	c.StaleDiscarded.Inc()
}

func (c *CacheCollector) ObserveFill(mode string, elapsed time.Duration, remaining int) {
	if c == nil {
		return
	}
	c.FillDurations.WithLabelValues(mode).Observe(elapsed.Seconds())
	c.Buffered.Set(float64(remaining))
}

// Handler serves the registry this collector was registered with.
func (c *CacheCollector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
