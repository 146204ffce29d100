// Package cache keeps a lookahead buffer of ready rounds so that the consumer
// almost never waits on the image API.
//
// The buffer is drained by a cursor. When the cursor reaches the end, the
// buffer is reset and refilled in the foreground. When only a few unconsumed
// rounds remain, a background fill tops the buffer up without blocking the
// consumer. Every reset starts a new generation; rounds produced by a fill
// from an older generation are discarded.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"panoguess/internal/logging"
	"panoguess/internal/models"
	"panoguess/internal/observability"
	"panoguess/pkg/geo"
	"panoguess/pkg/mapillary"
)

var (
	// ErrNoRoundAvailable is returned by NextRound when a fill gave up with
	// an empty buffer. Consumers should stop offering rounds rather than retry
	// in a tight loop.
	ErrNoRoundAvailable = errors.New("no round available")
	ErrClosed           = errors.New("round cache closed")
)

// Producer builds a single round. Each call is one attempt; failures are
// counted by the cache.
type Producer interface {
	Build(ctx context.Context) (models.Round, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context) (models.Round, error)

func (f ProducerFunc) Build(ctx context.Context) (models.Round, error) { return f(ctx) }

type Config struct {
	MaxRounds   int // buffer capacity
	LowWater    int // remaining count at or below which a background fill starts
	MaxFailures int // consecutive failed attempts after which a fill stops
}

func DefaultConfig() Config {
	return Config{MaxRounds: 5, LowWater: 2, MaxFailures: 10}
}

func (c Config) validate() error {
	if c.MaxRounds < 1 {
		return fmt.Errorf("%w: cache size must be at least 1, got %d", models.ErrConfiguration, c.MaxRounds)
	}
	if c.LowWater < 0 || c.LowWater >= c.MaxRounds {
		return fmt.Errorf("%w: low-water mark must be within [0, %d), got %d", models.ErrConfiguration, c.MaxRounds, c.LowWater)
	}
	if c.MaxFailures < 1 {
		return fmt.Errorf("%w: failure cap must be at least 1, got %d", models.ErrConfiguration, c.MaxFailures)
	}
	return nil
}

// RoundCache is the single owner of the lookahead buffer. Construct one per
// game session and share it by pointer.
type RoundCache struct {
	producer Producer
	cfg      Config
	logger   logging.Logger
	metrics  *observability.CacheCollector

	// reqMu serialises consumers; mu guards the fields below it and is the
	// only lock background fills take.
	reqMu sync.Mutex

	mu         sync.Mutex
	buffer     []models.Round
	cursor     int
	generation uint64
	bgRunning  bool
	bgCancel   context.CancelFunc
	closed     bool

	lifetime context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
}

func New(producer Producer, cfg Config, logger logging.Logger, metrics *observability.CacheCollector) (*RoundCache, error) {
	if producer == nil {
		return nil, fmt.Errorf("%w: round producer is required", models.ErrConfiguration)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Noop()
	}
	lifetime, stop := context.WithCancel(context.Background())
	return &RoundCache{
		producer: producer,
		cfg:      cfg,
		logger:   logger.With(logging.String("component", "round_cache")),
		metrics:  metrics,
		buffer:   make([]models.Round, 0, cfg.MaxRounds),
		lifetime: lifetime,
		stop:     stop,
	}, nil
}

// NextRound returns the next buffered round. If the buffer is exhausted it is
// reset and refilled first, which blocks until the fill finishes. The error is
// ErrNoRoundAvailable when that fill produced nothing, or wraps
// models.ErrConfiguration when the setup cannot produce rounds at all.
func (c *RoundCache) NextRound(ctx context.Context) (models.Round, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.Round{}, ErrClosed
	}
	if c.cursor >= len(c.buffer) {
		gen := c.resetLocked()
		c.mu.Unlock()

		c.logger.Info(ctx, "cache exhausted, refilling", logging.Uint64("generation", gen))
		start := time.Now()
		err := c.fill(ctx, gen)
		c.metrics.ObserveFill(observability.ModeForeground, time.Since(start), c.Len())
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return models.Round{}, err
		}

		c.mu.Lock()
		if len(c.buffer) == 0 {
			c.mu.Unlock()
			c.metrics.ObserveNoRound()
			if err != nil {
				return models.Round{}, err
			}
			c.logger.Error(ctx, "refill produced no rounds")
			return models.Round{}, ErrNoRoundAvailable
		}
	}

	r := c.buffer[c.cursor]
	c.cursor++
	remaining := len(c.buffer) - c.cursor
	if remaining <= c.cfg.LowWater && len(c.buffer) < c.cfg.MaxRounds && !c.bgRunning {
		c.startBackgroundLocked(c.generation)
	}
	c.mu.Unlock()

	c.metrics.ObserveServed(remaining)
	return r, nil
}

// resetLocked clears the buffer, starts a new generation and cancels any
// background fill from the previous one.
func (c *RoundCache) resetLocked() uint64 {
	if c.bgCancel != nil {
		c.bgCancel()
		c.bgCancel = nil
	}
	c.bgRunning = false
	c.buffer = make([]models.Round, 0, c.cfg.MaxRounds)
	c.cursor = 0
	c.generation++
	return c.generation
}

func (c *RoundCache) startBackgroundLocked(gen uint64) {
	ctx, cancel := context.WithCancel(c.lifetime)
	c.bgRunning = true
	c.bgCancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		start := time.Now()
		err := c.fill(ctx, gen)

		c.mu.Lock()
		if c.generation == gen {
			c.bgRunning = false
			c.bgCancel = nil
		}
		buffered := len(c.buffer) - c.cursor
		c.mu.Unlock()

		c.metrics.ObserveFill(observability.ModeBackground, time.Since(start), buffered)
		if err != nil && ctx.Err() == nil {
			c.logger.Error(ctx, "background fill failed", logging.Uint64("generation", gen), logging.Err(err))
		}
	}()
	c.logger.Debug(c.lifetime, "background fill started", logging.Uint64("generation", gen))
}

// fill builds rounds for generation gen until the buffer is full, the
// generation is superseded, or MaxFailures attempts in a row have failed.
// Only configuration errors and context cancellation are returned.
func (c *RoundCache) fill(ctx context.Context, gen uint64) error {
	failures := 0
	for failures < c.cfg.MaxFailures {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !c.wants(gen) {
			return nil
		}

		r, err := c.producer.Build(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.metrics.ObserveAttempt(outcome(err))
			if errors.Is(err, models.ErrConfiguration) {
				c.logger.Error(ctx, "cannot build rounds", logging.Err(err))
				return err
			}
			failures++
			c.logger.Warn(ctx, "round attempt failed",
				logging.Uint64("generation", gen),
				logging.Int("consecutive_failures", failures),
				logging.Err(err))
			continue
		}

		c.metrics.ObserveAttempt(observability.OutcomeSuccess)
		if !c.append(gen, r) {
			return nil
		}
		failures = 0
	}

	c.logger.Error(ctx, "stopped filling after consecutive failures",
		logging.Int("max_failures", c.cfg.MaxFailures),
		logging.Uint64("generation", gen),
		logging.Int("buffered", c.Len()))
	return nil
}

// wants reports whether generation gen is current and still has room.
func (c *RoundCache) wants(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen && len(c.buffer) < c.cfg.MaxRounds
}

func (c *RoundCache) append(gen uint64, r models.Round) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		c.metrics.ObserveStale()
		c.logger.Debug(c.lifetime, "discarding round from superseded fill",
			logging.Uint64("generation", gen),
			logging.Uint64("current_generation", c.generation))
		return false
	}
	if len(c.buffer) >= c.cfg.MaxRounds {
		return false
	}
	c.buffer = append(c.buffer, r)
	if len(c.buffer) == c.cfg.MaxRounds {
		c.logger.Debug(c.lifetime, "cache filled", logging.Int("rounds", len(c.buffer)))
	}
	return true
}

func outcome(err error) string {
	switch {
	case errors.Is(err, models.ErrConfiguration):
		return observability.OutcomeConfig
	case errors.Is(err, geo.ErrRegionTooLarge):
		return observability.OutcomeTooLarge
	case errors.Is(err, mapillary.ErrNetwork):
		return observability.OutcomeNetwork
	case errors.Is(err, mapillary.ErrParse):
		return observability.OutcomeParse
	case errors.Is(err, mapillary.ErrNoResults):
		return observability.OutcomeEmpty
	default:
		return observability.OutcomeFailure
	}
}

// Len is the number of rounds in the buffer, consumed or not.
func (c *RoundCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *RoundCache) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

func (c *RoundCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Wait blocks until no background fill is running.
func (c *RoundCache) Wait() {
	c.wg.Wait()
}

// Close cancels background fills and waits for them to exit. NextRound
// returns ErrClosed afterwards.
func (c *RoundCache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.stop()
	c.wg.Wait()
}
