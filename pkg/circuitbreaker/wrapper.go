package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"alertflow/internal/config"
	"alertflow/pkg/metrics"
)

// ErrOpen is returned instead of calling through while the breaker is open or saturated.
var ErrOpen = errors.New("circuit breaker open")

type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	FailureRatio  float64
	MinRequests   uint32
	OnStateChange func(name string, from, to gobreaker.State)
}

func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      60 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

// FromConfig builds a named breaker from the service configuration. It returns nil when
// breakers are disabled; a nil *Wrapper calls straight through.
func FromConfig(name string, cfg config.CircuitBreakerConfig) *Wrapper {
	if !cfg.Enabled {
		return nil
	}

	c := DefaultConfig(name)
	if cfg.MaxRequests > 0 {
		c.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		c.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 {
		c.FailureRatio = cfg.FailureRatio
	}
	if cfg.MinRequests > 0 {
		c.MinRequests = cfg.MinRequests
	}
	return NewWrapper(c)
}

type Wrapper struct {
	cb *gobreaker.CircuitBreaker
}

func NewWrapper(cfg Config) *Wrapper {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
	}

	if cfg.FailureRatio > 0 {
		ratio, minRequests := cfg.FailureRatio, cfg.MinRequests
		settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests || counts.Requests == 0 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		}
	}

	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		updateCircuitBreakerMetrics(name, to)
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(name, from, to)
		}
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	updateCircuitBreakerMetrics(cfg.Name, cb.State())

	return &Wrapper{cb: cb}
}

// ExecuteWithContext runs fn through the breaker. A cancelled ctx short-circuits without
// counting against the breaker.
func (w *Wrapper) ExecuteWithContext(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w == nil {
		return fn()
	}

	result, err := w.cb.Execute(fn)
	w.recordRequest(err)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	return result, err
}

// Run is ExecuteWithContext for operations without a result.
func (w *Wrapper) Run(ctx context.Context, fn func() error) error {
	_, err := w.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State reports "disabled" for a nil breaker.
func (w *Wrapper) State() string {
	if w == nil {
		return "disabled"
	}
	return w.cb.State().String()
}

func (w *Wrapper) Name() string {
	if w == nil {
		return ""
	}
	return w.cb.Name()
}

func (w *Wrapper) IsOpen() bool {
	return w != nil && w.cb.State() == gobreaker.StateOpen
}

func (w *Wrapper) recordRequest(err error) {
	state := w.cb.State().String()
	metrics.CircuitBreakerRequests.WithLabelValues(w.cb.Name(), state).Inc()
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(w.cb.Name()).Inc()
	}
}

func updateCircuitBreakerMetrics(name string, state gobreaker.State) {
	var stateValue float64
	switch state {
	case gobreaker.StateClosed:
		stateValue = 0
	case gobreaker.StateHalfOpen:
		stateValue = 1
	case gobreaker.StateOpen:
		stateValue = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue)
}
