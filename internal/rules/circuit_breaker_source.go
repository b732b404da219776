package rules

import (
	"context"
	"fmt"

	"alertflow/internal/config"
	"alertflow/pkg/circuitbreaker"
)

type CircuitBreakerSource struct {
	source Source
	cb     *circuitbreaker.Wrapper
}

func NewCircuitBreakerSource(source Source, cfg config.CircuitBreakerConfig) *CircuitBreakerSource {
	return &CircuitBreakerSource{
		source: source,
		cb:     circuitbreaker.FromConfig("rule-source", cfg),
	}
}

func (s *CircuitBreakerSource) ListEnabled(ctx context.Context, scope Scope, limit int) ([]Rule, error) {
	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.source.ListEnabled(ctx, scope, limit)
	})
	if err != nil {
		if s.cb.IsOpen() {
			return nil, fmt.Errorf("circuit breaker is open for rule-source: %w", err)
		}
		return nil, err
	}

	rules, ok := result.([]Rule)
	if !ok && result != nil {
		return nil, fmt.Errorf("rule source returned invalid result type")
	}
	return rules, nil
}

func (s *CircuitBreakerSource) State() string {
	return s.cb.State()
}
