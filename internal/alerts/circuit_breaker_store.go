package alerts

import (
	"context"
	"errors"
	"fmt"

	"alertflow/internal/config"
	"alertflow/pkg/circuitbreaker"
)

// CircuitBreakerStore guards a Store. Duplicate rejections do not count as failures.
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerStore(store Store, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	return &CircuitBreakerStore{
		store: store,
		cb:    circuitbreaker.FromConfig("alert-store", cfg),
	}
}

func (s *CircuitBreakerStore) ExistsOpen(ctx context.Context, organizationID, fingerprint string, statuses []string) (bool, error) {
	result, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.store.ExistsOpen(ctx, organizationID, fingerprint, statuses)
	})
	if err != nil {
		if s.cb.IsOpen() {
			return false, fmt.Errorf("circuit breaker is open for alert-store: %w", err)
		}
		return false, err
	}

	exists, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("store returned invalid result type")
	}
	return exists, nil
}

func (s *CircuitBreakerStore) Create(ctx context.Context, alert *Alert) error {
	var duplicate bool
	err := s.cb.Run(ctx, func() error {
		err := s.store.Create(ctx, alert)
		if errors.Is(err, ErrDuplicateAlert) {
			duplicate = true
			return nil
		}
		return err
	})
	if duplicate {
		return ErrDuplicateAlert
	}
	if err != nil && s.cb.IsOpen() {
		return fmt.Errorf("circuit breaker is open for alert-store: %w", err)
	}
	return err
}

func (s *CircuitBreakerStore) State() string {
	return s.cb.State()
}
