package alerts

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"alertflow/internal/constants"
)

// TriggerCounter records how often a rule fired. Increments are best effort.
type TriggerCounter interface {
	IncrementTriggerCount(ctx context.Context, organizationID, ruleID string) error
}

// RedisTriggerCounter keeps one hash per organization, field per rule.
type RedisTriggerCounter struct {
	client redis.UniversalClient
}

func NewRedisTriggerCounter(client redis.UniversalClient) *RedisTriggerCounter {
	return &RedisTriggerCounter{client: client}
}

func (c *RedisTriggerCounter) IncrementTriggerCount(ctx context.Context, organizationID, ruleID string) error {
	if err := c.client.HIncrBy(ctx, constants.TriggerCountRedisPrefix+organizationID, ruleID, 1).Err(); err != nil {
		return fmt.Errorf("redis HINCRBY failed: %w", err)
	}
	return nil
}

func (c *RedisTriggerCounter) Count(ctx context.Context, organizationID, ruleID string) (int64, error) {
	n, err := c.client.HGet(ctx, constants.TriggerCountRedisPrefix+organizationID, ruleID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis HGET failed: %w", err)
	}
	return n, nil
}

type NoopTriggerCounter struct{}

func (NoopTriggerCounter) IncrementTriggerCount(context.Context, string, string) error {
	return nil
}
