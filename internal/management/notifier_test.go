package management

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertflow/pkg/models"
)

type capturingProducer struct {
	topic      string
	key, value []byte
}

func (p *capturingProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	p.topic, p.key, p.value = topic, key, value
	return nil
}

func (p *capturingProducer) Close() error { return nil }

func TestRuleEventPublisher(t *testing.T) {
	producer := &capturingProducer{}
	pub := NewRuleEventPublisher(producer, "rule-updates")

	require.NoError(t, pub.Publish(context.Background(), "org-1", "orders", "unpaid", models.ActionUpdate, "dave"))
	assert.Equal(t, "rule-updates", producer.topic)
	assert.Equal(t, "org-1", string(producer.key))

	var evt models.RuleUpdateEvent
	require.NoError(t, json.Unmarshal(producer.value, &evt))
	assert.Equal(t, "orders", evt.ModuleName)
	assert.Equal(t, models.ActionUpdate, evt.Action)
	assert.Equal(t, "dave", evt.ChangedBy)
	assert.NoError(t, models.ValidateRuleUpdateEvent(&evt))
}

func TestRuleEventPublisher_NilSafe(t *testing.T) {
	var pub *RuleEventPublisher
	assert.NoError(t, pub.Publish(context.Background(), "org-1", "", "", models.ActionReload, ""))
	assert.NoError(t, NewRuleEventPublisher(nil, "t").Publish(context.Background(), "org-1", "", "", models.ActionReload, ""))
}
