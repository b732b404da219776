package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertflow/internal/config"
	"alertflow/internal/logger"
	"alertflow/pkg/retry"
)

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Stats() kafka.ReaderStats { return kafka.ReaderStats{} }

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type published struct {
	topic string
	key   []byte
	value []byte
}

type fakeProducer struct {
	mu   sync.Mutex
	sent []published
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{topic: topic, key: key, value: value})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.sent...)
}

func testConsumer(reader *fakeReader, dlq Producer) *KafkaConsumer {
	cfg := config.KafkaConfig{
		Brokers:  []string{"localhost:9092"},
		GroupID:  "alert-engine",
		DLQTopic: "events_dlq",
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Multiplier:      2,
		},
	}
	c := &KafkaConsumer{
		cfg:          cfg,
		groupID:      cfg.GroupID,
		logger:       logger.NopLogger(),
		serviceName:  "test",
		dlqProducer:  dlq,
		fetchBackoff: time.Millisecond,
	}
	c.newReader = func(string) messageReader { return reader }
	return c
}

func runUntil(t *testing.T, c *KafkaConsumer, handler HandlerFunc, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Consume(ctx, "events", handler) }()

	require.Eventually(t, done, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	require.NoError(t, c.Close())
}

func TestKafkaConsumer_CommitsHandledMessages(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Topic: "events", Offset: 1, Value: []byte(`{"id":"a"}`)},
		kafka.Message{Topic: "events", Offset: 2, Value: []byte(`{"id":"b"}`)},
	)
	dlq := &fakeProducer{}
	c := testConsumer(reader, dlq)

	var seen []string
	var mu sync.Mutex
	handler := func(_ context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(msg.Value))
		return nil
	}

	runUntil(t, c, handler, func() bool { return len(reader.commits()) == 2 })

	assert.Equal(t, []int64{1, 2}, reader.commits())
	assert.Equal(t, []string{`{"id":"a"}`, `{"id":"b"}`}, seen)
	assert.Empty(t, dlq.messages())
	assert.True(t, reader.closed)
}

func TestKafkaConsumer_RetriesThenSucceeds(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "events", Offset: 7, Value: []byte("x")})
	dlq := &fakeProducer{}
	c := testConsumer(reader, dlq)

	var calls int32
	handler := func(context.Context, Message) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}

	runUntil(t, c, handler, func() bool { return len(reader.commits()) == 1 })

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Empty(t, dlq.messages())
}

func TestKafkaConsumer_DeadLettersAfterRetries(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "events", Offset: 9, Key: []byte("k1"), Value: []byte("payload")})
	dlq := &fakeProducer{}
	c := testConsumer(reader, dlq)

	var calls int32
	handler := func(context.Context, Message) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("store unavailable")
	}

	runUntil(t, c, handler, func() bool { return len(reader.commits()) == 1 })

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	sent := dlq.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "events_dlq", sent[0].topic)
	assert.Equal(t, []byte("k1"), sent[0].key)

	var letter DeadLetter
	require.NoError(t, json.Unmarshal(sent[0].value, &letter))
	assert.Equal(t, "events", letter.SourceTopic)
	assert.Equal(t, int64(9), letter.Offset)
	assert.Equal(t, []byte("payload"), letter.Value)
	assert.Contains(t, letter.Reason, "store unavailable")
}

func TestKafkaConsumer_FatalErrorSkipsRetries(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "events", Offset: 3, Value: []byte("{")})
	dlq := &fakeProducer{}
	c := testConsumer(reader, dlq)

	var calls int32
	handler := func(context.Context, Message) error {
		atomic.AddInt32(&calls, 1)
		return retry.NewFatalError(errors.New("malformed"))
	}

	runUntil(t, c, handler, func() bool { return len(reader.commits()) == 1 })

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Len(t, dlq.messages(), 1)
}

func TestKafkaConsumer_RecoversHandlerPanic(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Topic: "events", Offset: 1, Value: []byte("boom")},
		kafka.Message{Topic: "events", Offset: 2, Value: []byte("ok")},
	)
	c := testConsumer(reader, &fakeProducer{})
	c.cfg.Retry.MaxAttempts = 1

	handler := func(_ context.Context, msg Message) error {
		if string(msg.Value) == "boom" {
			panic("handler exploded")
		}
		return nil
	}

	runUntil(t, c, handler, func() bool { return len(reader.commits()) == 2 })
	assert.Equal(t, []int64{1, 2}, reader.commits())
}

func TestKafkaConsumer_RetryPolicyDefaults(t *testing.T) {
	c := NewKafkaConsumerWithGroup(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "rules-abc", logger.NopLogger())
	policy := c.retryPolicy()

	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, time.Second, policy.InitialInterval)
	assert.Equal(t, "rules-abc", c.groupID)
	assert.Nil(t, c.dlqProducer)
}
