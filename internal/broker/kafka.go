package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"alertflow/internal/config"
	"alertflow/internal/constants"
	"alertflow/internal/logger"
	"alertflow/pkg/errors"
	"alertflow/pkg/logging"
	"alertflow/pkg/metrics"
	"alertflow/pkg/retry"
	"alertflow/pkg/tracing"
)

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log, serviceName: "unknown"}
}

func (p *KafkaProducer) SetServiceName(name string) {
	p.serviceName = name
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	headers := tracing.InjectTraceContext(ctx, []kafka.Header{})

	start := time.Now()
	err := p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     key,
			Value:   value,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	metrics.ObserveKafkaWriteDuration(p.serviceName, topic, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(p.serviceName, topic)
	metrics.ObserveKafkaMessageSize(p.serviceName, topic, "out", len(value))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// messageReader is the part of *kafka.Reader the consumer loop needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
	Close() error
}

type KafkaConsumer struct {
	cfg          config.KafkaConfig
	groupID      string
	wg           sync.WaitGroup
	mu           sync.Mutex
	reader       messageReader
	newReader    func(topic string) messageReader
	logger       logger.Logger
	dlqProducer  Producer
	serviceName  string
	fetchBackoff time.Duration
}

// NewKafkaConsumer joins cfg.GroupID. Use NewKafkaConsumerWithGroup for consumers that must see every message.
func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return NewKafkaConsumerWithGroup(cfg, cfg.GroupID, log)
}

func NewKafkaConsumerWithGroup(cfg config.KafkaConfig, groupID string, log logger.Logger) *KafkaConsumer {
	consumer := &KafkaConsumer{
		cfg:          cfg,
		groupID:      groupID,
		logger:       log,
		serviceName:  "unknown",
		fetchBackoff: time.Second,
	}
	consumer.newReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		})
	}

	if cfg.DLQTopic != "" {
		consumer.dlqProducer = NewKafkaProducer(cfg, log)
	}

	return consumer
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
	if p, ok := c.dlqProducer.(*KafkaProducer); ok {
		p.SetServiceName(name)
	}
}

// Consume reads topic until ctx is cancelled. Each message is retried per the retry policy,
// then sent to the DLQ (when configured) and committed either way.
func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.groupID,
		"service_name", c.serviceName,
	)

	reader := c.newReader(topic)
	c.mu.Lock()
	c.reader = reader
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topic", topic,
		)

		for {
			fetchStart := time.Now()
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.fetchBackoff):
				}
				continue
			}

			metrics.ObserveKafkaReadDuration(c.serviceName, topic, time.Since(fetchStart))
			metrics.IncKafkaMessagesRead(c.serviceName, topic)
			metrics.ObserveKafkaMessageSize(c.serviceName, topic, "in", len(m.Value))
			metrics.SetKafkaConsumerLag(c.serviceName, topic, m.Partition, reader.Stats().Lag)

			c.handleMessage(ctx, reader, m, handler)
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, reader messageReader, m kafka.Message, handler HandlerFunc) {
	msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "kafka.consume", m.Headers)
	defer span.End()

	msgCtx = logging.WithServiceName(msgCtx, c.serviceName)
	if sc := span.SpanContext(); sc.HasTraceID() {
		msgCtx = logging.WithTraceID(msgCtx, sc.TraceID().String())
	}

	msg := Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Headers:   m.Headers,
		Time:      m.Time,
	}

	if err := c.processMessageWithRetry(msgCtx, msg, handler); err != nil {
		tracing.RecordError(span, err)
		c.logger.ErrorwCtx(msgCtx, "Failed to process message after retries",
			"error", err,
			"topic", m.Topic,
			"offset", m.Offset,
		)
		if c.dlqProducer != nil && c.cfg.DLQTopic != "" {
			if dlqErr := c.sendToDLQ(msgCtx, msg, err); dlqErr != nil {
				c.logger.ErrorwCtx(msgCtx, "Failed to send message to DLQ",
					"error", dlqErr,
					"topic", m.Topic,
				)
			}
		} else {
			c.logger.WarnwCtx(msgCtx, "No DLQ configured, committing message to avoid blocking",
				"topic", m.Topic,
			)
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := reader.CommitMessages(ctx, m); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to commit message",
			"error", err,
			"topic", m.Topic,
		)
	}
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()

	var err error
	if reader != nil {
		err = reader.Close()
	}
	c.wg.Wait()
	if c.dlqProducer != nil {
		if closeErr := c.dlqProducer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func (c *KafkaConsumer) retryPolicy() retry.Policy {
	policy := retry.Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}

	if c.cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.cfg.Retry.MaxAttempts
	}
	if c.cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = c.cfg.Retry.InitialInterval
	}
	if c.cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = c.cfg.Retry.MaxInterval
	}
	if c.cfg.Retry.Multiplier > 0 {
		policy.Multiplier = c.cfg.Retry.Multiplier
	}
	if c.cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = c.cfg.Retry.MaxElapsedTime
	}
	return policy
}

func (c *KafkaConsumer) processMessageWithRetry(ctx context.Context, msg Message, handler HandlerFunc) error {
	policy := c.retryPolicy()

	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
					"topic", msg.Topic,
				)
			}
		}()
		return handler(ctx, msg)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, msg.Topic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", msg.Topic,
		)
	})
}

func (c *KafkaConsumer) sendToDLQ(ctx context.Context, msg Message, originalErr error) error {
	body, err := json.Marshal(DeadLetter{
		SourceTopic: msg.Topic,
		Partition:   msg.Partition,
		Offset:      msg.Offset,
		Key:         string(msg.Key),
		Value:       msg.Value,
		Reason:      originalErr.Error(),
		FailedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	if err := c.dlqProducer.Publish(ctx, c.cfg.DLQTopic, msg.Key, body); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, msg.Topic, "max_retries_exceeded").Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_topic", msg.Topic,
		"dlq_topic", c.cfg.DLQTopic,
		"reason", originalErr.Error(),
	)

	return nil
}
