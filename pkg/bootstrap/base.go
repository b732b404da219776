package bootstrap

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"alertflow/internal/broker"
	"alertflow/internal/config"
	"alertflow/internal/logger"
)

type Base struct {
	Config *config.Config
	Logger logger.Logger

	EventConsumer      broker.Consumer
	RuleUpdateConsumer broker.Consumer
	Producer           broker.Producer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitConsumers creates the event consumer, which shares the configured group, and the rule
// update consumer, which gets a group of its own so every instance sees every update.
// It is a no-op without Kafka brokers.
func (b *Base) InitConsumers(serviceName string) {
	kafkaCfg := b.Config.Broker.Kafka
	if !kafkaCfg.Enabled() {
		return
	}

	events := broker.NewKafkaConsumer(kafkaCfg, b.Logger)
	events.SetServiceName(serviceName)
	b.EventConsumer = events

	if kafkaCfg.RuleUpdateTopic != "" {
		updates := broker.NewKafkaConsumerWithGroup(kafkaCfg, RuleUpdateGroupID(kafkaCfg.GroupID), b.Logger)
		updates.SetServiceName(serviceName)
		b.RuleUpdateConsumer = updates
	}
}

// InitProducer creates a producer for publishing onto the configured topics.
func (b *Base) InitProducer(serviceName string) error {
	kafkaCfg := b.Config.Broker.Kafka
	if !kafkaCfg.Enabled() {
		return fmt.Errorf("kafka brokers are not configured")
	}

	p := broker.NewKafkaProducer(kafkaCfg, b.Logger)
	p.SetServiceName(serviceName)
	b.Producer = p
	return nil
}

// RuleUpdateGroupID derives a per-instance consumer group from base.
func RuleUpdateGroupID(base string) string {
	return fmt.Sprintf("%s-rules-%s", base, uuid.NewString()[:8])
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if b.EventConsumer != nil {
		if err := b.EventConsumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event consumer close error: %w", err))
		}
	}

	if b.RuleUpdateConsumer != nil {
		if err := b.RuleUpdateConsumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rule update consumer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
