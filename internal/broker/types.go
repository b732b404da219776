package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is a raw record read from a topic. Decoding is left to the handler.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []kafka.Header
	Time      time.Time
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg Message) error

// DeadLetter is the body written to the DLQ topic for a message that exhausted its retries.
type DeadLetter struct {
	SourceTopic string    `json:"source_topic"`
	Partition   int       `json:"partition"`
	Offset      int64     `json:"offset"`
	Key         string    `json:"key,omitempty"`
	Value       []byte    `json:"value"`
	Reason      string    `json:"reason"`
	FailedAt    time.Time `json:"failed_at"`
}
