package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EngineEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_evaluations_total",
			Help: "Total number of batch evaluations run by the rule engine (count)",
		},
		[]string{"module", "status"},
	)

	EngineEvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_evaluation_duration_ms",
			Help:    "Duration of one batch evaluation in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"module"},
	)

	EngineRuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rule_evaluations_total",
			Help: "Total number of individual rule evaluations (count)",
		},
		[]string{"module", "result"},
	)

	EngineActiveRules = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_active_rules",
			Help: "Number of enabled rules held in the engine cache (count)",
		},
		[]string{"module"},
	)

	EngineRuleCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rule_cache_total",
			Help: "Rule cache lookups by outcome (count)",
		},
		[]string{"module", "outcome"},
	)

	InSetCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "condition_in_set_cache_size",
			Help: "Number of memoized membership sets for large in lists (count)",
		},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_total",
			Help: "Triggered results handled by the action executor (count)",
		},
		[]string{"outcome"},
	)

	AlertStoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alert_store_duration_ms",
			Help:    "Duration of alert store operations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"store", "operation"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notifications sent per channel (count)",
		},
		[]string{"channel", "status"},
	)

	NotificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_duration_ms",
			Help:    "Duration of notification delivery in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"channel"},
	)

	EnrichmentFieldsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_fields_total",
			Help: "Computed fields evaluated before rule conditions (count)",
		},
		[]string{"module", "status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"scope", "status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_read_duration_ms",
			Help:    "Duration of reading messages from Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

func RegisterEngineMetrics() {
	prometheus.MustRegister(EngineEvaluationsTotal)
	prometheus.MustRegister(EngineEvaluationDuration)
	prometheus.MustRegister(EngineRuleEvaluationsTotal)
	prometheus.MustRegister(EngineActiveRules)
	prometheus.MustRegister(EngineRuleCacheTotal)
	prometheus.MustRegister(InSetCacheSize)
	prometheus.MustRegister(EnrichmentFieldsTotal)
}

func RegisterAlertMetrics() {
	prometheus.MustRegister(AlertsTotal)
	prometheus.MustRegister(AlertStoreDuration)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(NotificationDuration)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(KafkaReadDuration)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAPIMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func IncEngineEvaluation(module, status string) {
	EngineEvaluationsTotal.WithLabelValues(module, status).Inc()
}

func ObserveEngineEvaluationDuration(module string, duration time.Duration) {
	EngineEvaluationDuration.WithLabelValues(module).Observe(float64(duration.Milliseconds()))
}

func IncRuleEvaluation(module, result string) {
	EngineRuleEvaluationsTotal.WithLabelValues(module, result).Inc()
}

func SetEngineActiveRules(module string, count int) {
	EngineActiveRules.WithLabelValues(module).Set(float64(count))
}

func IncRuleCache(module, outcome string) {
	EngineRuleCacheTotal.WithLabelValues(module, outcome).Inc()
}

func SetInSetCacheSize(size int) {
	InSetCacheSize.Set(float64(size))
}

func IncAlert(outcome string) {
	AlertsTotal.WithLabelValues(outcome).Inc()
}

func ObserveAlertStoreDuration(store, operation string, duration time.Duration) {
	AlertStoreDuration.WithLabelValues(store, operation).Observe(float64(duration.Milliseconds()))
}

func IncNotification(channel, status string) {
	NotificationsTotal.WithLabelValues(channel, status).Inc()
}

func ObserveNotificationDuration(channel string, duration time.Duration) {
	NotificationDuration.WithLabelValues(channel).Observe(float64(duration.Milliseconds()))
}

func IncEnrichmentField(module, status string) {
	EnrichmentFieldsTotal.WithLabelValues(module, status).Inc()
}

func IncRateLimit(scope, status string) {
	RateLimitRequestsTotal.WithLabelValues(scope, status).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaReadDuration(service, topic string, duration time.Duration) {
	KafkaReadDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
