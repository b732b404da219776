package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	DefaultInputTopic      = "domain_events"
	DefaultRuleUpdateTopic = "rule_updates"
	DefaultDLQTopic        = "domain_events_dlq"
)

const (
	DefaultMongoDBName      = "alertflow"
	MongoAlertsCollection   = "alerts"
	TriggerCountRedisPrefix = "alert_rule_triggers:"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultRuleCacheTTL  = 30 * time.Second
	DefaultRuleBatchSize = 1000
)

var (
	DefaultEntityIDFields = []string{"entity_id", "id", "order_id"}
	DefaultOpenStatuses   = []string{"active", "acknowledged", "new"}
)

const (
	RuleSourcePostgres = "postgres"
	RuleSourceFile     = "file"
)

const (
	AlertStorePostgres = "postgres"
	AlertStoreMongoDB  = "mongodb"
	AlertStoreMemory   = "memory"
)

const (
	TriggerCounterRedis    = "redis"
	TriggerCounterPostgres = "postgres"
	TriggerCounterNone     = "none"
)

const (
	ChannelSlack   = "slack"
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)
