package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Engine         EngineConfig
	Rules          RulesConfig
	Alerts         AlertsConfig
	Notifications  NotificationsConfig
	Enrichment     EnrichmentConfig
	API            APIConfig            `mapstructure:"api"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

func (c MongoDBConfig) Enabled() bool {
	return c.URI != ""
}

type BrokerConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers         []string    `mapstructure:"brokers"`
	GroupID         string      `mapstructure:"group_id"`
	InputTopic      string      `mapstructure:"input_topic"`
	RuleUpdateTopic string      `mapstructure:"rule_update_topic"`
	DLQTopic        string      `mapstructure:"dlq_topic"`
	Retry           RetryConfig `mapstructure:"retry"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" (default) or "console"
}

type EngineConfig struct {
	RuleCacheTTL   time.Duration `mapstructure:"rule_cache_ttl"`
	BatchSize      int           `mapstructure:"batch_size"`
	MaxDepth       int           `mapstructure:"max_depth"`
	MaxConditions  int           `mapstructure:"max_conditions"`
	InSetThreshold int           `mapstructure:"in_set_threshold"`
	EntityIDFields []string      `mapstructure:"entity_id_fields"`
}

type RulesConfig struct {
	Source string `mapstructure:"source"` // "postgres" or "file"
	File   string `mapstructure:"file"`
}

type AlertsConfig struct {
	Store           string        `mapstructure:"store"`           // "postgres", "mongodb" or "memory"
	TriggerCounter  string        `mapstructure:"trigger_counter"` // "redis", "postgres" or "none"
	OpenStatuses    []string      `mapstructure:"open_statuses"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

type NotificationsConfig struct {
	Slack     SlackConfig     `mapstructure:"slack"`
	Email     EmailConfig     `mapstructure:"email"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type WebhookConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type EnrichmentConfig struct {
	Modules map[string][]ComputedField `mapstructure:"modules"`
}

// ComputedField is a CEL expression whose result is stored under Name before conditions run.
type ComputedField struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
}

type APIConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
