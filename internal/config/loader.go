package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"alertflow/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", "10s")
	viper.SetDefault("server.write_timeout_seconds", "10s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("broker.kafka.group_id", "alert-engine")
	viper.SetDefault("broker.kafka.input_topic", constants.DefaultInputTopic)
	viper.SetDefault("broker.kafka.rule_update_topic", constants.DefaultRuleUpdateTopic)
	viper.SetDefault("broker.kafka.dlq_topic", constants.DefaultDLQTopic)
	viper.SetDefault("broker.kafka.retry.max_attempts", 3)
	viper.SetDefault("broker.kafka.retry.initial_interval", "100ms")
	viper.SetDefault("broker.kafka.retry.max_interval", "5s")
	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)

	viper.SetDefault("engine.rule_cache_ttl", constants.DefaultRuleCacheTTL)
	viper.SetDefault("engine.batch_size", constants.DefaultRuleBatchSize)
	viper.SetDefault("engine.max_depth", 3)
	viper.SetDefault("engine.max_conditions", 10)
	viper.SetDefault("engine.in_set_threshold", 100)
	viper.SetDefault("engine.entity_id_fields", constants.DefaultEntityIDFields)

	viper.SetDefault("rules.source", constants.RuleSourcePostgres)

	viper.SetDefault("alerts.store", constants.AlertStorePostgres)
	viper.SetDefault("alerts.trigger_counter", constants.TriggerCounterNone)
	viper.SetDefault("alerts.open_statuses", constants.DefaultOpenStatuses)
	viper.SetDefault("alerts.dispatch_timeout", constants.DefaultHTTPTimeout)

	viper.SetDefault("notifications.webhook.timeout", constants.DefaultHTTPTimeout)
	viper.SetDefault("notifications.email.port", 587)
	viper.SetDefault("notifications.rate_limit.rps", 5)
	viper.SetDefault("notifications.rate_limit.burst", 10)

	viper.SetDefault("api.rate_limit.rps", 50)
	viper.SetDefault("api.rate_limit.burst", 100)
	viper.SetDefault("api.rate_limit.cleanup_interval", 60)
	viper.SetDefault("api.rate_limit.max_age", 300)

	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.6)
	viper.SetDefault("circuit_breaker.min_requests", 5)

	viper.SetDefault("tracing.service_name", "alert-engine")
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.input_topic", "BROKER_KAFKA_INPUT_TOPIC")
	viper.BindEnv("broker.kafka.rule_update_topic", "BROKER_KAFKA_RULE_UPDATE_TOPIC")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")
	viper.BindEnv("database.run_migrations", "DATABASE_RUN_MIGRATIONS")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("engine.rule_cache_ttl", "ENGINE_RULE_CACHE_TTL")
	viper.BindEnv("rules.source", "RULES_SOURCE")
	viper.BindEnv("rules.file", "RULES_FILE")
	viper.BindEnv("alerts.store", "ALERTS_STORE")
	viper.BindEnv("alerts.trigger_counter", "ALERTS_TRIGGER_COUNTER")

	viper.BindEnv("notifications.slack.webhook_url", "NOTIFICATIONS_SLACK_WEBHOOK_URL")
	viper.BindEnv("notifications.email.host", "NOTIFICATIONS_EMAIL_HOST")
	viper.BindEnv("notifications.email.username", "NOTIFICATIONS_EMAIL_USERNAME")
	viper.BindEnv("notifications.email.password", "NOTIFICATIONS_EMAIL_PASSWORD")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
