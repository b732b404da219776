package config

import (
	"fmt"
	"strings"

	"alertflow/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateKafka(cfg.Broker.Kafka); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateEngine(cfg.Engine); err != nil {
		errors = append(errors, err)
	}

	if err := validateRules(cfg.Rules, cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateAlerts(cfg.Alerts, cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateEnrichment(cfg.Enrichment); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

// validateKafka accepts an empty broker list: the HTTP API works without Kafka.
func validateKafka(cfg KafkaConfig) error {
	if !cfg.Enabled() {
		return nil
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.InputTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.input_topic",
			Message: "input topic is required when brokers are configured",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.InitialInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validateEngine(cfg EngineConfig) error {
	if cfg.RuleCacheTTL < 0 {
		return &ValidationError{
			Field:   "engine.rule_cache_ttl",
			Message: "rule cache TTL must be non-negative",
		}
	}

	if cfg.BatchSize < 1 {
		return &ValidationError{
			Field:   "engine.batch_size",
			Message: fmt.Sprintf("batch size must be positive, got %d", cfg.BatchSize),
		}
	}

	if cfg.MaxDepth < 1 {
		return &ValidationError{
			Field:   "engine.max_depth",
			Message: fmt.Sprintf("max depth must be positive, got %d", cfg.MaxDepth),
		}
	}

	if cfg.MaxConditions < 1 {
		return &ValidationError{
			Field:   "engine.max_conditions",
			Message: fmt.Sprintf("max conditions must be positive, got %d", cfg.MaxConditions),
		}
	}

	if cfg.InSetThreshold < 1 {
		return &ValidationError{
			Field:   "engine.in_set_threshold",
			Message: fmt.Sprintf("in set threshold must be positive, got %d", cfg.InSetThreshold),
		}
	}

	return nil
}

func validateRules(cfg RulesConfig, db DatabaseConfig) error {
	switch cfg.Source {
	case constants.RuleSourcePostgres:
		if !db.Postgres.Enabled() {
			return &ValidationError{
				Field:   "rules.source",
				Message: "postgres rule source requires database.postgres",
			}
		}
	case constants.RuleSourceFile:
		if cfg.File == "" {
			return &ValidationError{
				Field:   "rules.file",
				Message: "rules file is required when rules.source is file",
			}
		}
	default:
		return &ValidationError{
			Field:   "rules.source",
			Message: fmt.Sprintf("unknown rule source: %s (supported: postgres, file)", cfg.Source),
		}
	}
	return nil
}

func validateAlerts(cfg AlertsConfig, db DatabaseConfig) error {
	switch cfg.Store {
	case constants.AlertStorePostgres:
		if !db.Postgres.Enabled() {
			return &ValidationError{Field: "alerts.store", Message: "postgres alert store requires database.postgres"}
		}
	case constants.AlertStoreMongoDB:
		if !db.MongoDB.Enabled() {
			return &ValidationError{Field: "alerts.store", Message: "mongodb alert store requires database.mongodb"}
		}
	case constants.AlertStoreMemory:
	default:
		return &ValidationError{
			Field:   "alerts.store",
			Message: fmt.Sprintf("unknown alert store: %s (supported: postgres, mongodb, memory)", cfg.Store),
		}
	}

	switch cfg.TriggerCounter {
	case constants.TriggerCounterRedis:
		if !db.Redis.Enabled() {
			return &ValidationError{Field: "alerts.trigger_counter", Message: "redis trigger counter requires database.redis"}
		}
	case constants.TriggerCounterPostgres:
		if !db.Postgres.Enabled() {
			return &ValidationError{Field: "alerts.trigger_counter", Message: "postgres trigger counter requires database.postgres"}
		}
	case constants.TriggerCounterNone, "":
	default:
		return &ValidationError{
			Field:   "alerts.trigger_counter",
			Message: fmt.Sprintf("unknown trigger counter: %s (supported: redis, postgres, none)", cfg.TriggerCounter),
		}
	}

	if len(cfg.OpenStatuses) == 0 {
		return &ValidationError{
			Field:   "alerts.open_statuses",
			Message: "at least one open status is required",
		}
	}

	return nil
}

func validateEnrichment(cfg EnrichmentConfig) error {
	for module, fields := range cfg.Modules {
		for i, field := range fields {
			if field.Name == "" || field.Expression == "" {
				return &ValidationError{
					Field:   fmt.Sprintf("enrichment.modules.%s[%d]", module, i),
					Message: "computed field needs both name and expression",
				}
			}
		}
	}
	return nil
}
