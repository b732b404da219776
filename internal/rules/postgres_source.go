package rules

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"alertflow/pkg/metrics"
)

type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// ListEnabled returns every module of the organization when scope.ModuleName is empty.
func (s *PostgresSource) ListEnabled(ctx context.Context, scope Scope, limit int) ([]Rule, error) {
	query := `
		SELECT id, organization_id, module_name, rule_name, COALESCE(description, ''),
		       conditions, actions, severity, enabled, priority, metadata, created_at, updated_at
		FROM alert_rules
		WHERE organization_id = $1 AND ($2 = '' OR module_name = $2) AND enabled = true
		ORDER BY priority DESC, created_at ASC
		LIMIT $3
	`

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, scope.OrganizationID, scope.ModuleName, limit)
	metrics.ObserveDatabaseQueryDuration("alert-engine", "postgresql", "list_rules", time.Since(start))
	if err != nil {
		metrics.IncDatabaseQuery("alert-engine", "postgresql", "list_rules", "error")
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()
	metrics.IncDatabaseQuery("alert-engine", "postgresql", "list_rules", "success")

	var rules []Rule
	for rows.Next() {
		var (
			rule                      Rule
			conditions, actions, meta []byte
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.OrganizationID,
			&rule.ModuleName,
			&rule.RuleName,
			&rule.Description,
			&conditions,
			&actions,
			&rule.Severity,
			&rule.Enabled,
			&rule.Priority,
			&meta,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		decodeStored(&rule, conditions, actions, meta)

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return rules, nil
}

// IncrementTriggerCount bumps the persisted trigger counter of a rule.
func (s *PostgresSource) IncrementTriggerCount(ctx context.Context, organizationID, ruleID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE alert_rules
		SET trigger_count = trigger_count + 1, last_triggered_at = NOW()
		WHERE organization_id = $1 AND id = $2
	`, organizationID, ruleID)
	if err != nil {
		return fmt.Errorf("failed to increment trigger count: %w", err)
	}
	return nil
}
