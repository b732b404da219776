package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"alertflow/internal/rules"
)

type AuditRepository interface {
	LogRuleChange(ctx context.Context, entry *AuditLog) error
	ListAuditLogs(ctx context.Context, organizationID, ruleID string, limit int) ([]AuditLog, error)
}

// AuditLogger keeps a before/after snapshot of every rule change.
type AuditLogger struct {
	db *sql.DB
}

func NewAuditLogger(db *sql.DB) *AuditLogger {
	return &AuditLogger{db: db}
}

func (a *AuditLogger) LogRuleChange(ctx context.Context, entry *AuditLog) error {
	query := `
		INSERT INTO alert_rule_audit_logs (id, organization_id, rule_id, action, old_value, new_value, changed_by, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	oldValue, err := snapshot(entry.OldValue)
	if err != nil {
		return err
	}
	newValue, err := snapshot(entry.NewValue)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx, query,
		entry.ID, entry.OrganizationID, entry.RuleID, entry.Action,
		oldValue, newValue, entry.ChangedBy, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit entry: %w", err)
	}

	return nil
}

// ListAuditLogs returns the newest entries first. An empty ruleID lists the whole organization.
func (a *AuditLogger) ListAuditLogs(ctx context.Context, organizationID, ruleID string, limit int) ([]AuditLog, error) {
	query := `
		SELECT id, organization_id, rule_id, action, old_value, new_value, changed_by, timestamp
		FROM alert_rule_audit_logs
		WHERE organization_id = $1 AND ($2 = '' OR rule_id = $2)
		ORDER BY timestamp DESC
		LIMIT $3
	`

	rows, err := a.db.QueryContext(ctx, query, organizationID, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []AuditLog{}
	for rows.Next() {
		var (
			entry              AuditLog
			oldValue, newValue []byte
		)
		if err := rows.Scan(&entry.ID, &entry.OrganizationID, &entry.RuleID, &entry.Action,
			&oldValue, &newValue, &entry.ChangedBy, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if entry.OldValue, err = restore(oldValue); err != nil {
			return nil, err
		}
		if entry.NewValue, err = restore(newValue); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}

func snapshot(rule *rules.Rule) ([]byte, error) {
	if rule == nil {
		return nil, nil
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule snapshot: %w", err)
	}
	return data, nil
}

func restore(data []byte) (*rules.Rule, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rule rules.Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to decode rule snapshot: %w", err)
	}
	return &rule, nil
}
