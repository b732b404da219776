package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"alertflow/internal/rules"
	pkgerrors "alertflow/pkg/errors"
	"alertflow/pkg/metrics"
)

var ErrRuleNotFound = errors.New("rule not found")

type Repository interface {
	CreateRule(ctx context.Context, rule *rules.Rule) error
	GetRule(ctx context.Context, organizationID, id string) (*rules.Rule, error)
	ListRules(ctx context.Context, organizationID, moduleName string) ([]rules.Rule, error)
	UpdateRule(ctx context.Context, rule *rules.Rule) error
	DeleteRule(ctx context.Context, organizationID, id string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const ruleColumns = `id, organization_id, module_name, rule_name, COALESCE(description, ''),
	conditions, actions, severity, enabled, priority, metadata, created_at, updated_at`

func observe(operation string, start time.Time, err error) {
	metrics.ObserveDatabaseQueryDuration("alert-engine", "postgresql", operation, time.Since(start))
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery("alert-engine", "postgresql", operation, status)
}

func encodeRule(rule *rules.Rule) (conditions, actions, meta []byte, err error) {
	if conditions, err = json.Marshal(rule.Conditions); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode conditions: %w", err)
	}
	if actions, err = json.Marshal(rule.Actions); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode actions: %w", err)
	}
	if rule.Metadata == nil {
		meta = []byte("{}")
	} else if meta, err = json.Marshal(rule.Metadata); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return conditions, actions, meta, nil
}

func (r *PostgresRepository) CreateRule(ctx context.Context, rule *rules.Rule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	conditions, actions, meta, err := encodeRule(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alert_rules (id, organization_id, module_name, rule_name, description, conditions,
		                         actions, severity, enabled, priority, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	start := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.OrganizationID, rule.ModuleName, rule.RuleName, rule.Description,
		conditions, actions, rule.Severity, rule.Enabled, rule.Priority, meta,
		rule.CreatedAt, rule.UpdatedAt,
	)
	observe("create_rule", start, err)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("rule with id '%s' already exists", rule.ID))
		}
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetRule(ctx context.Context, organizationID, id string) (*rules.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE organization_id = $1 AND id = $2`

	start := time.Now()
	row := r.db.QueryRowContext(ctx, query, organizationID, id)
	rule, err := scanRule(row)
	observe("get_rule", start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// ListRules includes disabled rules. An empty moduleName lists the whole organization.
func (r *PostgresRepository) ListRules(ctx context.Context, organizationID, moduleName string) ([]rules.Rule, error) {
	query := `SELECT ` + ruleColumns + `
		FROM alert_rules
		WHERE organization_id = $1 AND ($2 = '' OR module_name = $2)
		ORDER BY priority DESC, created_at ASC`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, organizationID, moduleName)
	observe("list_rules_all", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	out := []rules.Rule{}
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, *rule)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) UpdateRule(ctx context.Context, rule *rules.Rule) error {
	rule.UpdatedAt = time.Now().UTC()

	conditions, actions, meta, err := encodeRule(rule)
	if err != nil {
		return err
	}

	query := `
		UPDATE alert_rules
		SET module_name = $1, rule_name = $2, description = $3, conditions = $4, actions = $5,
		    severity = $6, enabled = $7, priority = $8, metadata = $9, updated_at = $10
		WHERE organization_id = $11 AND id = $12
	`

	start := time.Now()
	res, err := r.db.ExecContext(ctx, query,
		rule.ModuleName, rule.RuleName, rule.Description, conditions, actions,
		rule.Severity, rule.Enabled, rule.Priority, meta, rule.UpdatedAt,
		rule.OrganizationID, rule.ID,
	)
	observe("update_rule", start, err)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	return expectOneRow(res)
}

func (r *PostgresRepository) DeleteRule(ctx context.Context, organizationID, id string) error {
	start := time.Now()
	res, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE organization_id = $1 AND id = $2`, organizationID, id)
	observe("delete_rule", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRuleNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(s scanner) (*rules.Rule, error) {
	var (
		rule                      rules.Rule
		conditions, actions, meta []byte
	)
	if err := s.Scan(
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
		return nil, err
	}

	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("rule %s: failed to decode conditions: %w", rule.ID, err)
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("rule %s: failed to decode actions: %w", rule.ID, err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rule.Metadata); err != nil {
			return nil, fmt.Errorf("rule %s: failed to decode metadata: %w", rule.ID, err)
		}
	}
	return &rule, nil
}
