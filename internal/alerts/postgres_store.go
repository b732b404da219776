package alerts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"alertflow/pkg/metrics"
)

const pgUniqueViolation = "23505"

// PostgresStore relies on the partial unique index alerts_open_fingerprint_idx
// (organization_id, fingerprint) WHERE status IN ('active', 'acknowledged', 'new').
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ExistsOpen(ctx context.Context, organizationID, fingerprint string, statuses []string) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveAlertStoreDuration("postgres", "exists_open", time.Since(start))
	}()

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE organization_id = $1 AND fingerprint = $2 AND status = ANY($3)
		)
	`, organizationID, fingerprint, pq.Array(statuses)).Scan(&exists)
	if err != nil {
		metrics.IncDatabaseQuery("alert-engine", "postgresql", "exists_open", "error")
		return false, fmt.Errorf("failed to check open alerts: %w", err)
	}

	metrics.IncDatabaseQuery("alert-engine", "postgresql", "exists_open", "success")
	return exists, nil
}

func (s *PostgresStore) Create(ctx context.Context, alert *Alert) error {
	start := time.Now()
	defer func() {
		metrics.ObserveAlertStoreDuration("postgres", "create", time.Since(start))
	}()

	meta, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode alert metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (
			id, organization_id, rule_id, title, description, severity,
			status, fingerprint, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		alert.ID,
		alert.OrganizationID,
		alert.RuleID,
		alert.Title,
		alert.Description,
		alert.Severity,
		string(alert.Status),
		alert.Fingerprint,
		meta,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			metrics.IncDatabaseQuery("alert-engine", "postgresql", "create_alert", "duplicate")
			return ErrDuplicateAlert
		}
		metrics.IncDatabaseQuery("alert-engine", "postgresql", "create_alert", "error")
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	metrics.IncDatabaseQuery("alert-engine", "postgresql", "create_alert", "success")
	return nil
}
