package management

import (
	"context"
	"errors"
	"fmt"

	"alertflow/internal/constants"
	"alertflow/internal/logger"
	"alertflow/internal/rules"
	"alertflow/pkg/condition"
	pkgerrors "alertflow/pkg/errors"
	"alertflow/pkg/models"
)

type Service interface {
	CreateRule(ctx context.Context, organizationID string, req CreateRuleRequest) (*rules.Rule, error)
	ListRules(ctx context.Context, organizationID, moduleName string) ([]rules.Rule, error)
	GetRule(ctx context.Context, organizationID, id string) (*rules.Rule, error)
	UpdateRule(ctx context.Context, organizationID, id string, req UpdateRuleRequest) (*rules.Rule, error)
	DeleteRule(ctx context.Context, organizationID, id string) error
	ToggleRule(ctx context.Context, organizationID, id string, enabled bool) (*rules.Rule, error)
	GetAuditLogs(ctx context.Context, organizationID, ruleID string, limit int) ([]AuditLog, error)
}

// Publisher announces rule changes to other engine instances.
type Publisher interface {
	Publish(ctx context.Context, organizationID, moduleName, ruleID, action, changedBy string) error
}

// Invalidator drops cached rules of the local engine.
type Invalidator interface {
	ClearCache(organizationID, moduleName string)
}

type service struct {
	repo        Repository
	audit       AuditRepository
	publisher   Publisher
	invalidator Invalidator
	guard       condition.Guard
	logger      logger.Logger
}

type ServiceOption func(*service)

func WithAudit(audit AuditRepository) ServiceOption {
	return func(s *service) {
		s.audit = audit
	}
}

func WithPublisher(p Publisher) ServiceOption {
	return func(s *service) {
		s.publisher = p
	}
}

func WithInvalidator(inv Invalidator) ServiceOption {
	return func(s *service) {
		s.invalidator = inv
	}
}

func WithGuard(g condition.Guard) ServiceOption {
	return func(s *service) {
		s.guard = g
	}
}

func NewService(repo Repository, log logger.Logger, opts ...ServiceOption) Service {
	if log == nil {
		log = logger.NopLogger()
	}
	s := &service{
		repo:   repo,
		guard:  condition.DefaultGuard(),
		logger: log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) CreateRule(ctx context.Context, organizationID string, req CreateRuleRequest) (*rules.Rule, error) {
	if organizationID == "" {
		return nil, pkgerrors.ErrInvalidRule.WithDetail("message", "organization_id is required")
	}

	node, _, err := s.guard.Parse(req.Conditions)
	if err != nil {
		return nil, invalidRule(err)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	severity := req.Severity
	if severity == "" {
		severity = rules.SeverityWarning
	}

	rule := &rules.Rule{
		ID:             req.ID,
		OrganizationID: organizationID,
		ModuleName:     req.ModuleName,
		RuleName:       req.RuleName,
		Description:    req.Description,
		Conditions:     node,
		Actions:        req.Actions,
		Severity:       severity,
		Enabled:        enabled,
		Priority:       req.Priority,
		Metadata:       req.Metadata,
	}

	if err := s.validate(rule); err != nil {
		return nil, err
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, wrapRepoError(err, rule.ID)
	}

	s.recordChange(ctx, models.ActionCreate, nil, rule)
	s.announce(ctx, models.ActionCreate, rule.OrganizationID, rule.ModuleName, rule.ID)

	return rule, nil
}

func (s *service) ListRules(ctx context.Context, organizationID, moduleName string) ([]rules.Rule, error) {
	list, err := s.repo.ListRules(ctx, organizationID, moduleName)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return list, nil
}

func (s *service) GetRule(ctx context.Context, organizationID, id string) (*rules.Rule, error) {
	rule, err := s.repo.GetRule(ctx, organizationID, id)
	if err != nil {
		return nil, wrapRepoError(err, id)
	}
	return rule, nil
}

func (s *service) UpdateRule(ctx context.Context, organizationID, id string, req UpdateRuleRequest) (*rules.Rule, error) {
	current, err := s.repo.GetRule(ctx, organizationID, id)
	if err != nil {
		return nil, wrapRepoError(err, id)
	}

	old := *current
	updated := *current
	if err := s.applyUpdate(&updated, req); err != nil {
		return nil, err
	}
	if err := s.validate(&updated); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateRule(ctx, &updated); err != nil {
		return nil, wrapRepoError(err, id)
	}

	s.recordChange(ctx, models.ActionUpdate, &old, &updated)
	s.announce(ctx, models.ActionUpdate, updated.OrganizationID, updated.ModuleName, updated.ID)
	if old.ModuleName != updated.ModuleName {
		s.announce(ctx, models.ActionUpdate, old.OrganizationID, old.ModuleName, old.ID)
	}

	return &updated, nil
}

func (s *service) DeleteRule(ctx context.Context, organizationID, id string) error {
	current, err := s.repo.GetRule(ctx, organizationID, id)
	if err != nil {
		return wrapRepoError(err, id)
	}

	if err := s.repo.DeleteRule(ctx, organizationID, id); err != nil {
		return wrapRepoError(err, id)
	}

	s.recordChange(ctx, models.ActionDelete, current, nil)
	s.announce(ctx, models.ActionDelete, current.OrganizationID, current.ModuleName, current.ID)
	return nil
}

func (s *service) ToggleRule(ctx context.Context, organizationID, id string, enabled bool) (*rules.Rule, error) {
	current, err := s.repo.GetRule(ctx, organizationID, id)
	if err != nil {
		return nil, wrapRepoError(err, id)
	}
	if current.Enabled == enabled {
		return current, nil
	}

	old := *current
	current.Enabled = enabled
	if err := s.repo.UpdateRule(ctx, current); err != nil {
		return nil, wrapRepoError(err, id)
	}

	s.recordChange(ctx, models.ActionToggle, &old, current)
	s.announce(ctx, models.ActionToggle, current.OrganizationID, current.ModuleName, current.ID)
	return current, nil
}

func (s *service) GetAuditLogs(ctx context.Context, organizationID, ruleID string, limit int) ([]AuditLog, error) {
	if s.audit == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "audit logging not enabled")
	}
	if limit <= 0 || limit > constants.MaxAuditLimit {
		limit = constants.DefaultAuditLimit
	}
	logs, err := s.audit.ListAuditLogs(ctx, organizationID, ruleID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) applyUpdate(rule *rules.Rule, req UpdateRuleRequest) error {
	if req.ModuleName != nil {
		rule.ModuleName = *req.ModuleName
	}
	if req.RuleName != nil {
		rule.RuleName = *req.RuleName
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if len(req.Conditions) > 0 {
		node, _, err := s.guard.Parse(req.Conditions)
		if err != nil {
			return invalidRule(err)
		}
		rule.Conditions = node
	}
	if req.Actions != nil {
		rule.Actions = *req.Actions
	}
	if req.Severity != nil {
		rule.Severity = *req.Severity
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.Metadata != nil {
		rule.Metadata = *req.Metadata
	}
	return nil
}

// validate runs before the repository assigns an id, so a placeholder stands in for it.
func (s *service) validate(rule *rules.Rule) error {
	check := *rule
	if check.ID == "" {
		check.ID = "new"
	}
	if err := ValidateRule(&check, s.guard); err != nil {
		return invalidRule(err)
	}
	return nil
}

func (s *service) recordChange(ctx context.Context, action string, old, updated *rules.Rule) {
	if s.audit == nil {
		return
	}

	entry := &AuditLog{
		Action:    action,
		OldValue:  old,
		NewValue:  updated,
		ChangedBy: getChangedBy(ctx),
	}
	if updated != nil {
		entry.OrganizationID, entry.RuleID = updated.OrganizationID, updated.ID
	} else if old != nil {
		entry.OrganizationID, entry.RuleID = old.OrganizationID, old.ID
	}

	if err := s.audit.LogRuleChange(ctx, entry); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to write rule audit log",
			"rule_id", entry.RuleID,
			"action", action,
			"error", err,
		)
	}
}

// announce drops the local cache for the scope and tells the other instances to do the same.
func (s *service) announce(ctx context.Context, action, organizationID, moduleName, ruleID string) {
	if s.invalidator != nil {
		s.invalidator.ClearCache(organizationID, moduleName)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, organizationID, moduleName, ruleID, action, getChangedBy(ctx)); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish rule update event",
			"rule_id", ruleID,
			"action", action,
			"error", err,
		)
	}
}

func invalidRule(err error) error {
	return pkgerrors.ErrInvalidRule.WithCause(err).WithDetail("message", err.Error())
}

func wrapRepoError(err error, id string) error {
	if errors.Is(err, ErrRuleNotFound) {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return pkgerrors.Wrap(fmt.Errorf("rule %s: %w", id, err), pkgerrors.ErrInternal)
}

type changedByKey struct{}

// WithChangedBy records who is changing rules in ctx.
func WithChangedBy(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, changedByKey{}, user)
}

func getChangedBy(ctx context.Context) string {
	if id, ok := ctx.Value(changedByKey{}).(string); ok && id != "" {
		return id
	}
	return "system"
}
