package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"alertflow/internal/logger"
	"alertflow/pkg/models"
	"alertflow/pkg/retry"
)

// Invalidator drops cached rule sets. Empty arguments widen the scope.
type Invalidator interface {
	ClearCache(organizationID, moduleName string)
}

// UpdateHandler consumes rule update events and invalidates the matching caches.
type UpdateHandler struct {
	invalidator Invalidator
	logger      logger.Logger
}

func NewUpdateHandler(invalidator Invalidator, log logger.Logger) *UpdateHandler {
	return &UpdateHandler{
		invalidator: invalidator,
		logger:      log,
	}
}

func (h *UpdateHandler) HandleRuleUpdate(ctx context.Context, payload []byte) error {
	var event models.RuleUpdateEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to unmarshal rule update event", "error", err)
		return retry.NewFatalError(fmt.Errorf("failed to decode rule update event: %w", err))
	}

	if err := models.ValidateRuleUpdateEvent(&event); err != nil {
		h.logger.WarnwCtx(ctx, "Ignoring invalid rule update event", "error", err)
		return nil
	}

	h.logger.InfowCtx(ctx, "Received rule update event",
		"organization_id", event.OrganizationID,
		"module_name", event.ModuleName,
		"rule_id", event.RuleID,
		"action", event.Action,
	)

	h.invalidator.ClearCache(event.OrganizationID, event.ModuleName)
	return nil
}
