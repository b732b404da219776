package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"alertflow/internal/engine"
	"alertflow/internal/logger"
	"alertflow/internal/pipeline"
	"alertflow/internal/rules"
	"alertflow/pkg/condition"
	"alertflow/pkg/errors"
	"alertflow/pkg/models"
)

type Processor interface {
	Process(ctx context.Context, evt *models.Event) (pipeline.Outcome, error)
}

// Engines is the management surface of the per-scope engines.
type Engines interface {
	ClearCache(organizationID, moduleName string)
	Stats() map[string]engine.Stats
	ResetStats()
}

type Handler struct {
	processor Processor
	engines   Engines
	guard     condition.Guard
	logger    logger.Logger
}

func NewHandler(processor Processor, engines Engines, guard condition.Guard, log logger.Logger) *Handler {
	return &Handler{
		processor: processor,
		engines:   engines,
		guard:     guard,
		logger:    log,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/evaluate", h.Evaluate)
		v1.POST("/rules/validate", h.ValidateRule)
		v1.POST("/cache/clear", h.ClearCache)
		v1.GET("/stats", h.Stats)
		v1.POST("/stats/reset", h.ResetStats)
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

type EvaluateResponse struct {
	pipeline.Outcome
	Triggered int `json:"triggered"`
}

// Evaluate runs an event through the pipeline synchronously. Results of rules that did not
// trigger are included so callers can see every evaluated rule.
func (h *Handler) Evaluate(c *gin.Context) {
	var evt models.Event
	if err := c.ShouldBindJSON(&evt); err != nil {
		h.HandleError(c, errors.ErrInvalidEvent.WithCause(err))
		return
	}

	out, err := h.processor.Process(c.Request.Context(), &evt)
	if err != nil {
		var vErr *models.ValidationError
		if stderrors.As(err, &vErr) {
			h.HandleError(c, errors.ErrInvalidEvent.WithCause(err).WithDetail("field", vErr.Field))
			return
		}
		h.HandleError(c, errors.ErrInternal.WithCause(err))
		return
	}

	if out.Results == nil {
		out.Results = []engine.Result{}
	}
	c.JSON(http.StatusOK, EvaluateResponse{Outcome: out, Triggered: out.Triggered()})
}

type ValidateRuleRequest struct {
	Conditions json.RawMessage `json:"conditions"`
	Severity   string          `json:"severity,omitempty"`
}

// ValidateRule checks a condition tree against the structural limits and compiles it.
func (h *Handler) ValidateRule(c *gin.Context) {
	var req ValidateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	if len(req.Conditions) == 0 {
		h.HandleError(c, errors.ErrInvalidRule.WithDetail("message", "conditions are required"))
		return
	}

	if req.Severity != "" && !rules.Severity(req.Severity).Valid() {
		h.HandleError(c, errors.ErrInvalidRule.WithDetail("message", "unknown severity "+req.Severity))
		return
	}

	if _, _, err := h.guard.Parse(req.Conditions); err != nil {
		h.HandleError(c, errors.ErrInvalidRule.WithCause(err).WithDetail("message", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

type ClearCacheRequest struct {
	OrganizationID string `json:"organization_id"`
	ModuleName     string `json:"module_name"`
}

// ClearCache drops cached rule sets. An empty body clears every scope.
func (h *Handler) ClearCache(c *gin.Context) {
	var req ClearCacheRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.HandleError(c, errors.ErrValidation.WithCause(err))
			return
		}
	}

	if req.ModuleName != "" && req.OrganizationID == "" {
		h.HandleError(c, errors.ErrValidation.WithDetail("message", "module_name requires organization_id"))
		return
	}

	h.engines.ClearCache(req.OrganizationID, req.ModuleName)
	h.logger.InfowCtx(c.Request.Context(), "Rule cache cleared",
		"organization_id", req.OrganizationID,
		"module_name", req.ModuleName,
	)
	c.Status(http.StatusNoContent)
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engines.Stats())
}

func (h *Handler) ResetStats(c *gin.Context) {
	h.engines.ResetStats()
	c.Status(http.StatusNoContent)
}
