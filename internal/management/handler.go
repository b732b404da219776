package management

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"alertflow/internal/logger"
	"alertflow/pkg/errors"
)

// ChangedByHeader names the caller recorded in the audit log.
const ChangedByHeader = "X-User-ID"

type Handler struct {
	service Service
	logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Handler{
		service: service,
		logger:  log,
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

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	org := router.Group("/api/v1/organizations/:org_id")
	org.Use(changedBy())
	{
		rules := org.Group("/rules")
		{
			rules.GET("", h.ListRules)
			rules.POST("", h.CreateRule)
			rules.GET("/:id", h.GetRule)
			rules.PUT("/:id", h.UpdateRule)
			rules.DELETE("/:id", h.DeleteRule)
			rules.POST("/:id/enable", h.toggle(true))
			rules.POST("/:id/disable", h.toggle(false))
			rules.GET("/:id/audit", h.GetRuleAuditLogs)
		}

		org.GET("/audit", h.GetAuditLogs)
	}
}

func changedBy() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := c.GetHeader(ChangedByHeader); user != "" {
			c.Request = c.Request.WithContext(WithChangedBy(c.Request.Context(), user))
		}
		c.Next()
	}
}

// ListRules lists every rule of the organization, optionally narrowed with ?module=.
func (h *Handler) ListRules(c *gin.Context) {
	list, err := h.service.ListRules(c.Request.Context(), c.Param("org_id"), c.Query("module"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrInvalidRule.WithCause(err).WithDetail("message", err.Error()))
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), c.Param("org_id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.service.GetRule(c.Request.Context(), c.Param("org_id"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrInvalidRule.WithCause(err).WithDetail("message", err.Error()))
		return
	}

	rule, err := h.service.UpdateRule(c.Request.Context(), c.Param("org_id"), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.service.DeleteRule(c.Request.Context(), c.Param("org_id"), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) toggle(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		rule, err := h.service.ToggleRule(c.Request.Context(), c.Param("org_id"), c.Param("id"), enabled)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, rule)
	}
}

func (h *Handler) GetRuleAuditLogs(c *gin.Context) {
	h.auditLogs(c, c.Param("id"))
}

func (h *Handler) GetAuditLogs(c *gin.Context) {
	h.auditLogs(c, c.Query("rule_id"))
}

func (h *Handler) auditLogs(c *gin.Context, ruleID string) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	logs, err := h.service.GetAuditLogs(c.Request.Context(), c.Param("org_id"), ruleID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
