package management

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertflow/internal/rules"
)

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(f.svc, nil).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(ChangedByHeader, "bob")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const createBody = `{
	"id": "unpaid",
	"module_name": "orders",
	"rule_name": "Unpaid order",
	"conditions": {"field": "payment_status", "operator": "!=", "value": "paid"},
	"actions": {"channels": ["slack"], "title_template": "Unpaid order {order_id}"},
	"severity": "critical"
}`

func TestHandler_RuleLifecycle(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)
	base := "/api/v1/organizations/org-1/rules"

	w := do(router, http.MethodPost, base, createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created rules.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "unpaid", created.ID)
	assert.Equal(t, "org-1", created.OrganizationID)
	assert.Equal(t, "bob", f.audit.entries[0].ChangedBy)

	w = do(router, http.MethodGet, base+"?module=orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []rules.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = do(router, http.MethodGet, base+"?module=inventory", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(router, http.MethodPut, base+"/unpaid", `{"priority": 7}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated rules.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 7, updated.Priority)

	w = do(router, http.MethodPost, base+"/unpaid/disable", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":false`)

	w = do(router, http.MethodGet, base+"/unpaid/audit", "")
	require.Equal(t, http.StatusOK, w.Code)
	var logs []AuditLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	assert.Len(t, logs, 3)

	w = do(router, http.MethodDelete, base+"/unpaid", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(router, http.MethodGet, base+"/unpaid", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	w = do(router, http.MethodGet, "/api/v1/organizations/org-1/audit?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	assert.Len(t, logs, 2)
}

func TestHandler_CreateRuleRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"module_name":`},
		{"missing rule name", `{"module_name":"orders","conditions":{"field":"x","operator":"=","value":1}}`},
		{"bad operator", `{"module_name":"orders","rule_name":"r","conditions":{"field":"x","operator":"like","value":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			w := do(newTestRouter(f), http.MethodPost, "/api/v1/organizations/org-1/rules", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "INVALID_RULE")
			assert.Empty(t, f.repo.rules)
		})
	}
}
