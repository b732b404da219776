package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                { return s.name }
func (s stubChecker) Check(context.Context) error { return s.err }

func TestCheckerRegistry_Status(t *testing.T) {
	tests := []struct {
		name     string
		required error
		optional error
		want     Status
	}{
		{"all healthy", nil, nil, StatusHealthy},
		{"optional down", nil, errors.New("down"), StatusDegraded},
		{"required down", errors.New("down"), nil, StatusUnhealthy},
		{"both down", errors.New("down"), errors.New("down"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			r.Register(stubChecker{name: "store", err: tt.required})
			r.RegisterOptional(stubChecker{name: "counter", err: tt.optional})

			h := r.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, 2)
		})
	}
}

func TestRedisChecker(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	checker := NewRedisChecker(client)
	assert.NoError(t, checker.Check(context.Background()))

	s.Close()
	assert.Error(t, checker.Check(context.Background()))
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := NewCheckerRegistry()
	r.Register(stubChecker{name: "store", err: errors.New("connection refused")})

	router := gin.New()
	router.GET("/health", r.Handler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, StatusUnhealthy, body.Status)
	assert.Equal(t, "connection refused", body.Checks["store"].Message)
}

func TestCircuitBreakerChecker(t *testing.T) {
	state := "closed"
	checker := NewCircuitBreakerChecker("alert-store", func() string { return state })

	assert.Equal(t, "circuit_breaker.alert-store", checker.Name())
	assert.NoError(t, checker.Check(context.Background()))

	state = "half-open"
	assert.NoError(t, checker.Check(context.Background()))

	state = "open"
	assert.ErrorContains(t, checker.Check(context.Background()), "alert-store is open")
}
