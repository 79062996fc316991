package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHealthTestRouter() (*gin.Engine, *HealthHandler) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	handler := NewHealthHandler(nil, "1.0.0", "2024-01-01T00:00:00Z")
	return router, handler
}

func TestNewHealthHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		version := "1.2.3"
		buildTime := "2024-01-15T10:30:00Z"

		handler := NewHealthHandler(nil, version, buildTime)

		assert.NotNil(t, handler)
		assert.Equal(t, version, handler.version)
		assert.Equal(t, buildTime, handler.buildTime)
		assert.False(t, handler.startTime.IsZero())
	})

	t.Run("WithPool", func(t *testing.T) {
		var pool *pgxpool.Pool

		handler := NewHealthHandler(pool, "1.0.0", "2024-01-01")

		assert.NotNil(t, handler)
		assert.Equal(t, pool, handler.pool)
	})
}

func TestHealthHandler_Health(t *testing.T) {
	t.Run("Success_ReturnsHealthyStatus", func(t *testing.T) {
		router, handler := setupHealthTestRouter()
		router.GET("/healthz", handler.Health)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response HealthResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)

		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "1.0.0", response.Version)
		assert.Equal(t, "2024-01-01T00:00:00Z", response.BuildTime)
		assert.NotEmpty(t, response.Uptime)
		assert.False(t, response.Timestamp.IsZero())
		assert.Nil(t, response.Checks)
	})
}

func TestHealthHandler_Live(t *testing.T) {
	router, handler := setupHealthTestRouter()
	router.GET("/live", handler.Live)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "alive", response["status"])
}

func TestHealthHandler_Ready_WithoutPool(t *testing.T) {
	router, handler := setupHealthTestRouter()
	router.GET("/readyz", handler.Ready)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response ReadinessResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.True(t, response.Ready)
	assert.Equal(t, "not configured", response.Checks["database"])
	assert.False(t, response.Timestamp.IsZero())
}

func TestHealthHandler_DetailedHealth(t *testing.T) {
	t.Run("NoPool_StillReturnsHealthy", func(t *testing.T) {
		router, handler := setupHealthTestRouter()
		router.GET("/healthz/detailed", handler.DetailedHealth)

		req := httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		var response HealthResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)

		assert.Equal(t, "healthy", response.Status)
		assert.Empty(t, response.Checks)
	})
}

func TestHealthHandler_RegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHealthHandler(nil, "1.0.0", "2024-01-01")
	handler.RegisterRoutes(router)

	routes := router.Routes()
	routeMap := make(map[string]string)
	for _, route := range routes {
		routeMap[route.Path] = route.Method
	}

	assert.Equal(t, "GET", routeMap["/healthz"])
	assert.Equal(t, "GET", routeMap["/healthz/detailed"])
	assert.Equal(t, "GET", routeMap["/readyz"])
	assert.Equal(t, "GET", routeMap["/live"])

	testCases := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"Health", "/healthz", http.StatusOK},
		{"Live", "/live", http.StatusOK},
		{"Ready", "/readyz", http.StatusOK},
		{"DetailedHealth", "/healthz/detailed", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tc.expectedStatus, w.Code)
		})
	}
}

func TestHealthHandler_EmptyVersion(t *testing.T) {
	router := gin.New()
	handler := NewHealthHandler(nil, "", "")
	router.GET("/healthz", handler.Health)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "healthy", response.Status)
	assert.Empty(t, response.Version)
	assert.Empty(t, response.BuildTime)
}

func TestHealthHandler_MultipleChecksConsistentMetadata(t *testing.T) {
	router, handler := setupHealthTestRouter()
	router.GET("/healthz", handler.Health)

	var responses []HealthResponse
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var response HealthResponse
		_ = json.Unmarshal(w.Body.Bytes(), &response)
		responses = append(responses, response)

		time.Sleep(10 * time.Millisecond)
	}

	for i := 1; i < len(responses); i++ {
		assert.Equal(t, responses[0].Version, responses[i].Version)
		assert.Equal(t, responses[0].BuildTime, responses[i].BuildTime)
		assert.Equal(t, responses[0].Status, responses[i].Status)
	}
}
