package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMetrics_BasicRequest(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestMetrics_SkipMetricsEndpoint(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())
	router.GET("/metrics", func(c *gin.Context) {
		c.String(http.StatusOK, "metrics")
	})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics_DifferentStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"200 OK", http.StatusOK},
		{"400 Bad Request", http.StatusBadRequest},
		{"404 Not Found", http.StatusNotFound},
		{"500 Internal Server Error", http.StatusInternalServerError},
		{"503 Service Unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(Metrics())
			router.GET("/test", func(c *gin.Context) {
				c.Status(tt.statusCode)
			})

			req := httptest.NewRequest("GET", "/test", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.statusCode, w.Code)
		})
	}
}

func TestMetrics_UnknownPath(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())

	req := httptest.NewRequest("GET", "/unknown-path", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateDBConnections(t *testing.T) {
	UpdateDBConnections(5, 10, 25)
	UpdateDBConnections(0, 0, 0)
	UpdateDBConnections(25, 0, 25)
}

func TestMetrics_ResponseSize(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())
	router.GET("/large", func(c *gin.Context) {
		c.String(http.StatusOK, "This is a larger response body for testing")
	})

	req := httptest.NewRequest("GET", "/large", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Greater(t, w.Body.Len(), 0)
}

func TestMetrics_SlowRequest(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())
	router.GET("/slow", func(c *gin.Context) {
		time.Sleep(10 * time.Millisecond)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/slow", nil)
	w := httptest.NewRecorder()

	start := time.Now()
	router.ServeHTTP(w, req)
	duration := time.Since(start)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, duration.Milliseconds(), int64(10))
}

func TestMetricsCollectors_Registered(t *testing.T) {
	ch := make(chan *prometheus.Desc, 100)

	httpRequestsTotal.Describe(ch)
	assert.NotEmpty(t, ch)
	<-ch

	httpRequestDuration.Describe(ch)
	assert.NotEmpty(t, ch)
	<-ch

	httpRequestsInFlight.Describe(ch)
	assert.NotEmpty(t, ch)
	<-ch

	httpResponseSize.Describe(ch)
	assert.NotEmpty(t, ch)
	<-ch

	dbConnections.Describe(ch)
	assert.NotEmpty(t, ch)
	<-ch
}

func TestMetrics_ConcurrentRequests(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())
	router.GET("/concurrent", func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		c.Status(http.StatusOK)
	})

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			req := httptest.NewRequest("GET", "/concurrent", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestMetrics_PathWithParams(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())
	router.GET("/sagas/:id", func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("id"))
	})

	req := httptest.NewRequest("GET", "/sagas/123", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "123", w.Body.String())
}
