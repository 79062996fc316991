package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wallethub/eventcore/internal/saga"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSagaStore struct {
	snapshots map[uuid.UUID]saga.Snapshot
}

func (s *fakeSagaStore) Load(_ context.Context, sagaID uuid.UUID) (saga.Snapshot, bool, error) {
	snap, ok := s.snapshots[sagaID]
	return snap, ok, nil
}

func (s *fakeSagaStore) Create(_ context.Context, sagaID uuid.UUID) (saga.Snapshot, error) {
	snap := saga.Snapshot{SagaID: sagaID, State: saga.StateInitial}
	s.snapshots[sagaID] = snap
	return snap, nil
}

func (s *fakeSagaStore) Save(_ context.Context, next saga.Snapshot, _ int) error {
	s.snapshots[next.SagaID] = next
	return nil
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()

	assert.NotNil(t, cfg.Logger)
	assert.Equal(t, "dev", cfg.Version)
	assert.Equal(t, "unknown", cfg.BuildTime)
	assert.Equal(t, "development", cfg.Environment)
}

func TestNewRouter(t *testing.T) {
	router := NewRouter(DefaultRouterConfig())
	require.NotNil(t, router)
}

func TestNewRouter_NilConfig(t *testing.T) {
	router := NewRouter(nil)
	require.NotNil(t, router)
}

func TestRouter_HealthEndpoints(t *testing.T) {
	router := NewRouter(DefaultRouterConfig())

	endpoints := []string{"/healthz", "/live"}
	for _, endpoint := range endpoints {
		t.Run(endpoint, func(t *testing.T) {
			req := httptest.NewRequest("GET", endpoint, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestRouter_ReadyzWithoutPool(t *testing.T) {
	router := NewRouter(DefaultRouterConfig())

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := NewRouter(DefaultRouterConfig())

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_")
}

func TestRouter_404Handler(t *testing.T) {
	router := NewRouter(DefaultRouterConfig())

	req := httptest.NewRequest("GET", "/nonexistent/path", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router := NewRouter(DefaultRouterConfig())

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_SagaDebugLookup(t *testing.T) {
	store := &fakeSagaStore{snapshots: map[uuid.UUID]saga.Snapshot{}}
	sagaID := uuid.New()
	_, _ = store.Create(context.Background(), sagaID)

	cfg := DefaultRouterConfig()
	cfg.SagaStore = store
	router := NewRouter(cfg)

	req := httptest.NewRequest("GET", "/debug/sagas/"+sagaID.String(), nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_SagaDebugLookup_NotFound(t *testing.T) {
	store := &fakeSagaStore{snapshots: map[uuid.UUID]saga.Snapshot{}}

	cfg := DefaultRouterConfig()
	cfg.SagaStore = store
	router := NewRouter(cfg)

	req := httptest.NewRequest("GET", "/debug/sagas/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_SagaDebugLookup_InvalidID(t *testing.T) {
	store := &fakeSagaStore{snapshots: map[uuid.UUID]saga.Snapshot{}}

	cfg := DefaultRouterConfig()
	cfg.SagaStore = store
	router := NewRouter(cfg)

	req := httptest.NewRequest("GET", "/debug/sagas/not-a-uuid", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_SagaDebugLookup_NotRegisteredWithoutStore(t *testing.T) {
	router := NewRouter(DefaultRouterConfig())

	req := httptest.NewRequest("GET", "/debug/sagas/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
