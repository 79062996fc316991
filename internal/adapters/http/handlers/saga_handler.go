package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wallethub/eventcore/internal/saga"
)

// SagaHandler exposes a read-only lookup over saga snapshots for
// operational debugging. It never mutates saga state; transitions only
// happen through the consumer dispatcher.
type SagaHandler struct {
	store saga.Store
}

// NewSagaHandler creates a new SagaHandler.
func NewSagaHandler(store saga.Store) *SagaHandler {
	return &SagaHandler{store: store}
}

// sagaSnapshotResponse is the JSON view of a saga.Snapshot.
type sagaSnapshotResponse struct {
	SagaID           uuid.UUID `json:"saga_id"`
	State            string    `json:"state"`
	Version          int       `json:"version"`
	LastEventID      uuid.UUID `json:"last_event_id,omitempty"`
	LastTransitionAt string    `json:"last_transition_at"`
}

// Get returns the current snapshot for a saga, identified by its
// correlation ID. 404 if no saga has ever been created for that ID.
//
// GET /debug/sagas/:id
func (h *SagaHandler) Get(c *gin.Context) {
	sagaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "saga id must be a UUID"})
		return
	}

	snapshot, found, err := h.store.Load(c.Request.Context(), sagaID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "saga not found"})
		return
	}

	c.JSON(http.StatusOK, sagaSnapshotResponse{
		SagaID:           snapshot.SagaID,
		State:            string(snapshot.State),
		Version:          snapshot.Version,
		LastEventID:      snapshot.LastEventID,
		LastTransitionAt: snapshot.LastTransitionAt.Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// RegisterRoutes registers the saga debug routes.
func (h *SagaHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/debug/sagas/:id", h.Get)
}
