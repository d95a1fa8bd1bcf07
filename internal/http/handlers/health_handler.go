package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/krishiconnect/backend/internal/secretstore"
)

// HealthHandler exposes the service health endpoint.
type HealthHandler struct {
	db    *sqlx.DB
	store secretstore.Store
}

// NewHealthHandler creates the handler.
func NewHealthHandler(db *sqlx.DB, store secretstore.Store) *HealthHandler {
	return &HealthHandler{db: db, store: store}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	// A missing probe key still proves the store answered.
	_, err := h.store.Get(ctx, "health:probe")
	if err != nil && !errors.Is(err, secretstore.ErrNotFound) {
		// The OTP channels degrade without the store, so the service stays up.
		checks["secret_store"] = "degraded: " + err.Error()
		if status == "healthy" {
			status = "degraded"
		}
	} else {
		checks["secret_store"] = "healthy"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	})
}
