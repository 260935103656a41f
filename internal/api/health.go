package api

import (
	"context"
	"net/http"
	"time"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	database    pinger
	catalogSize func() int
}

func NewHealthHandler(database pinger, catalogSize func() int) *HealthHandler {
	return &HealthHandler{database: database, catalogSize: catalogSize}
}

// Check reports degraded when the database is unreachable. An empty catalog
// is reported but does not degrade the service.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.database.PingContext(ctx); err != nil {
		dbStatus = "error"
		status = http.StatusServiceUnavailable
	}

	catalogStatus := "ok"
	cards := h.catalogSize()
	if cards == 0 {
		catalogStatus = "empty"
	}

	result := "ok"
	if status != http.StatusOK {
		result = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status": result,
		"checks": map[string]any{
			"database": dbStatus,
			"catalog":  catalogStatus,
			"cards":    cards,
		},
	})
}
