package handlers

import (
	"context"
	"net/http"

	appErr "github.com/neoncad/engine/pkg/errors"
)

// Pinger checks a dependency the API needs to serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler { return &HealthHandler{db: db} }

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness reports ready only when the database answers.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			writeError(w, r, appErr.Wrap(err, appErr.CodeUnavailable, "database unavailable"))
			return
		}
	}
	writeData(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
