package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/alchemorsel/dietgen/internal/infrastructure/ai"
	"github.com/alchemorsel/dietgen/internal/infrastructure/http/middleware"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports database reachability and provider health.
type HealthHandler struct {
	db      Pinger
	ai      *ai.HealthChecker
	version string
	timeout time.Duration
}

// NewHealthHandler creates the health endpoint. checker may be nil.
func NewHealthHandler(db Pinger, checker *ai.HealthChecker, version string) *HealthHandler {
	return &HealthHandler{db: db, ai: checker, version: version, timeout: 5 * time.Second}
}

type healthResponse struct {
	Status    string           `json:"status"`
	Version   string           `json:"version"`
	Database  string           `json:"database"`
	AI        *ai.HealthStatus `json:"ai,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// ServeHTTP answers 503 when the database is unreachable or no completion
// provider is healthy.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := healthResponse{
		Status:    "healthy",
		Version:   h.version,
		Database:  "up",
		Timestamp: time.Now().Unix(),
	}
	code := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			resp.Database = "down"
			resp.Status = ai.HealthCritical
			code = http.StatusServiceUnavailable
		}
	}

	if h.ai != nil {
		resp.AI = h.ai.CheckHealth(ctx)
		switch resp.AI.Overall {
		case ai.HealthCritical:
			resp.Status = ai.HealthCritical
			code = http.StatusServiceUnavailable
		case ai.HealthDegraded:
			if code == http.StatusOK {
				resp.Status = ai.HealthDegraded
			}
		}
	}

	middleware.WriteJSON(w, code, resp)
}
