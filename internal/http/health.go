package http

import (
	"context"
	"net/http"
	"time"

	"github.com/redmonkez12/farm-fresh-api/internal/httputil"
	"github.com/redmonkez12/farm-fresh-api/internal/user"
)

const healthPingTimeout = 2 * time.Second

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
	Environment    string    `json:"environment"`
	Store          string    `json:"store"`
	StoreConnected bool      `json:"storeConnected"`
}

// HealthHandler reports whether the API is up and its store reachable
type HealthHandler struct {
	env     string
	backend string
	pinger  user.Pinger // nil for stores that are always available
}

func NewHealthHandler(env, backend string, pinger user.Pinger) *HealthHandler {
	return &HealthHandler{env: env, backend: backend, pinger: pinger}
}

// ServeHTTP handles the health check
// @Summary      Health check
// @Description  Check if the API is running and the credential store is reachable
// @Tags         health
// @Produce      json
// @Success      200 {object} HealthResponse
// @Router       /health [get]
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connected := true
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		connected = h.pinger.Ping(ctx) == nil
	}

	httputil.RespondJSON(w, HealthResponse{
		Status:         "OK",
		Message:        "API is running",
		Timestamp:      time.Now().UTC(),
		Environment:    h.env,
		Store:          h.backend,
		StoreConnected: connected,
	}, http.StatusOK)
}
