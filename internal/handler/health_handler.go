package handler

import (
	"context"
	"net/http"
	"time"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/models"

	"github.com/gorilla/mux"
)

// DatabaseChecker is satisfied by *database.Database.
type DatabaseChecker interface {
	Health(ctx context.Context) error
}

// BrokerChecker is satisfied by *mqtt.Client.
type BrokerChecker interface {
	IsConnected() bool
}

type SessionCounter interface {
	TotalSessions() int
}

// HealthHandler reports dependency status. A nil checker means the
// dependency is not configured and is reported as disabled.
type HealthHandler struct {
	db       DatabaseChecker
	broker   BrokerChecker
	sessions SessionCounter
	log      *logger.Logger
}

func NewHealthHandler(db DatabaseChecker, broker BrokerChecker, sessions SessionCounter, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:       db,
		broker:   broker,
		sessions: sessions,
		log:      log,
	}
}

func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/health/live", h.Liveness).Methods("GET")
	r.HandleFunc("/health/ready", h.Readiness).Methods("GET")
}

func (h *HealthHandler) check(ctx context.Context) (map[string]string, bool) {
	services := map[string]string{
		"database": models.ComponentDisabled,
		"mqtt":     models.ComponentDisabled,
	}
	healthy := true

	if h.db != nil {
		services["database"] = models.ComponentUp
		if err := h.db.Health(ctx); err != nil {
			h.log.Warn("Database health check failed: %v", err)
			services["database"] = models.ComponentDown
			healthy = false
		}
	}

	if h.broker != nil {
		services["mqtt"] = models.ComponentUp
		if !h.broker.IsConnected() {
			services["mqtt"] = models.ComponentDown
			healthy = false
		}
	}

	return services, healthy
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services, healthy := h.check(ctx)
	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  services,
	}
	if h.sessions != nil {
		response.Sessions = h.sessions.TotalSessions()
	}

	statusCode := http.StatusOK
	if !healthy {
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
		h.log.Warn("Health check degraded - DB: %s, MQTT: %s", services["database"], services["mqtt"])
	}

	respondJSON(w, statusCode, response)
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, healthy := h.check(ctx); !healthy {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
