package handler

import (
	"net/http"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/middleware"
	"WardWatchAPI/internal/service"

	"github.com/gorilla/mux"
)

type AlertHandler struct {
	alertService service.IAlertService
	log          *logger.Logger
}

func NewAlertHandler(alertService service.IAlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		log:          log,
	}
}

func (h *AlertHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alerts/active", h.GetActiveAlerts).Methods("GET")
	r.HandleFunc("/alerts/history", h.GetAlertHistory).Methods("GET")
	r.HandleFunc("/alerts/stats", h.GetStatistics).Methods("GET")
	r.HandleFunc("/alerts/patients/{patient_id}", h.GetPatientAlerts).Methods("GET")
	r.HandleFunc("/alerts/{id}", h.GetAlert).Methods("GET")
	r.HandleFunc("/alerts/{id}/acknowledge", h.Acknowledge).Methods("PUT")
}

func (h *AlertHandler) GetActiveAlerts(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	alerts, err := h.alertService.GetActiveAlerts(r.Context(), id.OrgID)
	if err != nil {
		respondServiceError(w, h.log, "get active alerts", err)
		return
	}

	respondJSON(w, http.StatusOK, alerts)
}

func (h *AlertHandler) GetAlertHistory(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	limit, err := queryInt(r, "limit", service.DefaultHistoryLimit)
	if err != nil {
		respondServiceError(w, h.log, "parse limit", err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondServiceError(w, h.log, "parse offset", err)
		return
	}

	page, err := h.alertService.GetAlertHistory(r.Context(), id.OrgID, limit, offset)
	if err != nil {
		respondServiceError(w, h.log, "get alert history", err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (h *AlertHandler) GetPatientAlerts(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	alerts, err := h.alertService.GetPatientAlerts(r.Context(), id.OrgID, mux.Vars(r)["patient_id"])
	if err != nil {
		respondServiceError(w, h.log, "get patient alerts", err)
		return
	}

	respondJSON(w, http.StatusOK, alerts)
}

func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	alert, err := h.alertService.GetAlert(r.Context(), id.OrgID, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, "get alert", err)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

// Acknowledge answers 200 for a repeated acknowledgement, flagging it in the
// body instead of failing.
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	alertID := mux.Vars(r)["id"]
	result, err := h.alertService.Acknowledge(r.Context(), id.OrgID, alertID, id.UserID)
	if err != nil {
		respondServiceError(w, h.log, "acknowledge alert", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *AlertHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	stats, err := h.alertService.GetStatistics(r.Context(), id.OrgID)
	if err != nil {
		respondServiceError(w, h.log, "get alert statistics", err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
