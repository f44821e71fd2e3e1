package handler

import (
	"net/http"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/middleware"
	"WardWatchAPI/internal/models"
	"WardWatchAPI/internal/service"

	"github.com/gorilla/mux"
)

type ThresholdHandler struct {
	thresholdService service.IThresholdService
	log              *logger.Logger
}

func NewThresholdHandler(thresholdService service.IThresholdService, log *logger.Logger) *ThresholdHandler {
	return &ThresholdHandler{
		thresholdService: thresholdService,
		log:              log,
	}
}

func (h *ThresholdHandler) RegisterRoutes(r *mux.Router) {
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	r.HandleFunc("/thresholds", h.GetOrg).Methods("GET")
	r.Handle("/thresholds", adminOnly(http.HandlerFunc(h.UpdateOrg))).Methods("PUT")
	r.Handle("/thresholds/init", adminOnly(http.HandlerFunc(h.InitOrg))).Methods("POST")
	r.HandleFunc("/thresholds/patients/{patient_id}", h.GetPatient).Methods("GET")
	r.HandleFunc("/thresholds/patients/{patient_id}", h.UpdatePatient).Methods("PUT")
	r.HandleFunc("/thresholds/patients/{patient_id}/effective", h.GetEffective).Methods("GET")
}

func (h *ThresholdHandler) GetOrg(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	rec, err := h.thresholdService.GetOrg(r.Context(), id.OrgID)
	if err != nil {
		respondServiceError(w, h.log, "get org thresholds", err)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

func (h *ThresholdHandler) UpdateOrg(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	var patch models.ThresholdOverride
	if err := decodeJSON(w, r, &patch); err != nil {
		respondServiceError(w, h.log, "decode thresholds", err)
		return
	}

	rec, err := h.thresholdService.UpdateOrg(r.Context(), id.OrgID, patch)
	if err != nil {
		respondServiceError(w, h.log, "update org thresholds", err)
		return
	}

	h.log.Info("Org thresholds for %s updated by %s", id.OrgID, id.UserID)
	respondJSON(w, http.StatusOK, rec)
}

func (h *ThresholdHandler) InitOrg(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	rec, created, err := h.thresholdService.InitOrg(r.Context(), id.OrgID)
	if err != nil {
		respondServiceError(w, h.log, "initialize org thresholds", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, rec)
}

func (h *ThresholdHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	rec, err := h.thresholdService.GetPatient(r.Context(), id.OrgID, mux.Vars(r)["patient_id"])
	if err != nil {
		respondServiceError(w, h.log, "get patient thresholds", err)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

func (h *ThresholdHandler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	var req models.UpdateThresholdsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, h.log, "decode thresholds", err)
		return
	}

	patientID := mux.Vars(r)["patient_id"]
	rec, err := h.thresholdService.UpdatePatient(r.Context(), id.OrgID, patientID, req)
	if err != nil {
		respondServiceError(w, h.log, "update patient thresholds", err)
		return
	}

	h.log.Info("Thresholds for patient %s/%s updated by %s", id.OrgID, patientID, id.UserID)
	respondJSON(w, http.StatusOK, rec)
}

func (h *ThresholdHandler) GetEffective(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	eff, err := h.thresholdService.Resolve(r.Context(), id.OrgID, mux.Vars(r)["patient_id"])
	if err != nil {
		respondServiceError(w, h.log, "resolve thresholds", err)
		return
	}

	respondJSON(w, http.StatusOK, eff)
}
