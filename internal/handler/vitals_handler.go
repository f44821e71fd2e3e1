package handler

import (
	"context"
	"fmt"
	"net/http"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/middleware"
	"WardWatchAPI/internal/models"
	"WardWatchAPI/internal/service"

	"github.com/gorilla/mux"
)

// VitalsIngestor is the part of the vitals pipeline the HTTP layer drives.
type VitalsIngestor interface {
	Ingest(ctx context.Context, source string, reading models.Reading) (models.IngestResult, error)
	IngestBatch(ctx context.Context, source string, readings []models.Reading) ([]models.IngestResult, error)
}

type VitalsHandler struct {
	vitals VitalsIngestor
	log    *logger.Logger
}

func NewVitalsHandler(vitals VitalsIngestor, log *logger.Logger) *VitalsHandler {
	return &VitalsHandler{
		vitals: vitals,
		log:    log,
	}
}

func (h *VitalsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/vitals", h.Record).Methods("POST")
	r.HandleFunc("/vitals/batch", h.RecordBatch).Methods("POST")
}

func (h *VitalsHandler) Record(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	var reading models.Reading
	if err := decodeJSON(w, r, &reading); err != nil {
		respondServiceError(w, h.log, "decode reading", err)
		return
	}
	if err := scopeReading(&reading, id); err != nil {
		respondServiceError(w, h.log, "scope reading", err)
		return
	}

	result, err := h.vitals.Ingest(r.Context(), service.SourceHTTP, reading)
	if err != nil {
		respondServiceError(w, h.log, "ingest reading", err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func (h *VitalsHandler) RecordBatch(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.MustIdentity(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "identify caller", err)
		return
	}

	var req models.BatchReadingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, h.log, "decode readings", err)
		return
	}
	for i := range req.Readings {
		if err := scopeReading(&req.Readings[i], id); err != nil {
			respondServiceError(w, h.log, "scope reading", err)
			return
		}
	}

	results, err := h.vitals.IngestBatch(r.Context(), service.SourceHTTP, req.Readings)
	if err != nil {
		respondServiceError(w, h.log, "ingest readings", err)
		return
	}

	h.log.Debug("Batch of %d readings ingested for %s", len(results), id.OrgID)
	respondJSON(w, http.StatusCreated, results)
}

// scopeReading binds a reading to the caller's organization. A body naming a
// different organization is refused.
func scopeReading(reading *models.Reading, id models.Identity) error {
	if reading.OrgID != "" && reading.OrgID != id.OrgID {
		return fmt.Errorf("reading for org %s: %w", reading.OrgID, models.ErrForbidden)
	}
	reading.OrgID = id.OrgID
	if reading.RecordedBy == "" {
		reading.RecordedBy = id.UserID
	}
	return nil
}
