package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/faultline/faultline/internal/api"
	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/events"
)

// StoreHandler accepts raw events from SDKs
type StoreHandler struct {
	db     *gorm.DB
	ingest *events.Service
}

// NewStoreHandler creates a new store handler
func NewStoreHandler(db *gorm.DB, ingest *events.Service) *StoreHandler {
	return &StoreHandler{db: db, ingest: ingest}
}

// SetupRoutes sets up the store route
func (h *StoreHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/{projectID}/store", h.handleStore)
}

// handleStore handles POST /api/{projectID}/store
func (h *StoreHandler) handleStore(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseUintParam(r, "projectID")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}
	var project database.Project
	if err := h.db.First(&project, projectID).Error; err != nil {
		api.RespondNotFound(w, "Project")
		return
	}

	var req api.StoreEventRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	fingerprint := req.Fingerprint
	if fingerprint == "" {
		// Default grouping: hash of the message.
		sum := sha256.Sum256([]byte(req.Message))
		fingerprint = hex.EncodeToString(sum[:])[:32]
	}

	level := req.Level
	if level == 0 {
		level = 40
	}

	eventID, _, err := h.ingest.Ingest(r.Context(), events.IncomingEvent{
		ProjectID:   projectID,
		Fingerprint: fingerprint,
		Title:       req.Message,
		Culprit:     req.Culprit,
		Logger:      req.Logger,
		Level:       level,
		Type:        "error",
		Metadata:    database.JSONB{"title": req.Message},
		Tags:        req.Tags,
		User:        req.User,
		Environment: req.Environment,
	})
	if err != nil {
		log.Printf("StoreHandler: ingestion failed for project %d: %v", projectID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to store event")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]string{"id": eventID})
}
