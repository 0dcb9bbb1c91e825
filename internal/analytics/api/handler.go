package analytics_api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hurley87/irl-protocol/internal/analytics"
	"github.com/hurley87/irl-protocol/internal/chain"
	"github.com/hurley87/irl-protocol/internal/logger"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes registers the analytics routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/analytics", func(r chi.Router) {
		r.Get("/summary", h.GetPlatformSummary)
		r.Get("/events/{eventID}", h.GetEventAttendance)
		r.Get("/attendees/{address}", h.GetAttendeeHistory)
		r.Get("/transfers", h.GetTransferVolumes)
	})
}

// GetEventAttendance returns attendance metrics for one event
func (h *Handler) GetEventAttendance(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseUint(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	attendance, err := h.Service.GetEventAttendance(r.Context(), eventID)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to get attendance for event %d: %v", eventID, err))
		http.Error(w, "Failed to get event attendance", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(w, http.StatusOK, attendance)
}

// GetPlatformSummary returns totals across every event
func (h *Handler) GetPlatformSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.GetPlatformSummary(r.Context())
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to get platform summary: %v", err))
		http.Error(w, "Failed to get platform summary", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(w, http.StatusOK, summary)
}

// GetAttendeeHistory returns the check-in history for one wallet
func (h *Handler) GetAttendeeHistory(w http.ResponseWriter, r *http.Request) {
	addr, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "invalid attendee address", http.StatusBadRequest)
		return
	}

	history, err := h.Service.GetAttendeeHistory(r.Context(), chain.Hex(addr))
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to get history for %s: %v", chain.Hex(addr), err))
		http.Error(w, "Failed to get attendee history", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(w, http.StatusOK, history)
}

// GetTransferVolumes returns funded, claimed and withdrawn volume per token
func (h *Handler) GetTransferVolumes(w http.ResponseWriter, r *http.Request) {
	volumes, err := h.Service.GetTransferVolumes(r.Context())
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to get transfer volumes: %v", err))
		http.Error(w, "Failed to get transfer volumes", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(w, http.StatusOK, volumes)
}

// sendJSONResponse is a helper function to send JSON responses
func sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
