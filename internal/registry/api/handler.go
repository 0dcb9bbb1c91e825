package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/hurley87/irl-protocol/internal/auth"
	"github.com/hurley87/irl-protocol/internal/chain"
	"github.com/hurley87/irl-protocol/internal/logger"
	"github.com/hurley87/irl-protocol/internal/models"
	"github.com/hurley87/irl-protocol/internal/registry"
	"github.com/hurley87/irl-protocol/internal/registry/qr"
	"github.com/hurley87/irl-protocol/internal/sse"
	"github.com/hurley87/irl-protocol/internal/utils"
)

type Handler struct {
	Registry    *registry.Registry
	QRGenerator *qr.QRGenerator
	Emitter     *sse.CheckInEventEmitter
	Logger      *logger.Logger
}

func NewHandler(reg *registry.Registry, qrGen *qr.QRGenerator, emitter *sse.CheckInEventEmitter, log *logger.Logger) *Handler {
	return &Handler{
		Registry:    reg,
		QRGenerator: qrGen,
		Emitter:     emitter,
		Logger:      log,
	}
}

// RegisterRoutes mounts the events API. Reads and live feeds are
// public; every mutation goes through the OIDC middleware.
func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/events", h.ListEvents)
		r.Get("/events/{eventID}", h.GetEvent)
		r.Get("/events/{eventID}/status", h.GetEventStatus)
		r.Get("/events/{eventID}/active", h.IsEventActive)
		r.Get("/events/{eventID}/checkins", h.ListCheckIns)
		r.Get("/events/{eventID}/checkins/{address}", h.GetCheckIn)
		r.Get("/events/{eventID}/allowlist/{address}", h.IsAllowlisted)
		r.Get("/events/{eventID}/feed", h.StreamEventCheckIns)
		r.Get("/feed", h.StreamAllCheckIns)
		r.Get("/registry/status", h.RegistryStatus)

		r.Group(func(r chi.Router) {
			r.Use(authMW)

			r.Post("/events", h.CreateEvent)
			r.Patch("/events/{eventID}/times", h.UpdateEventTimes)
			r.Patch("/events/{eventID}/capacity", h.UpdateEventCapacity)
			r.Patch("/events/{eventID}/points", h.UpdateEventPoints)
			r.Patch("/events/{eventID}/stub", h.UpdateEventStub)
			r.Post("/events/{eventID}/pause", h.PauseEvent)
			r.Post("/events/{eventID}/unpause", h.UnpauseEvent)
			r.Post("/events/{eventID}/end", h.EndEvent)
			r.Delete("/events/{eventID}", h.DeleteEvent)
			r.Post("/events/{eventID}/allowlist", h.SetAllowlist)

			r.Post("/events/{eventID}/checkins", h.CheckIn)
			r.Delete("/events/{eventID}/checkins/{address}", h.UndoCheckIn)
			r.Get("/events/{eventID}/checkins/{address}/qr", h.CheckInQR)
			r.Post("/receipts/verify", h.VerifyReceipt)

			r.Post("/registry/pause", h.PauseRegistry)
			r.Post("/registry/unpause", h.UnpauseRegistry)
			r.Post("/registry/contracts", h.UpdateRewardContracts)
		})
	})
}

// ---------------- EVENT LIFECYCLE ----------------

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return
	}

	var params registry.EventParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ev, err := h.Registry.CreateEvent(r.Context(), caller, params)
	if err != nil {
		h.writeError(w, "CreateEvent", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Event created", ev))
}

func (h *Handler) UpdateEventTimes(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}

	var body struct {
		StartTime int64 `json:"start_time"`
		EndTime   int64 `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Registry.UpdateEventTimes(r.Context(), caller, eventID, body.StartTime, body.EndTime); err != nil {
		h.writeError(w, "UpdateEventTimes", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Event times updated", nil))
}

func (h *Handler) UpdateEventCapacity(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}

	var body struct {
		MaxCapacity uint64 `json:"max_capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Registry.UpdateEventCapacity(r.Context(), caller, eventID, body.MaxCapacity); err != nil {
		h.writeError(w, "UpdateEventCapacity", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Event capacity updated", nil))
}

func (h *Handler) UpdateEventPoints(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}

	var body struct {
		Points uint64 `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Registry.UpdateEventPoints(r.Context(), caller, eventID, body.Points); err != nil {
		h.writeError(w, "UpdateEventPoints", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Event points updated", nil))
}

func (h *Handler) UpdateEventStub(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}

	var body struct {
		StubID uint64 `json:"stub_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Registry.UpdateEventStub(r.Context(), caller, eventID, body.StubID); err != nil {
		h.writeError(w, "UpdateEventStub", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Event stub updated", nil))
}

func (h *Handler) PauseEvent(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	if err := h.Registry.PauseEvent(r.Context(), caller, eventID); err != nil {
		h.writeError(w, "PauseEvent", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Event paused", nil))
}

func (h *Handler) UnpauseEvent(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	if err := h.Registry.UnpauseEvent(r.Context(), caller, eventID); err != nil {
		h.writeError(w, "UnpauseEvent", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Event unpaused", nil))
}

func (h *Handler) EndEvent(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	if err := h.Registry.AutoEndEvent(r.Context(), caller, eventID); err != nil {
		h.writeError(w, "EndEvent", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Event ended", nil))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	if err := h.Registry.DeleteEvent(r.Context(), caller, eventID); err != nil {
		h.writeError(w, "DeleteEvent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetAllowlist(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}

	var body struct {
		Addresses []string `json:"addresses"`
		Allowed   bool     `json:"allowed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body.Addresses) == 0 {
		http.Error(w, "addresses is required", http.StatusBadRequest)
		return
	}

	addrs := make([]common.Address, 0, len(body.Addresses))
	for _, raw := range body.Addresses {
		addr, err := chain.ParseAddress(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid address %q", raw), http.StatusBadRequest)
			return
		}
		addrs = append(addrs, addr)
	}

	if err := h.Registry.SetAllowlist(r.Context(), caller, eventID, addrs, body.Allowed); err != nil {
		h.writeError(w, "SetAllowlist", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Allowlist updated", nil))
}

// ---------------- CHECK-IN ----------------

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}

	receipt, err := h.Registry.CheckIn(r.Context(), caller, eventID)
	if err != nil {
		h.writeError(w, "CheckIn", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("Checked in", receipt))
}

func (h *Handler) UndoCheckIn(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	attendee, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "invalid attendee address", http.StatusBadRequest)
		return
	}

	if err := h.Registry.UndoCheckIn(r.Context(), caller, attendee, eventID); err != nil {
		h.writeError(w, "UndoCheckIn", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Check-in reversed", nil))
}

// CheckInQR renders the caller's own receipt as an encrypted QR PNG.
func (h *Handler) CheckInQR(w http.ResponseWriter, r *http.Request) {
	caller, eventID, ok := h.callerAndEvent(w, r)
	if !ok {
		return
	}
	attendee, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "invalid attendee address", http.StatusBadRequest)
		return
	}
	if attendee != caller {
		http.Error(w, "receipts can only be fetched by their attendee", http.StatusForbidden)
		return
	}

	rec, err := h.Registry.GetCheckIn(eventID, attendee)
	if err != nil {
		h.writeError(w, "CheckInQR", err)
		return
	}

	png, err := h.QRGenerator.GenerateEncryptedQR(rec.Receipt())
	if err != nil {
		h.writeError(w, "CheckInQR", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckInQR: failed to write image: %v", err))
	}
}

// VerifyReceipt decrypts a scanned QR payload and checks it against
// the recorded check-in. A reversed check-in scans as invalid.
func (h *Handler) VerifyReceipt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EncryptedQR string `json:"encrypted_qr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.EncryptedQR == "" {
		http.Error(w, "encrypted_qr is required", http.StatusBadRequest)
		return
	}

	receipt, err := h.QRGenerator.DecryptReceipt(body.EncryptedQR)
	if err != nil {
		http.Error(w, "Invalid QR code: "+err.Error(), http.StatusBadRequest)
		return
	}

	attendee, err := chain.ParseAddress(receipt.Attendee)
	if err != nil {
		http.Error(w, "Invalid QR code: bad attendee address", http.StatusBadRequest)
		return
	}

	valid := false
	if rec, err := h.Registry.GetCheckIn(receipt.EventID, attendee); err == nil {
		valid = rec.ReceiptID == receipt.ReceiptID
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Receipt verified", struct {
		Valid   bool        `json:"valid"`
		Receipt interface{} `json:"receipt"`
	}{Valid: valid, Receipt: receipt}))
}

// ---------------- REGISTRY CONTROLS ----------------

func (h *Handler) PauseRegistry(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return
	}
	if err := h.Registry.Pause(r.Context(), caller); err != nil {
		h.writeError(w, "PauseRegistry", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Registry paused", nil))
}

func (h *Handler) UnpauseRegistry(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return
	}
	if err := h.Registry.Unpause(r.Context(), caller); err != nil {
		h.writeError(w, "UnpauseRegistry", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Registry unpaused", nil))
}

func (h *Handler) UpdateRewardContracts(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return
	}

	var body struct {
		Stubs  string `json:"stubs"`
		Points string `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	stubs, err := chain.ParseAddress(body.Stubs)
	if err != nil {
		http.Error(w, "invalid stubs address", http.StatusBadRequest)
		return
	}
	points, err := chain.ParseAddress(body.Points)
	if err != nil {
		http.Error(w, "invalid points address", http.StatusBadRequest)
		return
	}

	if err := h.Registry.UpdateRewardContracts(r.Context(), caller, stubs, points); err != nil {
		h.writeError(w, "UpdateRewardContracts", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Reward contracts updated", nil))
}

func (h *Handler) RegistryStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, struct {
		Paused bool `json:"paused"`
	}{Paused: h.Registry.Paused()})
}

// ---------------- READS ----------------

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Registry.ListEvents())
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(r)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}
	ev, err := h.Registry.GetEvent(eventID)
	if err != nil {
		h.writeError(w, "GetEvent", err)
		return
	}
	h.writeJSON(w, http.StatusOK, ev)
}

func (h *Handler) GetEventStatus(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(r)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, h.Registry.GetEventStatus(eventID))
}

func (h *Handler) IsEventActive(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(r)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		EventID uint64 `json:"event_id"`
		Active  bool   `json:"active"`
	}{EventID: eventID, Active: h.Registry.IsEventActive(eventID)})
}

func (h *Handler) ListCheckIns(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(r)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}
	recs, err := h.Registry.GetCheckIns(eventID)
	if err != nil {
		h.writeError(w, "ListCheckIns", err)
		return
	}
	h.writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) GetCheckIn(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(r)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}
	attendee, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "invalid attendee address", http.StatusBadRequest)
		return
	}
	rec, err := h.Registry.GetCheckIn(eventID, attendee)
	if err != nil {
		h.writeError(w, "GetCheckIn", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) IsAllowlisted(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(r)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}
	addr, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		EventID     uint64 `json:"event_id"`
		Address     string `json:"address"`
		Allowlisted bool   `json:"allowlisted"`
	}{EventID: eventID, Address: chain.Hex(addr), Allowlisted: h.Registry.IsAllowlisted(eventID, addr)})
}

// ---------------- LIVE FEEDS ----------------

// StreamEventCheckIns streams one event's check-ins over SSE.
func (h *Handler) StreamEventCheckIns(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseEventID(r)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	setupSSEHeaders(w)
	ctx := r.Context()
	factChan := h.Emitter.SubscribeToEvent(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"event_id\":%d}\n\n", eventID)
	w.(http.Flusher).Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to check-in feed for event %d", eventID))
	h.streamFacts(w, ctx, factChan)
}

// StreamAllCheckIns streams every event's check-ins over SSE.
func (h *Handler) StreamAllCheckIns(w http.ResponseWriter, r *http.Request) {
	setupSSEHeaders(w)
	ctx := r.Context()
	factChan := h.Emitter.SubscribeToAll(ctx)

	fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	w.(http.Flusher).Flush()

	h.Logger.Info("SSE", "Client connected to the check-in firehose")
	h.streamFacts(w, ctx, factChan)
}

func (h *Handler) streamFacts(w http.ResponseWriter, ctx context.Context, factChan <-chan models.CheckInFact) {
	for {
		select {
		case fact, ok := <-factChan:
			if !ok {
				return
			}
			jsonData, err := json.Marshal(fact)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize check-in fact: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: checkin\ndata: %s\n\n", jsonData)
			w.(http.Flusher).Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", "Client disconnected from check-in feed")
			return
		}
	}
}

// ---------------- HELPERS ----------------

func (h *Handler) caller(r *http.Request) (common.Address, error) {
	wallet := auth.Wallet(r.Context())
	if wallet == "" {
		return common.Address{}, errors.New("no wallet in request context")
	}
	return chain.ParseAddress(wallet)
}

func (h *Handler) callerAndEvent(w http.ResponseWriter, r *http.Request) (common.Address, uint64, bool) {
	caller, err := h.caller(r)
	if err != nil {
		h.unauthorized(w, err)
		return common.Address{}, 0, false
	}
	eventID, err := parseEventID(r)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return common.Address{}, 0, false
	}
	return caller, eventID, true
}

func (h *Handler) unauthorized(w http.ResponseWriter, err error) {
	h.Logger.Warn("API", fmt.Sprintf("caller resolution failed: %v", err))
	http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}
	h.writeJSON(w, status, utils.ErrorResponse(http.StatusText(status), err.Error()))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, registry.ErrEventNotFound),
		errors.Is(err, registry.ErrNotCheckedIn):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrInvalidTimeRange),
		errors.Is(err, registry.ErrZeroAddress):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrRegistryPaused),
		errors.Is(err, registry.ErrRegistryNotPaused),
		errors.Is(err, registry.ErrEventExists),
		errors.Is(err, registry.ErrEventPaused),
		errors.Is(err, registry.ErrEventNotPaused),
		errors.Is(err, registry.ErrEventNotStarted),
		errors.Is(err, registry.ErrEventEnded),
		errors.Is(err, registry.ErrEventAtCapacity),
		errors.Is(err, registry.ErrNotAllowlisted),
		errors.Is(err, registry.ErrAlreadyCheckedIn),
		errors.Is(err, registry.ErrEventStarted),
		errors.Is(err, registry.ErrCapacityBelowCheckins),
		errors.Is(err, registry.ErrHasCheckins):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseEventID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "eventID"), 10, 64)
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
