package triage

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pandochealth/triage/internal/directory"
	"github.com/pandochealth/triage/internal/tenancy"
	"github.com/pandochealth/triage/pkg/logging"
)

// TurnService is the engine surface the HTTP layer needs.
type TurnService interface {
	ProcessTurn(ctx context.Context, req TurnRequest) (TurnResponse, error)
	Reset(ctx context.Context, key SessionKey) error
}

// Handler wires HTTP requests to the triage engine.
type Handler struct {
	service TurnService
	logger  *logging.Logger
}

func NewHandler(service TurnService, logger *logging.Logger) *Handler {
	if service == nil {
		panic("triage: turn service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type chatResponse struct {
	Success bool                  `json:"success"`
	Reply   string                `json:"reply"`
	Intent  Intent                `json:"intent"`
	Doctors []directory.Clinician `json:"doctors"`
}

// Chat handles POST /ai/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode chat request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	ctx := tenancy.WithTenantID(r.Context(), req.Key().Tenant)
	resp, err := h.service.ProcessTurn(ctx, req)
	if err != nil {
		h.logger.Error("failed to process chat turn", "error", err)
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	doctors := resp.Clinicians
	if doctors == nil {
		doctors = []directory.Clinician{}
	}
	h.writeJSON(w, http.StatusOK, chatResponse{
		Success: true,
		Reply:   resp.Reply,
		Intent:  resp.Intent,
		Doctors: doctors,
	})
}

type resetRequest struct {
	Tenant string `json:"tenantId"`
	User   string `json:"userId"`
	Chat   string `json:"chatId"`
}

// Reset handles POST /ai/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode reset request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key := SessionKey{Tenant: req.Tenant, User: req.User, Chat: req.Chat}.Normalize()
	ctx := tenancy.WithTenantID(r.Context(), key.Tenant)
	if err := h.service.Reset(ctx, key); err != nil {
		h.logger.Error("failed to reset session", "error", err)
		http.Error(w, "Failed to reset session", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Health handles GET /ai/health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
