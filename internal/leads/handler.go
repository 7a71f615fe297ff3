package leads

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/wolfman30/uootd-quotes/internal/auth"
	"github.com/wolfman30/uootd-quotes/internal/ratelimit"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

const maxLeadBodyBytes = 1 << 20

// Handler handles HTTP requests for leads
type Handler struct {
	service *Service
	gate    auth.Gate
	logger  *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(service *Service, gate auth.Gate, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		gate:    gate,
		logger:  logger.Component("leads"),
	}
}

// CreateLeadResponse is returned by Create.
type CreateLeadResponse struct {
	Lead   *Lead  `json:"lead"`
	Stored bool   `json:"stored"`
	Source string `json:"source"`
}

// Create handles POST /api/leads
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLeadBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode lead request", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	lead, backend, err := h.service.Create(r.Context(), req, CreateMeta{
		SourceIP:      ratelimit.ClientIP(r),
		Authenticated: h.authenticated(r),
	})
	switch {
	case errors.Is(err, ErrMissingContact):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PayPal and WhatsApp are required"})
		return
	case errors.Is(err, ErrManualRequiresSession):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	case err != nil:
		h.logger.Error("failed to create lead", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateLeadResponse{
		Lead:   lead,
		Stored: backend.OK(),
		Source: string(backend),
	})
}

// List handles GET /api/leads
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.authenticated(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, h.service.List(r.Context()))
}

type deleteLeadRequest struct {
	ID      string `json:"id"`
	QuoteID string `json:"quoteId"`
}

// Delete handles DELETE /api/leads. The id and optional quoteId come from
// the JSON body or, failing that, the query string.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.authenticated(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req deleteLeadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLeadBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	q := r.URL.Query()
	if strings.TrimSpace(req.ID) == "" {
		req.ID = q.Get("id")
	}
	if strings.TrimSpace(req.QuoteID) == "" {
		req.QuoteID = q.Get("quoteId")
	}

	result, err := h.service.Delete(r.Context(), req.ID, req.QuoteID)
	switch {
	case errors.Is(err, ErrMissingID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing id"})
		return
	case errors.Is(err, ErrLeadNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not found", "assetDeleted": result.AssetDeleted})
		return
	case err != nil:
		h.logger.Error("failed to delete lead", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "assetDeleted": result.AssetDeleted})
}

func (h *Handler) authenticated(r *http.Request) bool {
	return h.gate != nil && h.gate.CurrentSession(r) != nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
