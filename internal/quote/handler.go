package quote

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

// MaxRequestBytes caps the JSON body; inline screenshots are large.
const MaxRequestBytes = 15 << 20

// Handler serves POST /api/quote.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a quote handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger.Component("quote")}
}

// Create handles POST /api/quote.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req Request
	body := http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Image too large"})
			return
		}
		h.logger.Warn("failed to decode quote request", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	resp, err := h.service.Generate(r.Context(), req)
	if err != nil {
		// Only a cancelled request gets here.
		h.logger.Warn("quote request abandoned", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Request cancelled"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
