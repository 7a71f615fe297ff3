package assets

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/uootd-quotes/internal/auth"
	"github.com/wolfman30/uootd-quotes/pkg/dataurl"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

// Handler serves stored quote assets to staff.
type Handler struct {
	store  *Store
	gate   auth.Gate
	logger *logging.Logger
}

// NewHandler creates an assets handler.
func NewHandler(store *Store, gate auth.Gate, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, gate: gate, logger: logger.Component("assets")}
}

// Serve handles GET /api/assets/{id}.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	if h.gate == nil || h.gate.CurrentSession(r) == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing id"})
		return
	}

	asset, _ := h.store.Get(r.Context(), id)
	if asset == nil || asset.ImageURL == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}

	if d, ok := dataurl.Parse(asset.ImageURL); ok {
		if !isImageType(d.MIMEType) {
			h.logger.Warn("refusing to serve non-image asset", "quote_id", id, "mime", d.MIMEType)
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
			return
		}
		raw, err := d.Decode()
		if err != nil {
			h.logger.Error("stored asset is not valid base64", "error", err, "quote_id", id)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Corrupt asset"})
			return
		}
		w.Header().Set("Content-Type", d.MIMEType)
		w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
		w.Header().Set("Cache-Control", "no-store, private")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
		return
	}

	lower := strings.ToLower(asset.ImageURL)
	if strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		http.Redirect(w, r, asset.ImageURL, http.StatusTemporaryRedirect)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

// isImageType accepts image/* except SVG, which can carry script.
func isImageType(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return strings.HasPrefix(mime, "image/") && mime != "image/svg+xml"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
