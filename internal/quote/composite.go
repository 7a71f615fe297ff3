package quote

import (
	"encoding/json"
	"net/http"
)

// CompositeOverlay names the styling a composite preview would receive.
// Rendering happens client side; the server only echoes the source image.
const CompositeOverlay = "vignette+gold-type (mocked)"

// CompositeResponse is returned by Composite.
type CompositeResponse struct {
	CompositeURL string `json:"compositeUrl,omitempty"`
	Overlay      string `json:"overlay"`
}

// Composite handles POST /api/composite. Unreadable bodies are treated as empty.
func (h *Handler) Composite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageURL any `json:"imageUrl"`
	}
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes)).Decode(&req)

	url, _ := req.ImageURL.(string)
	writeJSON(w, http.StatusOK, CompositeResponse{CompositeURL: url, Overlay: CompositeOverlay})
}
