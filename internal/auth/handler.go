package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/wolfman30/uootd-quotes/internal/ratelimit"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

// Handler serves the login and logout endpoints.
type Handler struct {
	authenticator *Authenticator
	sessions      *SessionManager
	validate      *validator.Validate
	logger        *logging.Logger
}

// NewHandler creates an auth handler.
func NewHandler(authenticator *Authenticator, sessions *SessionManager, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		authenticator: authenticator,
		sessions:      sessions,
		validate:      validator.New(),
		logger:        logger.Component("auth"),
	}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ClientIP(r)

	var creds Credentials
	// An unreadable body is treated like an empty one.
	_ = json.NewDecoder(r.Body).Decode(&creds)
	if err := h.validate.Struct(creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing credentials"})
		return
	}

	if err := h.authenticator.Verify(creds); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.logger.Warn("login failed", "ip", ip)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		h.logger.Error("login error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}

	if _, err := h.sessions.Issue(w, creds.Email); err != nil {
		h.logger.Error("failed to issue session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}

	h.logger.Info("login success", "email", creds.Email, "ip", ip)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
