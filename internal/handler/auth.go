package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/service"
)

// AuthHandler handles login and token verification.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// HandleLogin exchanges the admin password for a bearer token.
// POST /api/auth/login
// Request: {"password": "..."}
// Response: {"token": "...", "expiresIn": 604800}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	token, ttl, err := h.auth.Login(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "Password is required.")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "Invalid password.")
		default:
			slog.Error("login", "error", err)
			writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresIn: int64(ttl.Seconds())})
}

// HandleVerify reports whether the caller's token is valid. Wrapped by
// RequireAuth, so reaching it means it is.
// GET /api/auth/verify
// Response: {"valid": true, "subject": "admin"}
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   true,
		"subject": SubjectFromContext(r.Context()),
	})
}

// HandleLogout acknowledges a logout. Tokens are stateless; the client
// discards its copy.
// POST /api/auth/logout
// Response: {"success": true}
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
