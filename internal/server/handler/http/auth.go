// Package http provides the dashboard's HTTP handlers: session management,
// file upload/listing/download, and the credential vault.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/akozyreva/cloudkeep/internal/models"
	"github.com/akozyreva/cloudkeep/internal/notify"
)

// Authenticator signs a user in with the platform.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
}

// SessionGate exposes the current principal and explicit sign-out.
type SessionGate interface {
	Principal() (*models.Principal, error)
	SignOut(ctx context.Context) error
}

// AuthHandler handles sign-in, sign-out, and the session probe the dashboard
// uses to leave its loading state.
type AuthHandler struct {
	Provider Authenticator
	Gate     SessionGate
	Notifier *notify.Hub
}

// loginRequest is the JSON payload for sign-in.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/login. Credentials go straight to the platform;
// a rejected grant maps to 401.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	s, err := h.Provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.Notifier.Error("sign in failed: " + err.Error())
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, s.Principal)
}

// Session handles GET /api/session. It reports the signed-in principal or
// 401, which the dashboard turns into a redirect to the login view.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	p, err := h.Gate.Principal()
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Logout handles POST /api/logout: explicit termination via the platform,
// then the dashboard redirects on its own.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Gate.SignOut(r.Context()); err != nil {
		// The local session is gone either way; report but do not block.
		h.Notifier.Error("sign out: " + err.Error())
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
