package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/akozyreva/cloudkeep/internal/models"
	"github.com/akozyreva/cloudkeep/internal/notify"
	"github.com/akozyreva/cloudkeep/internal/service"
	"github.com/akozyreva/cloudkeep/internal/session"
	"github.com/go-chi/chi/v5"
)

// VaultView is the credential vault surface the handlers consume.
type VaultView interface {
	Refresh(ctx context.Context) error
	Records() []models.CredentialRecord
	Create(ctx context.Context, in service.CredentialInput) error
	Update(ctx context.Context, id string, in service.CredentialInput) error
	Delete(ctx context.Context, id string) error
	ToggleReveal(id string) bool
	Revealed(id string) bool
	CopySecret(id string) (string, error)
	CopyToken(id string) (string, error)
}

// VaultHandler serves the credential vault view.
type VaultHandler struct {
	Vault    VaultView
	Notifier *notify.Hub
}

// vaultRecord is a listing entry with the secret and token masked unless
// revealed. Clear values leave the vault only through reveal and copy.
type vaultRecord struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Username  string    `json:"username"`
	Secret    string    `json:"secret,omitempty"`
	Note      string    `json:"note,omitempty"`
	Token     string    `json:"token,omitempty"`
	HasToken  bool      `json:"has_token"`
	Revealed  bool      `json:"revealed"`
	CreatedAt time.Time `json:"created_at"`
}

// List handles GET /api/credentials: a full re-fetch followed by the masked
// listing.
func (h *VaultHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.Vault.Refresh(r.Context()); err != nil {
		h.fail(w, err, "load credentials")
		return
	}
	records := h.Vault.Records()
	out := make([]vaultRecord, 0, len(records))
	for _, rec := range records {
		vr := vaultRecord{
			ID:        rec.ID,
			Platform:  rec.Platform,
			Username:  rec.Username,
			Note:      rec.Note,
			HasToken:  rec.Token != "",
			Revealed:  h.Vault.Revealed(rec.ID),
			CreatedAt: rec.CreatedAt,
		}
		if vr.Revealed {
			vr.Secret = rec.Secret
			vr.Token = rec.Token
		}
		out = append(out, vr)
	}
	writeJSON(w, http.StatusOK, map[string]any{"credentials": out})
}

// Create handles POST /api/credentials.
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CredentialInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.Vault.Create(r.Context(), in); err != nil {
		h.fail(w, err, "save credential")
		return
	}
	h.Notifier.Success("credential saved")
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// Update handles PUT /api/credentials/{id} with full-record replace
// semantics.
func (h *VaultHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in service.CredentialInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.Vault.Update(r.Context(), id, in); err != nil {
		h.fail(w, err, "update credential")
		return
	}
	h.Notifier.Success("credential updated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Delete handles DELETE /api/credentials/{id}?confirm=true. The confirm
// parameter is the explicit user confirmation; without it nothing is
// deleted.
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		http.Error(w, "confirmation required", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.Vault.Delete(r.Context(), id); err != nil {
		h.fail(w, err, "delete credential")
		return
	}
	h.Notifier.Success("credential deleted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Reveal handles POST /api/credentials/{id}/reveal and flips the local
// reveal state.
func (h *VaultHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, map[string]bool{"revealed": h.Vault.ToggleReveal(id)})
}

// Copy handles POST /api/credentials/{id}/copy?field=secret|token and
// returns the clear value for the dashboard's clipboard write.
func (h *VaultHandler) Copy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		value string
		err   error
	)
	switch field := r.URL.Query().Get("field"); field {
	case "", "secret":
		value, err = h.Vault.CopySecret(id)
	case "token":
		value, err = h.Vault.CopyToken(id)
	default:
		http.Error(w, "unknown field", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	h.Notifier.Success("copied to clipboard")
	writeJSON(w, http.StatusOK, map[string]string{"value": value})
}

// fail maps a vault failure to its status code and, for remote failures, the
// single terminal error notification.
func (h *VaultHandler) fail(w http.ResponseWriter, err error, prefix string) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"fields": verr.Fields})
		return
	}
	if errors.Is(err, session.ErrAuthenticationRequired) {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	h.Notifier.Error(prefix + ": " + err.Error())
	http.Error(w, err.Error(), http.StatusBadGateway)
}
