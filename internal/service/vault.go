package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/akozyreva/cloudkeep/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CredentialRepository is the record store surface the vault depends on.
type CredentialRepository interface {
	SelectByOwner(ctx context.Context, ownerID string) ([]models.CredentialRecord, error)
	Insert(ctx context.Context, rec models.CredentialRecord) error
	Update(ctx context.Context, rec models.CredentialRecord) error
	Delete(ctx context.Context, ownerID, id string) error
}

// CredentialInput carries the editable fields of a credential record as
// submitted by the user.
type CredentialInput struct {
	Platform string `json:"platform"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
	Note     string `json:"note"`
	Token    string `json:"token"`
}

// Vault is the credential vault view: a local editable cache of the
// principal's records plus the ephemeral reveal-set. Every mutation
// validates locally first, then re-fetches the full list after the remote
// operation succeeds.
type Vault struct {
	repo CredentialRepository
	gate PrincipalSource
	log  *zap.Logger

	mu       sync.Mutex
	records  []models.CredentialRecord
	revealed map[string]bool
}

// NewVault builds a vault view over the given repository and gate.
func NewVault(repo CredentialRepository, gate PrincipalSource, log *zap.Logger) *Vault {
	return &Vault{repo: repo, gate: gate, log: log, revealed: make(map[string]bool)}
}

// validateCredential checks the field constraints. It trims required fields
// before the non-empty check and never touches the network.
func validateCredential(in CredentialInput) *ValidationError {
	fields := make(map[string]string)
	if s := strings.TrimSpace(in.Platform); s == "" {
		fields["platform"] = "platform is required"
	} else if len(s) > 100 {
		fields["platform"] = "platform must be at most 100 characters"
	}
	if s := strings.TrimSpace(in.Username); s == "" {
		fields["username"] = "username is required"
	} else if len(s) > 255 {
		fields["username"] = "username must be at most 255 characters"
	}
	if s := strings.TrimSpace(in.Secret); s == "" {
		fields["secret"] = "secret is required"
	} else if len(s) > 500 {
		fields["secret"] = "secret must be at most 500 characters"
	}
	if len(in.Note) > 500 {
		fields["note"] = "note must be at most 500 characters"
	}
	if len(in.Token) > 500 {
		fields["token"] = "token must be at most 500 characters"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Refresh re-fetches the principal's records and replaces the local cache.
func (v *Vault) Refresh(ctx context.Context) error {
	p, err := v.gate.Principal()
	if err != nil {
		return err
	}
	records, err := v.repo.SelectByOwner(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("refresh vault: %w", err)
	}
	v.mu.Lock()
	v.records = records
	v.mu.Unlock()
	return nil
}

// Records returns a copy of the cached record list, newest first.
func (v *Vault) Records() []models.CredentialRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.CredentialRecord, len(v.records))
	copy(out, v.records)
	return out
}

// Create validates the input, attaches the principal, inserts the record and
// re-fetches the list. Optional fields normalize to absent when empty.
func (v *Vault) Create(ctx context.Context, in CredentialInput) error {
	if verr := validateCredential(in); verr != nil {
		return verr
	}
	p, err := v.gate.Principal()
	if err != nil {
		return err
	}
	rec := models.CredentialRecord{
		ID:        uuid.NewString(),
		OwnerID:   p.ID,
		Platform:  strings.TrimSpace(in.Platform),
		Username:  strings.TrimSpace(in.Username),
		Secret:    strings.TrimSpace(in.Secret),
		Note:      strings.TrimSpace(in.Note),
		Token:     strings.TrimSpace(in.Token),
		CreatedAt: time.Now().UTC(),
	}
	if err := v.repo.Insert(ctx, rec); err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	v.log.Info("credential created", zap.String("platform", rec.Platform), zap.String("principal", p.ID))
	return v.Refresh(ctx)
}

// Update replaces every editable field of the record identified by id, then
// re-fetches the list.
func (v *Vault) Update(ctx context.Context, id string, in CredentialInput) error {
	if verr := validateCredential(in); verr != nil {
		return verr
	}
	p, err := v.gate.Principal()
	if err != nil {
		return err
	}
	rec := models.CredentialRecord{
		ID:       id,
		OwnerID:  p.ID,
		Platform: strings.TrimSpace(in.Platform),
		Username: strings.TrimSpace(in.Username),
		Secret:   strings.TrimSpace(in.Secret),
		Note:     strings.TrimSpace(in.Note),
		Token:    strings.TrimSpace(in.Token),
	}
	if err := v.repo.Update(ctx, rec); err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	return v.Refresh(ctx)
}

// Delete removes the record remotely; the list is re-fetched only after the
// remote delete succeeds. User confirmation is the handler's concern.
func (v *Vault) Delete(ctx context.Context, id string) error {
	p, err := v.gate.Principal()
	if err != nil {
		return err
	}
	if err := v.repo.Delete(ctx, p.ID, id); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	v.log.Info("credential deleted", zap.String("principal", p.ID))
	v.mu.Lock()
	delete(v.revealed, id)
	v.mu.Unlock()
	return v.Refresh(ctx)
}

// ToggleReveal flips whether the record's secret is shown in clear and
// returns the new state. Purely local.
func (v *Vault) ToggleReveal(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.revealed[id] {
		delete(v.revealed, id)
		return false
	}
	v.revealed[id] = true
	return true
}

// Revealed reports whether the record's secret is currently shown in clear.
func (v *Vault) Revealed(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.revealed[id]
}

// CopySecret returns the record's secret in clear for a clipboard copy.
func (v *Vault) CopySecret(id string) (string, error) {
	return v.copyField(id, func(r models.CredentialRecord) string { return r.Secret })
}

// CopyToken returns the record's auxiliary token in clear for a clipboard
// copy.
func (v *Vault) CopyToken(id string) (string, error) {
	return v.copyField(id, func(r models.CredentialRecord) string { return r.Token })
}

func (v *Vault) copyField(id string, pick func(models.CredentialRecord) string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range v.records {
		if r.ID == id {
			return pick(r), nil
		}
	}
	return "", fmt.Errorf("credential %s not found", id)
}

// Reset drops the local cache and the reveal-set. Called when the session
// ends so nothing leaks across sign-ins.
func (v *Vault) Reset() {
	v.mu.Lock()
	v.records = nil
	v.revealed = make(map[string]bool)
	v.mu.Unlock()
}
