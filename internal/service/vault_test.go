package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/akozyreva/cloudkeep/internal/models"
	"github.com/akozyreva/cloudkeep/internal/session"
	"go.uber.org/zap"
)

type fakeCredRepo struct {
	SelectByOwnerFunc func(ctx context.Context, ownerID string) ([]models.CredentialRecord, error)
	InsertFunc        func(ctx context.Context, rec models.CredentialRecord) error
	UpdateFunc        func(ctx context.Context, rec models.CredentialRecord) error
	DeleteFunc        func(ctx context.Context, ownerID, id string) error

	selects int
	inserts int
	updates int
	deletes int
}

func (f *fakeCredRepo) SelectByOwner(ctx context.Context, ownerID string) ([]models.CredentialRecord, error) {
	f.selects++
	if f.SelectByOwnerFunc != nil {
		return f.SelectByOwnerFunc(ctx, ownerID)
	}
	return nil, nil
}
func (f *fakeCredRepo) Insert(ctx context.Context, rec models.CredentialRecord) error {
	f.inserts++
	if f.InsertFunc != nil {
		return f.InsertFunc(ctx, rec)
	}
	return nil
}
func (f *fakeCredRepo) Update(ctx context.Context, rec models.CredentialRecord) error {
	f.updates++
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, rec)
	}
	return nil
}
func (f *fakeCredRepo) Delete(ctx context.Context, ownerID, id string) error {
	f.deletes++
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, ownerID, id)
	}
	return nil
}

func validInput() CredentialInput {
	return CredentialInput{Platform: "github", Username: "octocat", Secret: "hunter2"}
}

func newTestVault(repo CredentialRepository) *Vault {
	return NewVault(repo, &fakeGate{p: &models.Principal{ID: "u1"}}, zap.NewNop())
}

func TestVaultCreate_EmptyPlatformRejectedLocally(t *testing.T) {
	repo := &fakeCredRepo{}
	v := newTestVault(repo)

	in := validInput()
	in.Platform = ""
	err := v.Create(context.Background(), in)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v; want *ValidationError", err)
	}
	if _, ok := verr.Fields["platform"]; !ok {
		t.Errorf("missing platform field message: %v", verr.Fields)
	}
	if repo.inserts != 0 || repo.selects != 0 {
		t.Errorf("remote calls made despite local rejection: inserts=%d selects=%d", repo.inserts, repo.selects)
	}
}

func TestVaultCreate_WhitespaceOnlyRequiredFieldRejected(t *testing.T) {
	repo := &fakeCredRepo{}
	v := newTestVault(repo)

	in := validInput()
	in.Secret = "   "
	err := v.Create(context.Background(), in)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v; want *ValidationError", err)
	}
	if _, ok := verr.Fields["secret"]; !ok {
		t.Errorf("missing secret field message: %v", verr.Fields)
	}
}

func TestVaultCreate_LengthBounds(t *testing.T) {
	repo := &fakeCredRepo{}
	v := newTestVault(repo)

	in := validInput()
	in.Platform = strings.Repeat("x", 101)
	in.Note = strings.Repeat("n", 501)
	err := v.Create(context.Background(), in)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v; want *ValidationError", err)
	}
	for _, field := range []string{"platform", "note"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("missing %s field message: %v", field, verr.Fields)
		}
	}
	if repo.inserts != 0 {
		t.Error("insert attempted despite validation failure")
	}
}

func TestVaultCreate_NoSession(t *testing.T) {
	repo := &fakeCredRepo{}
	v := NewVault(repo, &fakeGate{err: session.ErrAuthenticationRequired}, zap.NewNop())

	err := v.Create(context.Background(), validInput())
	if !errors.Is(err, session.ErrAuthenticationRequired) {
		t.Fatalf("err = %v; want ErrAuthenticationRequired", err)
	}
	if repo.inserts != 0 {
		t.Error("insert attempted without a session")
	}
}

func TestVaultCreate_AttachesPrincipalAndRefetches(t *testing.T) {
	var inserted models.CredentialRecord
	repo := &fakeCredRepo{
		InsertFunc: func(ctx context.Context, rec models.CredentialRecord) error {
			inserted = rec
			return nil
		},
	}
	v := newTestVault(repo)

	in := validInput()
	in.Note = "  trimmed  "
	if err := v.Create(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted.OwnerID != "u1" {
		t.Errorf("owner = %q; want u1", inserted.OwnerID)
	}
	if inserted.ID == "" {
		t.Error("record id not assigned")
	}
	if inserted.Note != "trimmed" {
		t.Errorf("note = %q; want trimmed", inserted.Note)
	}
	// The mutation is followed by a full re-fetch.
	if repo.selects != 1 {
		t.Errorf("selects = %d; want 1", repo.selects)
	}
}

func TestVaultCreate_RemoteFailureSkipsRefetch(t *testing.T) {
	repo := &fakeCredRepo{
		InsertFunc: func(ctx context.Context, rec models.CredentialRecord) error {
			return errors.New("insert rejected")
		},
	}
	v := newTestVault(repo)

	if err := v.Create(context.Background(), validInput()); err == nil {
		t.Fatal("expected error")
	}
	if repo.selects != 0 {
		t.Errorf("re-fetch happened after failed insert: selects = %d", repo.selects)
	}
}

func TestVaultDelete_RefetchOnlyAfterSuccess(t *testing.T) {
	repo := &fakeCredRepo{
		DeleteFunc: func(ctx context.Context, ownerID, id string) error {
			return errors.New("delete rejected")
		},
	}
	v := newTestVault(repo)

	if err := v.Delete(context.Background(), "r1"); err == nil {
		t.Fatal("expected error")
	}
	if repo.selects != 0 {
		t.Error("list re-fetched after failed delete")
	}

	repo.DeleteFunc = nil
	if err := v.Delete(context.Background(), "r1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.selects != 1 {
		t.Errorf("selects = %d; want 1 after successful delete", repo.selects)
	}
}

func TestVaultUpdate_FullReplace(t *testing.T) {
	var updated models.CredentialRecord
	repo := &fakeCredRepo{
		UpdateFunc: func(ctx context.Context, rec models.CredentialRecord) error {
			updated = rec
			return nil
		},
	}
	v := newTestVault(repo)

	in := validInput()
	in.Token = "tok-123"
	if err := v.Update(context.Background(), "r9", in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ID != "r9" || updated.OwnerID != "u1" {
		t.Errorf("updated = %+v; want id r9 owned by u1", updated)
	}
	if updated.Token != "tok-123" {
		t.Errorf("token = %q; want tok-123", updated.Token)
	}
}

func TestVaultToggleReveal_Idempotence(t *testing.T) {
	v := newTestVault(&fakeCredRepo{})

	if !v.ToggleReveal("r1") {
		t.Error("first toggle should reveal")
	}
	if v.ToggleReveal("r1") {
		t.Error("second toggle should hide")
	}
	if v.Revealed("r1") {
		t.Error("reveal, hide should leave the record hidden")
	}
	v.ToggleReveal("r1")
	v.ToggleReveal("r1")
	v.ToggleReveal("r1")
	if !v.Revealed("r1") {
		t.Error("odd number of toggles should leave the record revealed")
	}
	v.ToggleReveal("r1")
	if v.Revealed("r1") {
		t.Error("even number of toggles should leave the record hidden")
	}
}

func TestVaultCopy(t *testing.T) {
	repo := &fakeCredRepo{
		SelectByOwnerFunc: func(ctx context.Context, ownerID string) ([]models.CredentialRecord, error) {
			return []models.CredentialRecord{
				{ID: "r1", OwnerID: "u1", Platform: "github", Username: "octocat", Secret: "hunter2", Token: "tok"},
			}, nil
		},
	}
	v := newTestVault(repo)
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	secret, err := v.CopySecret("r1")
	if err != nil || secret != "hunter2" {
		t.Errorf("CopySecret = (%q, %v); want (hunter2, nil)", secret, err)
	}
	token, err := v.CopyToken("r1")
	if err != nil || token != "tok" {
		t.Errorf("CopyToken = (%q, %v); want (tok, nil)", token, err)
	}
	if _, err := v.CopySecret("missing"); err == nil {
		t.Error("copy of unknown record should fail")
	}
	// Copying never flips reveal state.
	if v.Revealed("r1") {
		t.Error("copy revealed the record")
	}
}

func TestVaultReset_ClearsRevealSet(t *testing.T) {
	v := newTestVault(&fakeCredRepo{})
	v.ToggleReveal("r1")
	v.Reset()
	if v.Revealed("r1") {
		t.Error("reveal-set survived a reset")
	}
	if len(v.Records()) != 0 {
		t.Error("records survived a reset")
	}
}
