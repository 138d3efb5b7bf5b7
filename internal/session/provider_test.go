package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akozyreva/cloudkeep/internal/models"
)

func authServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Provider) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewProvider(srv.URL, "test-api-key", zap.NewNop())
}

func TestProviderSignIn(t *testing.T) {
	_, p := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))
		require.Equal(t, "test-api-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "me@example.com", body["email"])

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_in":    3600,
			"user":          map[string]string{"id": "u1", "email": "me@example.com"},
		})
	})

	var changes []*models.Session
	p.OnChange(func(s *models.Session) { changes = append(changes, s) })

	s, err := p.SignIn(context.Background(), "me@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.Principal.ID)
	assert.Equal(t, "at-1", s.AccessToken)
	assert.False(t, s.Expired(s.ExpiresAt.Add(-time.Minute)))

	require.Len(t, changes, 1)
	assert.Same(t, s, changes[0])
	assert.Same(t, s, p.CurrentSession())
}

func TestProviderSignIn_RejectedGrant(t *testing.T) {
	_, p := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid login credentials", http.StatusBadRequest)
	})

	_, err := p.SignIn(context.Background(), "me@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid login credentials")
	assert.Nil(t, p.CurrentSession())
}

func TestProviderSignOut_ClearsEvenOnRemoteFailure(t *testing.T) {
	_, p := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token":
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "at-1", "refresh_token": "rt-1", "expires_in": 3600,
				"user": map[string]string{"id": "u1"},
			})
		default:
			http.Error(w, "revocation unavailable", http.StatusInternalServerError)
		}
	})

	_, err := p.SignIn(context.Background(), "me@example.com", "pw")
	require.NoError(t, err)

	var lost bool
	p.OnChange(func(s *models.Session) { lost = s == nil })

	err = p.SignOut(context.Background())
	require.Error(t, err, "remote revocation failed")
	assert.Nil(t, p.CurrentSession(), "local session must drop regardless")
	assert.True(t, lost, "subscribers must hear the loss")
}

func TestProviderRefresh_FailureDropsSession(t *testing.T) {
	grants := 0
	_, p := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		grants++
		if grants == 1 {
			// expires_in of zero forces the next refresh pass to renew.
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "at-1", "refresh_token": "rt-1", "expires_in": 0,
				"user": map[string]string{"id": "u1"},
			})
			return
		}
		http.Error(w, "refresh token revoked", http.StatusUnauthorized)
	})

	_, err := p.SignIn(context.Background(), "me@example.com", "pw")
	require.NoError(t, err)

	var lost bool
	p.OnChange(func(s *models.Session) { lost = s == nil })

	p.maybeRefresh(context.Background())

	assert.Nil(t, p.CurrentSession())
	assert.True(t, lost, "refresh failure must broadcast session loss")
}

func TestProviderRefresh_RenewsExpiringSession(t *testing.T) {
	grants := 0
	_, p := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		grants++
		tok := map[string]any{
			"access_token": "at-1", "refresh_token": "rt-1", "expires_in": 0,
			"user": map[string]string{"id": "u1"},
		}
		if grants > 1 {
			require.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
			tok["access_token"] = "at-2"
			tok["expires_in"] = 3600
		}
		json.NewEncoder(w).Encode(tok)
	})

	_, err := p.SignIn(context.Background(), "me@example.com", "pw")
	require.NoError(t, err)

	p.maybeRefresh(context.Background())

	s := p.CurrentSession()
	require.NotNil(t, s)
	assert.Equal(t, "at-2", s.AccessToken)
}

func TestProviderUnsubscribe(t *testing.T) {
	_, p := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-1", "refresh_token": "rt-1", "expires_in": 3600,
			"user": map[string]string{"id": "u1"},
		})
	})

	calls := 0
	unsub := p.OnChange(func(*models.Session) { calls++ })
	unsub()

	_, err := p.SignIn(context.Background(), "me@example.com", "pw")
	require.NoError(t, err)
	assert.Zero(t, calls, "unsubscribed callback must not fire")
}
