// Package session talks to the platform's auth API and owns the current
// principal. The Provider issues and renews sessions; the Gate exposes the
// principal to the rest of the application and blocks unauthenticated access.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/akozyreva/cloudkeep/internal/models"
	"go.uber.org/zap"
)

// refreshSkew renews the token this long before its actual expiry so that
// in-flight requests never race the deadline.
const refreshSkew = 30 * time.Second

// Provider is an HTTP client for the platform auth API. It holds the current
// session, renews it in the background, and notifies subscribers on every
// change, including session loss.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger

	mu      sync.Mutex
	current *models.Session
	subs    map[int]func(*models.Session)
	nextSub int
}

// NewProvider creates a Provider against the given auth API base URL.
func NewProvider(baseURL, apiKey string, log *zap.Logger) *Provider {
	return &Provider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log,
		subs:    make(map[int]func(*models.Session)),
	}
}

// tokenResponse is the auth API's token grant payload.
type tokenResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int64            `json:"expires_in"`
	User         models.Principal `json:"user"`
}

// SignIn exchanges credentials for a session and makes it current.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	body := map[string]string{"email": email, "password": password}
	tok, err := p.grant(ctx, "password", body)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	s := p.sessionFrom(tok)
	p.setCurrent(s)
	return s, nil
}

// CurrentSession returns the session as last established, or nil when signed
// out. The one-shot resolution the Gate performs on construction reads this.
func (p *Provider) CurrentSession() *models.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// OnChange registers a callback invoked with the new session (nil on loss)
// after every change. The returned function unsubscribes.
func (p *Provider) OnChange(fn func(*models.Session)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// SignOut revokes the session with the platform and clears it locally.
// The local session is dropped and subscribers are notified even when the
// remote revocation fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	var revokeErr error
	if current != nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/logout", nil)
		if err != nil {
			return err
		}
		req.Header.Set("apikey", p.apiKey)
		req.Header.Set("Authorization", "Bearer "+current.AccessToken)
		resp, err := p.client.Do(req)
		if err != nil {
			revokeErr = fmt.Errorf("sign out: %w", err)
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode >= 300 {
				revokeErr = fmt.Errorf("sign out: unexpected status %s", resp.Status)
			}
		}
	}

	p.setCurrent(nil)
	return revokeErr
}

// Start runs the refresh loop until ctx is cancelled. Sessions nearing
// expiry are renewed; a failed renewal drops the session and notifies
// subscribers, which is how expiry elsewhere (e.g. revocation by the
// platform) surfaces here.
func (p *Provider) Start(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.maybeRefresh(ctx)
			}
		}
	}()
}

func (p *Provider) maybeRefresh(ctx context.Context) {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current == nil {
		return
	}
	if current.ExpiresAt.After(time.Now().Add(refreshSkew)) {
		return
	}

	tok, err := p.grant(ctx, "refresh_token", map[string]string{"refresh_token": current.RefreshToken})
	if err != nil {
		p.log.Warn("session refresh failed, signing out", zap.Error(err))
		p.setCurrent(nil)
		return
	}
	p.setCurrent(p.sessionFrom(tok))
}

// grant posts a token request of the given type and decodes the response.
func (p *Provider) grant(ctx context.Context, grantType string, body map[string]string) (*tokenResponse, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/token?grant_type=%s", p.baseURL, grantType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token grant: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("token grant: decode: %w", err)
	}
	return &tok, nil
}

func (p *Provider) sessionFrom(tok *tokenResponse) *models.Session {
	return &models.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
		Principal:    tok.User,
	}
}

// setCurrent swaps the current session and notifies subscribers outside the
// lock.
func (p *Provider) setCurrent(s *models.Session) {
	p.mu.Lock()
	p.current = s
	subs := make([]func(*models.Session), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}
