package session

import (
	"context"
	"errors"
	"sync"

	"github.com/akozyreva/cloudkeep/internal/models"
	"go.uber.org/zap"
)

// ErrAuthenticationRequired is returned by every gated operation attempted
// without a live session.
var ErrAuthenticationRequired = errors.New("authentication required")

// Source is the session contract the Gate depends on.
type Source interface {
	// CurrentSession returns the session in effect, or nil when signed out.
	CurrentSession() *models.Session
	// OnChange registers for session-change notifications and returns an
	// unsubscribe function.
	OnChange(fn func(*models.Session)) func()
	// SignOut terminates the session with the platform.
	SignOut(ctx context.Context) error
}

// Gate owns the current principal. It subscribes to session changes on
// construction and also resolves the current session once, so a session
// established before the Gate existed is still picked up. Dependent
// components read the principal only through the Gate and never observe a
// half-established state.
type Gate struct {
	source Source
	log    *zap.Logger
	unsub  func()

	mu      sync.Mutex
	session *models.Session
}

// NewGate builds a Gate over the given session source.
func NewGate(source Source, log *zap.Logger) *Gate {
	g := &Gate{source: source, log: log}
	g.unsub = source.OnChange(g.onChange)
	g.onChange(source.CurrentSession())
	return g
}

func (g *Gate) onChange(s *models.Session) {
	g.mu.Lock()
	prev := g.session
	g.session = s
	g.mu.Unlock()

	switch {
	case s == nil && prev != nil:
		g.log.Info("session ended", zap.String("principal", prev.Principal.ID))
	case s != nil && (prev == nil || prev.Principal.ID != s.Principal.ID):
		g.log.Info("session established", zap.String("principal", s.Principal.ID))
	}
}

// Principal returns the signed-in identity, or ErrAuthenticationRequired.
func (g *Gate) Principal() (*models.Principal, error) {
	s, err := g.Session()
	if err != nil {
		return nil, err
	}
	return &s.Principal, nil
}

// Session returns the live session, or ErrAuthenticationRequired. Platform
// clients use it to pick up the bearer token for each call.
func (g *Gate) Session() (*models.Session, error) {
	g.mu.Lock()
	s := g.session
	g.mu.Unlock()
	if s == nil {
		return nil, ErrAuthenticationRequired
	}
	return s, nil
}

// SignOut explicitly terminates the session via the provider. The gate's own
// state clears through the change notification.
func (g *Gate) SignOut(ctx context.Context) error {
	return g.source.SignOut(ctx)
}

// Close unsubscribes from session-change notifications.
func (g *Gate) Close() {
	if g.unsub != nil {
		g.unsub()
	}
}
