package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/auth"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/requestctx"
)

const (
	cartKeyUserPrefix  = "user:"
	cartKeyGuestPrefix = "guest:"
	maxGuestIDLength   = 128
)

// ErrSessionRequired indicates the request carries neither an identity nor a guest session.
var ErrSessionRequired = errors.New("session: identity or guest session required")

// Session identifies whose cart a request acts on. CustomerID wins over GuestID; a signed-in
// session may still carry the guest id it used before login so that cart can be merged.
type Session struct {
	CustomerID string
	GuestID    string
}

// CartKey is "user:<uid>" for customers and "guest:<sid>" for guests.
func (s Session) CartKey() string {
	if id := strings.TrimSpace(s.CustomerID); id != "" {
		return cartKeyUserPrefix + id
	}
	if id := strings.TrimSpace(s.GuestID); id != "" {
		return cartKeyGuestPrefix + id
	}
	return ""
}

// IsGuest reports whether the session has no signed-in customer.
func (s Session) IsGuest() bool {
	return strings.TrimSpace(s.CustomerID) == ""
}

// GuestCartKey returns the key of the guest cart regardless of login state.
func GuestCartKey(guestID string) string {
	if id := strings.TrimSpace(guestID); id != "" {
		return cartKeyGuestPrefix + id
	}
	return ""
}

// SessionServiceDeps wires the session service.
type SessionServiceDeps struct {
	// IDGenerator mints guest session ids. Defaults to random UUIDs.
	IDGenerator func() string
}

type sessionService struct {
	newID func() string
}

var _ SessionService = (*sessionService)(nil)

// NewSessionService constructs the request session resolver.
func NewSessionService(deps SessionServiceDeps) (SessionService, error) {
	gen := deps.IDGenerator
	if gen == nil {
		gen = func() string { return uuid.NewString() }
	}
	return &sessionService{newID: gen}, nil
}

// Resolve reads the verified identity and guest session id bound to ctx by middleware.
func (s *sessionService) Resolve(ctx context.Context) (Session, error) {
	session := Session{GuestID: sanitizeGuestID(requestctx.SessionID(ctx))}
	if identity, ok := auth.IdentityFromContext(ctx); ok && strings.TrimSpace(identity.UID) != "" {
		session.CustomerID = strings.TrimSpace(identity.UID)
	}
	if session.CartKey() == "" {
		return Session{}, ErrSessionRequired
	}
	return session, nil
}

func (s *sessionService) NewGuestID() string {
	return s.newID()
}

func sanitizeGuestID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxGuestIDLength {
		return ""
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return ""
		}
	}
	return id
}
