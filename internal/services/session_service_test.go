package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/auth"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/requestctx"
)

func TestSessionResolve(t *testing.T) {
	svc, _ := NewSessionService(SessionServiceDeps{IDGenerator: func() string { return "guest-1" }})

	cases := []struct {
		name    string
		ctx     context.Context
		wantKey string
		wantErr error
	}{
		{name: "anonymous", ctx: context.Background(), wantErr: ErrSessionRequired},
		{name: "guest", ctx: requestctx.WithSessionID(context.Background(), "abc-123"), wantKey: "guest:abc-123"},
		{name: "invalid guest id", ctx: requestctx.WithSessionID(context.Background(), "../etc"), wantErr: ErrSessionRequired},
		{name: "oversized guest id", ctx: requestctx.WithSessionID(context.Background(), strings.Repeat("a", 129)), wantErr: ErrSessionRequired},
		{
			name:    "signed in wins",
			ctx:     auth.WithIdentity(requestctx.WithSessionID(context.Background(), "abc"), &auth.Identity{UID: "u1"}),
			wantKey: "user:u1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session, err := svc.Resolve(tc.ctx)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if session.CartKey() != tc.wantKey {
				t.Fatalf("expected key %q, got %q", tc.wantKey, session.CartKey())
			}
		})
	}
	if svc.NewGuestID() != "guest-1" {
		t.Fatal("expected injected id generator")
	}
}

func TestSessionKeepsGuestIDAfterLogin(t *testing.T) {
	svc, _ := NewSessionService(SessionServiceDeps{})
	ctx := auth.WithIdentity(requestctx.WithSessionID(context.Background(), "g-7"), &auth.Identity{UID: "u1"})
	session, err := svc.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if session.IsGuest() || session.GuestID != "g-7" || GuestCartKey(session.GuestID) != "guest:g-7" {
		t.Fatalf("unexpected session %+v", session)
	}
}
