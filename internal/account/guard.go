package account

import (
	"context"
	"errors"
	"fmt"

	"portal/internal/auth"
)

// Decide applies the session guard matrix. profile is nil for an
// unauthenticated visitor. It returns the page to redirect to, or "" to let
// the request through.
func Decide(page string, profile *Profile) string {
	page = NormalizePage(page)
	public := IsPublicPage(page)

	if profile == nil {
		if public {
			return ""
		}
		return PageLanding
	}

	own := DashboardFor(profile.Role)
	if public {
		return own
	}
	if owner, ok := PageRole(page); ok && owner != profile.Role {
		return own
	}
	return ""
}

// SessionVerifier resolves a raw token to a live session.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (auth.Session, error)
}

// Verdict is the guard's answer for one page view.
type Verdict struct {
	Redirect string
	Session  *auth.Session
	Profile  *Profile
}

// Guard evaluates the matrix against the current session and stored profile.
type Guard struct {
	sessions   SessionVerifier
	profiles   ProfileReader
	identities Identities
}

// NewGuard wires a guard.
func NewGuard(sessions SessionVerifier, profiles ProfileReader, identities Identities) *Guard {
	return &Guard{sessions: sessions, profiles: profiles, identities: identities}
}

// Evaluate decides what a visitor presenting token may do on page. Sessions
// whose profile is gone or can no longer log in are signed out and treated as
// unauthenticated.
func (g *Guard) Evaluate(ctx context.Context, token, page string) (Verdict, error) {
	if token == "" {
		return Verdict{Redirect: Decide(page, nil)}, nil
	}
	sess, err := g.sessions.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrSessionInvalid) {
			return Verdict{Redirect: Decide(page, nil)}, nil
		}
		return Verdict{}, fmt.Errorf("verify session: %w", err)
	}
	profile, err := g.profiles.Profile(ctx, sess.UID)
	if err != nil {
		return Verdict{}, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil || !profile.CanLogin() {
		if err := g.identities.SignOut(ctx, sess); err != nil {
			return Verdict{}, fmt.Errorf("sign out unusable session: %w", err)
		}
		return Verdict{Redirect: Decide(page, nil)}, nil
	}
	return Verdict{Redirect: Decide(page, profile), Session: &sess, Profile: profile}, nil
}
