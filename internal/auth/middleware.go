package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CookieName carries the session token for browser page navigations.
const CookieName = "portal_session"

const sessionKey = "session"

// Verifier checks a raw token.
type Verifier interface {
	Verify(ctx context.Context, token string) (Session, error)
}

// TokenFromRequest prefers a bearer header and falls back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if len(authz) > len("bearer ") && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// RequireSession rejects requests without a valid, not signed-out session.
func RequireSession(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
			return
		}
		sess, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// OptionalSession attaches a session when a valid one is presented and never aborts.
func OptionalSession(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := TokenFromRequest(c.Request); token != "" {
			if sess, err := v.Verify(c.Request.Context(), token); err == nil {
				c.Set(sessionKey, sess)
			}
		}
		c.Next()
	}
}

// SessionFrom returns the session attached by RequireSession or OptionalSession.
func SessionFrom(c *gin.Context) (Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Session{}, false
	}
	sess, ok := v.(Session)
	return sess, ok
}
