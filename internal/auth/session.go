package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionInvalid covers malformed, expired and signed-out tokens alike.
var ErrSessionInvalid = errors.New("session invalid or signed out")

// Denylist records signed-out session ids until their tokens would expire anyway.
type Denylist interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	Revoked(ctx context.Context, id string) (bool, error)
}

// StateNotifier is told whenever an identity signs in or out.
type StateNotifier interface {
	AuthChanged(ctx context.Context, uid string) error
}

// Sessions issues, verifies and revokes session tokens.
type Sessions struct {
	issuer   string
	key      string
	ttl      time.Duration
	denylist Denylist
	notifier StateNotifier
	now      func() time.Time
}

// NewSessions builds a session manager. notifier may be nil.
func NewSessions(issuer, key string, ttl time.Duration, denylist Denylist, notifier StateNotifier) *Sessions {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Sessions{
		issuer:   issuer,
		key:      key,
		ttl:      ttl,
		denylist: denylist,
		notifier: notifier,
		now:      time.Now,
	}
}

// Issue starts a session for uid.
func (s *Sessions) Issue(ctx context.Context, uid string) (Session, error) {
	sess, err := Issue(uid, s.issuer, s.key, s.ttl, s.now())
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	s.notify(ctx, uid)
	return sess, nil
}

// Verify parses token and rejects it if it was signed out.
func (s *Sessions) Verify(ctx context.Context, token string) (Session, error) {
	claims, err := Parse(token, s.key, s.issuer)
	if err != nil {
		return Session{}, ErrSessionInvalid
	}
	revoked, err := s.denylist.Revoked(ctx, claims.ID)
	if err != nil {
		return Session{}, fmt.Errorf("check denylist: %w", err)
	}
	if revoked {
		return Session{}, ErrSessionInvalid
	}
	return Session{
		Token:     token,
		UID:       claims.Subject,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SignOut revokes sess for the rest of its lifetime.
func (s *Sessions) SignOut(ctx context.Context, sess Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if sess.ID == "" || ttl <= 0 {
		return nil
	}
	if err := s.denylist.Revoke(ctx, sess.ID, ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.notify(ctx, sess.UID)
	return nil
}

func (s *Sessions) notify(ctx context.Context, uid string) {
	if s.notifier == nil {
		return
	}
	// Observers are best effort; the guard also runs on the next request.
	_ = s.notifier.AuthChanged(ctx, uid)
}

const revokedPrefix = "portal:session:revoked:"

// RedisDenylist keeps revoked session ids as expiring Redis keys.
type RedisDenylist struct {
	client *redis.Client
}

// NewRedisDenylist wraps client.
func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client}
}

// Revoke stores id with the given ttl.
func (d *RedisDenylist) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, revokedPrefix+id, "1", ttl).Err()
}

// Revoked reports whether id was signed out.
func (d *RedisDenylist) Revoked(ctx context.Context, id string) (bool, error) {
	n, err := d.client.Exists(ctx, revokedPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
