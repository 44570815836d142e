package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailInUse       = errors.New("email already in use")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrWrongPassword    = errors.New("wrong password")
	ErrWeakPassword     = errors.New("password too weak")
	ErrInvalidEmail     = errors.New("invalid email")
)

// Identity is an email/password credential. It carries no portal data.
type Identity struct {
	UID          string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// IdentityStore persists identities.
type IdentityStore interface {
	InsertIdentity(ctx context.Context, id Identity) error
	IdentityByEmail(ctx context.Context, email string) (*Identity, error)
	DeleteIdentity(ctx context.Context, uid string) error
}

// Provider is the portal's identity provider: it creates identities,
// authenticates them and manages their sessions.
type Provider struct {
	store    IdentityStore
	sessions *Sessions
}

// NewProvider wires a provider.
func NewProvider(store IdentityStore, sessions *Sessions) *Provider {
	return &Provider{store: store, sessions: sessions}
}

// CreateIdentity registers email/password and returns a live session for it.
func (p *Provider) CreateIdentity(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, ErrInvalidEmail
	}
	if len([]rune(password)) < MinProviderPasswordLength {
		return Session{}, ErrWeakPassword
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	id := Identity{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.store.InsertIdentity(ctx, id); err != nil {
		return Session{}, err
	}
	return p.sessions.Issue(ctx, id.UID)
}

// Authenticate checks email/password and starts a session.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	id, err := p.store.IdentityByEmail(ctx, email)
	if err != nil {
		return Session{}, fmt.Errorf("lookup identity: %w", err)
	}
	if id == nil {
		return Session{}, ErrIdentityNotFound
	}
	if err := CheckPassword(id.PasswordHash, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Session{}, ErrWrongPassword
		}
		return Session{}, fmt.Errorf("check password: %w", err)
	}
	return p.sessions.Issue(ctx, id.UID)
}

// SignOut ends sess.
func (p *Provider) SignOut(ctx context.Context, sess Session) error {
	return p.sessions.SignOut(ctx, sess)
}

// DeleteIdentity removes an identity, used to undo a half-finished registration.
func (p *Provider) DeleteIdentity(ctx context.Context, uid string) error {
	return p.store.DeleteIdentity(ctx, uid)
}
