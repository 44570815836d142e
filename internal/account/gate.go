package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"portal/internal/auth"
	"portal/internal/credential"
)

// Outcome names the result of a login attempt. Failures are expected results,
// not errors.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeWrongRole      Outcome = "wrong-role"
	OutcomeWrongCode      Outcome = "wrong-code"
	OutcomePending        Outcome = "pending"
	OutcomeDeleted        Outcome = "deleted"
	OutcomeBadCredentials Outcome = "bad-credentials"
)

const (
	msgBadCredentials   = "Check your email and password."
	msgIdentityNotFound = "This account does not exist."
	msgWrongPassword    = "The password is incorrect."
	msgWrongCode        = "The secret access code is incorrect, please check your card."
	msgPending          = "Your account is registered and awaiting activation. Please contact the administration or the secretary office."
	msgDeleted          = "Access for this account has been revoked."
)

// Identities is the identity provider the gate and the registrar talk to.
type Identities interface {
	CreateIdentity(ctx context.Context, email, password string) (auth.Session, error)
	Authenticate(ctx context.Context, email, password string) (auth.Session, error)
	SignOut(ctx context.Context, sess auth.Session) error
	DeleteIdentity(ctx context.Context, uid string) error
}

// ProfileReader loads a profile; a missing profile is (nil, nil).
type ProfileReader interface {
	Profile(ctx context.Context, uid string) (*Profile, error)
}

// LoginInput carries the four login factors. Role is the portal the user chose.
type LoginInput struct {
	Email      string
	Password   string
	Role       Role
	AccessCode string
}

// LoginResult is returned for every login attempt that reached a verdict.
// Session and Profile are set only on success.
type LoginResult struct {
	Outcome  Outcome
	Message  string
	Redirect string
	Session  *auth.Session
	Profile  *Profile
}

// OutcomeRecorder observes login outcomes, e.g. for metrics.
type OutcomeRecorder interface {
	LoginOutcome(outcome string)
}

// Gate runs the ordered login checks.
type Gate struct {
	identities Identities
	profiles   ProfileReader
	recorder   OutcomeRecorder
	log        *zap.Logger
}

// NewGate wires a gate. recorder may be nil.
func NewGate(identities Identities, profiles ProfileReader, recorder OutcomeRecorder, log *zap.Logger) *Gate {
	return &Gate{identities: identities, profiles: profiles, recorder: recorder, log: log}
}

// Login authenticates and then checks, in order, the claimed role, the access
// code and the account status. The first failing check ends the attempt and the
// session is signed out before the result is returned.
func (g *Gate) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return g.result(OutcomeBadCredentials, msgBadCredentials), nil
	}
	sess, err := g.identities.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrIdentityNotFound):
			return g.result(OutcomeBadCredentials, msgIdentityNotFound), nil
		case errors.Is(err, auth.ErrWrongPassword):
			return g.result(OutcomeBadCredentials, msgWrongPassword), nil
		case errors.Is(err, auth.ErrInvalidEmail):
			return g.result(OutcomeBadCredentials, msgBadCredentials), nil
		}
		return LoginResult{}, fmt.Errorf("authenticate: %w", err)
	}

	profile, err := g.profiles.Profile(ctx, sess.UID)
	if err != nil {
		return LoginResult{}, g.abort(ctx, sess, fmt.Errorf("load profile: %w", err))
	}
	if profile == nil {
		g.log.Warn("identity without profile", zap.String("uid", sess.UID))
		return g.reject(ctx, sess, OutcomeDeleted, msgDeleted)
	}

	if profile.Role != in.Role {
		msg := fmt.Sprintf("This account belongs to the %s portal (%s) only.", profile.Role.Label(), profile.Role)
		return g.reject(ctx, sess, OutcomeWrongRole, msg)
	}
	if profile.AccessCode != credential.Normalize(in.AccessCode) {
		return g.reject(ctx, sess, OutcomeWrongCode, msgWrongCode)
	}
	if profile.Status == StatusPending && profile.Role != RoleAdmin {
		return g.reject(ctx, sess, OutcomePending, msgPending)
	}
	if profile.Status == StatusDeleted {
		return g.reject(ctx, sess, OutcomeDeleted, msgDeleted)
	}

	res := g.result(OutcomeSuccess, fmt.Sprintf("Welcome %s, preparing your data...", profile.FirstName()))
	res.Redirect = DashboardFor(profile.Role)
	res.Session = &sess
	res.Profile = profile
	return res, nil
}

// Logout ends sess.
func (g *Gate) Logout(ctx context.Context, sess auth.Session) error {
	return g.identities.SignOut(ctx, sess)
}

func (g *Gate) reject(ctx context.Context, sess auth.Session, outcome Outcome, msg string) (LoginResult, error) {
	if err := g.identities.SignOut(ctx, sess); err != nil {
		return LoginResult{}, fmt.Errorf("sign out after %s: %w", outcome, err)
	}
	g.log.Info("login rejected", zap.String("uid", sess.UID), zap.String("outcome", string(outcome)))
	return g.result(outcome, msg), nil
}

func (g *Gate) abort(ctx context.Context, sess auth.Session, cause error) error {
	if err := g.identities.SignOut(ctx, sess); err != nil {
		g.log.Error("sign out after failure", zap.String("uid", sess.UID), zap.Error(err))
	}
	return cause
}

func (g *Gate) result(outcome Outcome, msg string) LoginResult {
	if g.recorder != nil {
		g.recorder.LoginOutcome(string(outcome))
	}
	return LoginResult{Outcome: outcome, Message: msg}
}

// normalizeEmail lower-cases and trims an email the way profiles store it.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
