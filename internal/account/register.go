package account

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"portal/internal/auth"
)

// MaxPhotoBytes bounds the decoded size of a registration photo.
const MaxPhotoBytes = 2 << 20

// Validation failures, all detected before any identity or database call.
var (
	ErrRoleRequired   = errors.New("please choose an account type first")
	ErrRoleNotAllowed = errors.New("this account type cannot be registered from the public form")
	ErrNameRequired   = errors.New("name is required")
	ErrEmailRequired  = errors.New("a valid email address is required")
	ErrWeakPassword   = errors.New("password must be at least 8 characters and contain an upper-case letter, a lower-case letter and a digit")
	ErrPhoneRequired  = errors.New("phone number is required")
	ErrPhotoInvalid   = errors.New("photo must be a base64 image data URL")
	ErrPhotoTooLarge  = errors.New("photo must be smaller than 2 MB")
)

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	for _, v := range []error{
		ErrRoleRequired, ErrRoleNotAllowed, ErrNameRequired, ErrEmailRequired,
		ErrWeakPassword, ErrPhoneRequired, ErrPhotoInvalid, ErrPhotoTooLarge,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// ProfileWriter persists new profiles.
type ProfileWriter interface {
	CreateProfile(ctx context.Context, p Profile) error
}

// CodeIssuer generates access codes.
type CodeIssuer interface {
	Generate() (string, error)
}

// AvatarQueue accepts photos for asynchronous upload.
type AvatarQueue interface {
	EnqueueAvatar(ctx context.Context, uid, dataURL string) error
}

// ChangeNotifier is told when a collection changed.
type ChangeNotifier interface {
	Changed(ctx context.Context, collection string) error
}

// RegistrationRecorder observes successful registrations.
type RegistrationRecorder interface {
	Registered(role string)
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     string
	Stage    string
	Subject  string
	Photo    string
}

// Registration is returned once; it is the only place the access code is shown.
type Registration struct {
	Profile    Profile `json:"profile"`
	AccessCode string  `json:"accessCode"`
}

// Registrar creates accounts.
type Registrar struct {
	identities   Identities
	profiles     ProfileWriter
	codes        CodeIssuer
	avatars      AvatarQueue
	changes      ChangeNotifier
	recorder     RegistrationRecorder
	defaultPhoto string
	log          *zap.Logger
	now          func() time.Time
}

// RegistrarDeps groups the registrar's collaborators. Avatars, Changes and
// Recorder may be nil.
type RegistrarDeps struct {
	Identities   Identities
	Profiles     ProfileWriter
	Codes        CodeIssuer
	Avatars      AvatarQueue
	Changes      ChangeNotifier
	Recorder     RegistrationRecorder
	DefaultPhoto string
	Log          *zap.Logger
}

// NewRegistrar wires a registrar.
func NewRegistrar(d RegistrarDeps) *Registrar {
	return &Registrar{
		identities:   d.Identities,
		profiles:     d.Profiles,
		codes:        d.Codes,
		avatars:      d.Avatars,
		changes:      d.Changes,
		recorder:     d.Recorder,
		defaultPhoto: d.DefaultPhoto,
		log:          d.Log,
		now:          time.Now,
	}
}

// Register handles the public form. The new account is pending and its
// session is signed out before returning.
func (r *Registrar) Register(ctx context.Context, in RegisterInput) (Registration, error) {
	role, err := validate(in, false)
	if err != nil {
		return Registration{}, err
	}
	return r.create(ctx, in, role, StatusPending)
}

// CreateByAdmin lets an administrator open an account of any role; it is active at once.
func (r *Registrar) CreateByAdmin(ctx context.Context, in RegisterInput) (Registration, error) {
	role, err := validate(in, true)
	if err != nil {
		return Registration{}, err
	}
	return r.create(ctx, in, role, StatusActive)
}

// AddStudent records a student entered by hand at the secretary office. Such
// profiles have no identity and are active immediately.
func (r *Registrar) AddStudent(ctx context.Context, secretaryUID string, in RegisterInput) (Registration, error) {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	if name == "" {
		return Registration{}, ErrNameRequired
	}
	if phone == "" {
		return Registration{}, ErrPhoneRequired
	}
	code, err := r.codes.Generate()
	if err != nil {
		return Registration{}, err
	}
	now := r.now().UTC()
	p := Profile{
		UID:          newDocumentID(),
		Name:         name,
		Phone:        phone,
		Role:         RoleStudent,
		AccessCode:   code,
		Status:       StatusActive,
		Stage:        orDefault(in.Stage, DefaultStage),
		Subject:      orDefault(in.Subject, DefaultSubject),
		PhotoURL:     r.defaultPhoto,
		RegisteredBy: secretaryUID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.profiles.CreateProfile(ctx, p); err != nil {
		return Registration{}, fmt.Errorf("create profile: %w", err)
	}
	r.afterCreate(ctx, p)
	return Registration{Profile: p, AccessCode: code}, nil
}

func (r *Registrar) create(ctx context.Context, in RegisterInput, role Role, status Status) (Registration, error) {
	sess, err := r.identities.CreateIdentity(ctx, in.Email, in.Password)
	if err != nil {
		return Registration{}, err
	}
	// The account must not be usable before activation.
	if err := r.identities.SignOut(ctx, sess); err != nil {
		r.log.Error("sign out new identity", zap.String("uid", sess.UID), zap.Error(err))
	}

	code, err := r.codes.Generate()
	if err != nil {
		r.rollback(ctx, sess.UID)
		return Registration{}, err
	}

	now := r.now().UTC()
	p := Profile{
		UID:        sess.UID,
		Name:       strings.TrimSpace(in.Name),
		Email:      normalizeEmail(in.Email),
		Phone:      orDefault(in.Phone, DefaultPhone),
		Role:       role,
		AccessCode: code,
		Status:     status,
		PhotoURL:   r.defaultPhoto,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if role == RoleStudent {
		p.Stage = orDefault(in.Stage, DefaultStage)
		p.Subject = orDefault(in.Subject, DefaultSubject)
	}

	if err := r.profiles.CreateProfile(ctx, p); err != nil {
		r.rollback(ctx, sess.UID)
		return Registration{}, fmt.Errorf("create profile: %w", err)
	}

	if in.Photo != "" && r.avatars != nil {
		if err := r.avatars.EnqueueAvatar(ctx, p.UID, in.Photo); err != nil {
			r.log.Warn("enqueue avatar", zap.String("uid", p.UID), zap.Error(err))
		}
	}
	r.afterCreate(ctx, p)
	return Registration{Profile: p, AccessCode: code}, nil
}

func (r *Registrar) afterCreate(ctx context.Context, p Profile) {
	if r.recorder != nil {
		r.recorder.Registered(string(p.Role))
	}
	if r.changes != nil {
		if err := r.changes.Changed(ctx, "users"); err != nil {
			r.log.Warn("publish users change", zap.Error(err))
		}
	}
	r.log.Info("profile created",
		zap.String("uid", p.UID),
		zap.String("role", string(p.Role)),
		zap.String("status", string(p.Status)))
}

func (r *Registrar) rollback(ctx context.Context, uid string) {
	if err := r.identities.DeleteIdentity(ctx, uid); err != nil {
		r.log.Error("roll back identity", zap.String("uid", uid), zap.Error(err))
	}
}

func validate(in RegisterInput, byAdmin bool) (Role, error) {
	if strings.TrimSpace(in.Role) == "" {
		return "", ErrRoleRequired
	}
	role, ok := ParseRole(strings.TrimSpace(in.Role))
	if !ok || (role == RoleAdmin && !byAdmin) {
		return "", ErrRoleNotAllowed
	}
	if strings.TrimSpace(in.Name) == "" {
		return "", ErrNameRequired
	}
	// Display-name forms such as "Omar <omar@school.test>" parse but are not bare addresses.
	email := strings.TrimSpace(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", ErrEmailRequired
	}
	if !auth.StrongPassword(in.Password) {
		return "", ErrWeakPassword
	}
	if in.Photo != "" {
		if err := validatePhoto(in.Photo); err != nil {
			return "", err
		}
	}
	return role, nil
}

func validatePhoto(dataURL string) error {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return ErrPhotoInvalid
	}
	i := strings.Index(dataURL, ";base64,")
	if i < 0 {
		return ErrPhotoInvalid
	}
	payload := dataURL[i+len(";base64,"):]
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxPhotoBytes+2 {
		return ErrPhotoTooLarge
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return ErrPhotoInvalid
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
