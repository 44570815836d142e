package account

import "time"

// Role decides which dashboard a profile sees and what it may change.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSecretary Role = "secretary"
	RoleStudent   Role = "student"
)

// ParseRole returns the role named by s, or false if s is not a portal role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleAdmin, RoleSecretary, RoleStudent:
		return r, true
	}
	return "", false
}

// Label is the human name of the portal a role belongs to.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "administration"
	case RoleSecretary:
		return "secretary office"
	case RoleStudent:
		return "students"
	}
	return "unknown"
}

// Status is the activation state of a profile.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

const (
	DefaultPhone   = "not provided"
	DefaultStage   = "unspecified"
	DefaultSubject = "general"
)

// Profile is the per-account document shared by every dashboard.
type Profile struct {
	UID                  string    `json:"uid"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	Phone                string    `json:"phone"`
	Role                 Role      `json:"role"`
	AccessCode           string    `json:"-"`
	Status               Status    `json:"status"`
	Points               int       `json:"points"`
	CanApproveAttendance bool      `json:"canApproveAttendance"`
	Stage                string    `json:"stage,omitempty"`
	Subject              string    `json:"subject,omitempty"`
	PhotoURL             string    `json:"photoURL"`
	RegisteredBy         string    `json:"registeredBy,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// FirstName is the greeting name shown after login.
func (p Profile) FirstName() string {
	for i, r := range p.Name {
		if r == ' ' {
			return p.Name[:i]
		}
	}
	return p.Name
}

// CanLogin reports whether the status admits a login for this role.
func (p Profile) CanLogin() bool {
	switch p.Status {
	case StatusActive:
		return true
	case StatusPending:
		return p.Role == RoleAdmin
	}
	return false
}
