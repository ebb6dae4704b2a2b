package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IdentityRole identifies which principal type an identity resolves to.
type IdentityRole string

const (
	RoleAdmin      IdentityRole = "ADMIN"
	RoleDronePilot IdentityRole = "DRONE_PILOT"
)

// Valid reports whether the role is one of the known principal roles.
func (r IdentityRole) Valid() bool {
	return r == RoleAdmin || r == RoleDronePilot
}

// ErrIdentityShape guards the admin/pilot mutual-exclusivity invariant: an
// identity must reference exactly one principal, matching its role.
var ErrIdentityShape = errors.New("identity: exactly one of admin_id/pilot_id must be set, matching role")

// UserIdentity maps a lowercased email address to exactly one principal.
type UserIdentity struct {
	BaseModel

	Email   string       `gorm:"uniqueIndex;not null" json:"email"`
	Role    IdentityRole `gorm:"not null" json:"role"`
	AdminID *string      `gorm:"type:uuid;uniqueIndex" json:"admin_id,omitempty"`
	PilotID *string      `gorm:"type:uuid;uniqueIndex" json:"pilot_id,omitempty"`

	Admin *Admin `gorm:"constraint:OnDelete:CASCADE" json:"admin,omitempty"`
	Pilot *Pilot `gorm:"constraint:OnDelete:CASCADE" json:"pilot,omitempty"`
}

// BeforeSave normalises the email and enforces the one-principal invariant on
// every write path, not just service-level callers.
func (i *UserIdentity) BeforeSave(tx *gorm.DB) error {
	i.Email = strings.ToLower(strings.TrimSpace(i.Email))

	switch i.Role {
	case RoleAdmin:
		if i.AdminID == nil || i.PilotID != nil {
			return ErrIdentityShape
		}
	case RoleDronePilot:
		if i.PilotID == nil || i.AdminID != nil {
			return ErrIdentityShape
		}
	default:
		return ErrIdentityShape
	}
	return nil
}

// PrincipalID returns the identifier of the owning principal.
func (i *UserIdentity) PrincipalID() string {
	switch i.Role {
	case RoleAdmin:
		if i.AdminID != nil {
			return *i.AdminID
		}
	case RoleDronePilot:
		if i.PilotID != nil {
			return *i.PilotID
		}
	}
	return ""
}
