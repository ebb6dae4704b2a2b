package models

import "time"

// MagicLink is a single-use passwordless login token belonging to one
// identity. Only the SHA-256 digest of the raw token is stored.
type MagicLink struct {
	BaseModel

	IdentityID string     `gorm:"type:uuid;not null;index" json:"identity_id"`
	TokenHash  string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	UsedAt     *time.Time `json:"used_at"`

	Identity *UserIdentity `gorm:"constraint:OnDelete:CASCADE" json:"identity,omitempty"`
}

// TableName keeps the persisted name aligned with the auth-prefixed schema.
func (MagicLink) TableName() string {
	return "auth_magic_links"
}
