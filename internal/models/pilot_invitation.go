package models

import "time"

// InvitationStatus tracks one pilot invitation independently of the parent
// enquiry's status.
type InvitationStatus string

const (
	InvitationSent     InvitationStatus = "SENT"
	InvitationOpened   InvitationStatus = "OPENED"
	InvitationDeclined InvitationStatus = "DECLINED"
	InvitationExpired  InvitationStatus = "EXPIRED"
	InvitationAccepted InvitationStatus = "ACCEPTED"
)

// Active reports whether the invitation still awaits a final outcome. At most
// one active invitation may exist per (pilot, enquiry) pair at a time.
func (s InvitationStatus) Active() bool {
	return s == InvitationSent || s == InvitationOpened
}

// PilotInvitation belongs to exactly one enquiry and references exactly one
// pilot. A pilot may be invited again in later rounds; round numbers are
// monotonically increasing per enquiry and never reused.
type PilotInvitation struct {
	BaseModel

	EnquiryID   string           `gorm:"type:uuid;not null;index:idx_invitations_enquiry" json:"enquiry_id"`
	PilotID     string           `gorm:"type:uuid;not null;index" json:"pilot_id"`
	InviteRound int              `gorm:"not null" json:"invite_round"`
	TokenHash   string           `gorm:"uniqueIndex;not null" json:"-"`
	Status      InvitationStatus `gorm:"index;not null;default:SENT" json:"status"`
	SentAt      time.Time        `gorm:"index" json:"sent_at"`
	OpenedAt    *time.Time       `json:"opened_at"`

	Enquiry *Enquiry `json:"enquiry,omitempty"`
	Pilot   *Pilot   `json:"pilot,omitempty"`
}
