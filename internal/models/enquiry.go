package models

import "time"

// EnquiryStatus is the denormalised lifecycle position of an enquiry. The
// authoritative history lives in the enquiry_events table.
type EnquiryStatus string

const (
	EnquiryNew         EnquiryStatus = "NEW"
	EnquiryAckSent     EnquiryStatus = "ACK_SENT"
	EnquiryInvitesSent EnquiryStatus = "INVITES_SENT"
	EnquiryClosed      EnquiryStatus = "CLOSED"
)

// EnquiryTrigger names the commands accepted by the enquiry state machine.
type EnquiryTrigger string

const (
	TriggerAcknowledge   EnquiryTrigger = "ACKNOWLEDGE"
	TriggerBeginInviting EnquiryTrigger = "BEGIN_INVITING"
	TriggerClose         EnquiryTrigger = "CLOSE"
)

// enquiryTransitions is the closed transition table. Any edge absent here is
// invalid; there is no way to move backwards along the progression.
var enquiryTransitions = map[EnquiryStatus]map[EnquiryTrigger]EnquiryStatus{
	EnquiryNew: {
		TriggerAcknowledge: EnquiryAckSent,
		TriggerClose:       EnquiryClosed,
	},
	EnquiryAckSent: {
		TriggerBeginInviting: EnquiryInvitesSent,
		TriggerClose:         EnquiryClosed,
	},
	EnquiryInvitesSent: {
		TriggerClose: EnquiryClosed,
	},
}

// NextStatus resolves the transition table for a trigger applied at the given
// status. ok is false for any edge not present in the table.
func NextStatus(current EnquiryStatus, trigger EnquiryTrigger) (EnquiryStatus, bool) {
	next, ok := enquiryTransitions[current][trigger]
	return next, ok
}

// Terminal reports whether the status accepts no further transitions.
func (s EnquiryStatus) Terminal() bool {
	return s == EnquiryClosed
}

// Enquiry is one client request for drone survey work. The requester is not
// an authenticated principal; contact details are captured verbatim from the
// submission form.
type Enquiry struct {
	BaseModel

	RequesterName  string `gorm:"not null" json:"requester_name"`
	RequesterEmail string `gorm:"index;not null" json:"requester_email"`
	RequesterPhone string `json:"requester_phone"`
	Service        string `gorm:"index;not null" json:"service"`
	SiteLocation   string `gorm:"not null" json:"site_location"`
	FlexibleDates  bool   `json:"flexible_dates"`
	Details        string `json:"details"`
	ConsentContact bool   `json:"consent_contact"`
	ConsentMarket  bool   `json:"consent_marketing"`
	PolicyVersion  string `json:"policy_version"`
	SourceForm     string `gorm:"index" json:"source_form"`

	Status   EnquiryStatus `gorm:"index;not null;default:NEW" json:"status"`
	ClosedAt *time.Time    `json:"closed_at"`

	Events      []EnquiryEvent    `gorm:"constraint:OnDelete:CASCADE" json:"events,omitempty"`
	Invitations []PilotInvitation `gorm:"constraint:OnDelete:CASCADE" json:"invitations,omitempty"`
}
