package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActorType identifies who caused a state-affecting action.
type ActorType string

const (
	ActorSystem ActorType = "SYSTEM"
	ActorAdmin  ActorType = "ADMIN"
	ActorPilot  ActorType = "PILOT"
)

// EnquiryEventType enumerates the known event log entries.
type EnquiryEventType string

const (
	EventEnquiryCreated  EnquiryEventType = "enquiry.created"
	EventEnquiryAcked    EnquiryEventType = "enquiry.acknowledged"
	EventInvitesStarted  EnquiryEventType = "enquiry.invites_started"
	EventEnquiryClosed   EnquiryEventType = "enquiry.closed"
	EventInviteResponded EnquiryEventType = "invitation.responded"
)

// EnquiryEvent is an immutable, append-only audit row. Rows are never updated
// or deleted while the parent enquiry exists; they are the authoritative
// history, independent of the denormalised status column.
type EnquiryEvent struct {
	ID        string           `gorm:"primaryKey;type:uuid" json:"id"`
	EnquiryID string           `gorm:"type:uuid;not null;index" json:"enquiry_id"`
	ActorType ActorType        `gorm:"not null" json:"actor_type"`
	ActorID   string           `json:"actor_id,omitempty"`
	EventType EnquiryEventType `gorm:"not null;index" json:"event_type"`
	Payload   datatypes.JSON   `json:"payload"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

func (e *EnquiryEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
