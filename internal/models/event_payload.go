package models

import "encoding/json"

// Event payloads are stored as JSON but decode into a closed set of shapes
// keyed by event type. Rows written by older deployments fall back to
// UnknownPayload rather than failing the read.

// StatusChangePayload records a state machine transition.
type StatusChangePayload struct {
	From    EnquiryStatus  `json:"from"`
	To      EnquiryStatus  `json:"to"`
	Trigger EnquiryTrigger `json:"trigger"`
}

// RoundStartedPayload records an invitation round being issued.
type RoundStartedPayload struct {
	Round     int      `json:"round"`
	PilotIDs  []string `json:"pilot_ids"`
	Reinvited []string `json:"reinvited_decliners,omitempty"`
}

// InviteResponsePayload records a pilot acting on an invitation link.
type InviteResponsePayload struct {
	InvitationID string           `json:"invitation_id"`
	PilotID      string           `json:"pilot_id"`
	Response     InvitationStatus `json:"response"`
}

// UnknownPayload preserves event payloads whose type is not recognised.
type UnknownPayload struct {
	EventType EnquiryEventType
	Raw       json.RawMessage
}

// DecodePayload returns the typed payload for an event, or UnknownPayload for
// unrecognised or malformed rows.
func DecodePayload(e EnquiryEvent) any {
	raw := []byte(e.Payload)
	switch e.EventType {
	case EventEnquiryCreated, EventEnquiryAcked, EventEnquiryClosed:
		var p StatusChangePayload
		if err := json.Unmarshal(raw, &p); err == nil && p.To != "" {
			return p
		}
	case EventInvitesStarted:
		var p RoundStartedPayload
		if err := json.Unmarshal(raw, &p); err == nil && p.Round > 0 {
			return p
		}
		var sc StatusChangePayload
		if err := json.Unmarshal(raw, &sc); err == nil && sc.To != "" {
			return sc
		}
	case EventInviteResponded:
		var p InviteResponsePayload
		if err := json.Unmarshal(raw, &p); err == nil && p.InvitationID != "" {
			return p
		}
	}
	return UnknownPayload{EventType: e.EventType, Raw: json.RawMessage(raw)}
}
