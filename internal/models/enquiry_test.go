package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		current EnquiryStatus
		trigger EnquiryTrigger
		want    EnquiryStatus
		ok      bool
	}{
		{EnquiryNew, TriggerAcknowledge, EnquiryAckSent, true},
		{EnquiryNew, TriggerClose, EnquiryClosed, true},
		{EnquiryNew, TriggerBeginInviting, "", false},
		{EnquiryAckSent, TriggerBeginInviting, EnquiryInvitesSent, true},
		{EnquiryAckSent, TriggerClose, EnquiryClosed, true},
		{EnquiryAckSent, TriggerAcknowledge, "", false},
		{EnquiryInvitesSent, TriggerClose, EnquiryClosed, true},
		{EnquiryInvitesSent, TriggerAcknowledge, "", false},
		{EnquiryInvitesSent, TriggerBeginInviting, "", false},
		{EnquiryClosed, TriggerAcknowledge, "", false},
		{EnquiryClosed, TriggerBeginInviting, "", false},
		{EnquiryClosed, TriggerClose, "", false},
	}

	for _, tc := range tests {
		next, ok := NextStatus(tc.current, tc.trigger)
		assert.Equal(t, tc.ok, ok, "%s + %s", tc.current, tc.trigger)
		if tc.ok {
			assert.Equal(t, tc.want, next)
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, EnquiryClosed.Terminal())
	assert.False(t, EnquiryNew.Terminal())
	assert.False(t, EnquiryAckSent.Terminal())
	assert.False(t, EnquiryInvitesSent.Terminal())
}

func TestInvitationStatusActive(t *testing.T) {
	assert.True(t, InvitationSent.Active())
	assert.True(t, InvitationOpened.Active())
	assert.False(t, InvitationDeclined.Active())
	assert.False(t, InvitationExpired.Active())
	assert.False(t, InvitationAccepted.Active())
}
