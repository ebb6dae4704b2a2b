package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/skyquote/skyquote/internal/database/testutil"
	"github.com/skyquote/skyquote/internal/models"
	"github.com/skyquote/skyquote/pkg/mail"
)

type invitationFixture struct {
	db          *gorm.DB
	enquiries   *EnquiryService
	invitations *InvitationService
	enquiry     *models.Enquiry
	pilotA      *models.Pilot
	pilotB      *models.Pilot
	mailer      *captureMailer
	now         *time.Time
}

func newInvitationFixture(t *testing.T) *invitationFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t)

	current := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	enquiries, err := NewEnquiryService(db, WithEnquiryClock(clock))
	require.NoError(t, err)

	mailer := &captureMailer{}
	tokens := NewTokenService(WithTokenClock(clock))
	invitations, err := NewInvitationService(db, tokens, 72*time.Hour,
		WithInvitationClock(clock),
		WithInvitationMailer(mailer, "https://skyquote.example"))
	require.NoError(t, err)

	fixture := &invitationFixture{
		db:          db,
		enquiries:   enquiries,
		invitations: invitations,
		pilotA:      createPilot(t, db, "pilot.a@example.com"),
		pilotB:      createPilot(t, db, "pilot.b@example.com"),
		mailer:      mailer,
		now:         &current,
	}

	fixture.enquiry = createEnquiry(t, enquiries)
	_, err = enquiries.Transition(context.Background(), fixture.enquiry.ID, models.TriggerAcknowledge, SystemActor)
	require.NoError(t, err)

	return fixture
}

func (f *invitationFixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

// captureMailer records outbound messages instead of sending them.
type captureMailer struct {
	messages []mail.Message
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

// lastToken extracts the raw invitation token from the most recent email sent
// to the given address.
func (m *captureMailer) lastToken(t *testing.T, to string) string {
	t.Helper()

	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if len(msg.To) == 0 || msg.To[0] != to {
			continue
		}
		idx := strings.Index(msg.Body, "/invite/")
		require.GreaterOrEqual(t, idx, 0)
		rest := msg.Body[idx+len("/invite/"):]
		if end := strings.IndexAny(rest, "\r\n "); end >= 0 {
			rest = rest[:end]
		}
		return rest
	}
	t.Fatalf("no email captured for %s", to)
	return ""
}

func TestStartRoundFirstRound(t *testing.T) {
	f := newInvitationFixture(t)

	result, err := f.invitations.StartRound(context.Background(), f.enquiry.ID,
		[]string{f.pilotA.ID, f.pilotB.ID}, SystemActor)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Round)
	require.Len(t, result.Invitations, 2)
	assert.Empty(t, result.Reinvited)

	for _, invitation := range result.Invitations {
		assert.Equal(t, models.InvitationSent, invitation.Status)
		assert.Equal(t, 1, invitation.InviteRound)
	}

	// Digests landed on the rows
	var stored []models.PilotInvitation
	require.NoError(t, f.db.Find(&stored, "enquiry_id = ?", f.enquiry.ID).Error)
	require.Len(t, stored, 2)
	for _, invitation := range stored {
		assert.NotEmpty(t, invitation.TokenHash)
	}

	// First round moves the enquiry forward
	enquiry, err := f.enquiries.Get(context.Background(), f.enquiry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnquiryInvitesSent, enquiry.Status)

	// One round event with the pilot list
	events, err := f.enquiries.Events(context.Background(), f.enquiry.ID)
	require.NoError(t, err)
	var roundEvents int
	for _, event := range events {
		if event.EventType == models.EventInvitesStarted {
			roundEvents++
			payload, ok := models.DecodePayload(event).(models.RoundStartedPayload)
			require.True(t, ok)
			assert.Equal(t, 1, payload.Round)
			assert.Len(t, payload.PilotIDs, 2)
		}
	}
	assert.Equal(t, 1, roundEvents)
}

func TestStartRoundNumbersNeverRepeat(t *testing.T) {
	f := newInvitationFixture(t)

	first, err := f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotA.ID}, SystemActor)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Round)

	second, err := f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotB.ID}, SystemActor)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Round)

	// Expire round rows; the next round still advances past them
	f.advance(80 * time.Hour)
	_, err = f.invitations.ExpireStale(context.Background())
	require.NoError(t, err)

	third, err := f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotA.ID}, SystemActor)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Round)
}

func TestStartRoundRejectsActiveDuplicate(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotA.ID}, SystemActor)
	require.NoError(t, err)

	_, err = f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotA.ID}, SystemActor)
	assert.ErrorIs(t, err, ErrActiveInvitation)
}

func TestStartRoundStatusGuards(t *testing.T) {
	f := newInvitationFixture(t)

	// NEW enquiry: inviting before acknowledgement is rejected
	fresh := createEnquiry(t, f.enquiries)
	_, err := f.invitations.StartRound(context.Background(), fresh.ID, []string{f.pilotA.ID}, SystemActor)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// CLOSED enquiry: no further rounds
	_, err = f.enquiries.Transition(context.Background(), f.enquiry.ID, models.TriggerClose, SystemActor)
	require.NoError(t, err)
	_, err = f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotA.ID}, SystemActor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStartRoundUnknownPilot(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.invitations.StartRound(context.Background(), f.enquiry.ID,
		[]string{"00000000-0000-0000-0000-000000000000"}, SystemActor)
	assert.ErrorIs(t, err, ErrPilotNotFound)

	_, err = f.invitations.StartRound(context.Background(), f.enquiry.ID, nil, SystemActor)
	assert.ErrorIs(t, err, ErrNoPilots)
}

func TestExpireStaleIsIdempotent(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.invitations.StartRound(context.Background(), f.enquiry.ID,
		[]string{f.pilotA.ID, f.pilotB.ID}, SystemActor)
	require.NoError(t, err)

	// Nothing stale yet
	swept, err := f.invitations.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, swept)

	f.advance(73 * time.Hour)
	swept, err = f.invitations.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, swept)

	swept, err = f.invitations.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, swept)

	var statuses []models.InvitationStatus
	require.NoError(t, f.db.Model(&models.PilotInvitation{}).
		Where("enquiry_id = ?", f.enquiry.ID).
		Pluck("status", &statuses).Error)
	for _, status := range statuses {
		assert.Equal(t, models.InvitationExpired, status)
	}
}

func TestOpenMarksInvitationOpenedOnce(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotA.ID}, SystemActor)
	require.NoError(t, err)
	raw := f.mailer.lastToken(t, f.pilotA.Email)

	invitation, err := f.invitations.Open(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationOpened, invitation.Status)
	require.NotNil(t, invitation.OpenedAt)
	require.NotNil(t, invitation.Enquiry)
	assert.Equal(t, f.enquiry.ID, invitation.Enquiry.ID)

	// The link stays usable after viewing
	again, err := f.invitations.Open(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationOpened, again.Status)

	// Only the first open writes a response event
	events, err := f.enquiries.Events(context.Background(), f.enquiry.ID)
	require.NoError(t, err)
	var responses int
	for _, event := range events {
		if event.EventType == models.EventInviteResponded {
			responses++
		}
	}
	assert.Equal(t, 1, responses)
}

func TestDeclineConsumesToken(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotA.ID}, SystemActor)
	require.NoError(t, err)
	raw := f.mailer.lastToken(t, f.pilotA.Email)

	invitation, err := f.invitations.Decline(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationDeclined, invitation.Status)
	require.NotNil(t, invitation.OpenedAt) // declining implies the pilot saw it

	_, err = f.invitations.Decline(context.Background(), raw)
	assert.ErrorIs(t, err, ErrTokenConsumed)

	_, err = f.invitations.Open(context.Background(), raw)
	assert.ErrorIs(t, err, ErrTokenConsumed)

	payload := lastResponsePayload(t, f)
	assert.Equal(t, models.InvitationDeclined, payload.Response)
	assert.Equal(t, f.pilotA.ID, payload.PilotID)
}

func TestReinvitingDeclinerWarns(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotA.ID}, SystemActor)
	require.NoError(t, err)
	raw := f.mailer.lastToken(t, f.pilotA.Email)

	_, err = f.invitations.Decline(context.Background(), raw)
	require.NoError(t, err)

	// Declined is terminal, so the pilot may be invited again; callers get a warning
	result, err := f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotA.ID}, SystemActor)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Round)
	assert.Equal(t, []string{f.pilotA.ID}, result.Reinvited)
}

func TestExpiredInvitationLinkRejected(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotA.ID}, SystemActor)
	require.NoError(t, err)
	raw := f.mailer.lastToken(t, f.pilotA.Email)

	f.advance(73 * time.Hour)

	_, err = f.invitations.Open(context.Background(), raw)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = f.invitations.Decline(context.Background(), raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func lastResponsePayload(t *testing.T, f *invitationFixture) models.InviteResponsePayload {
	t.Helper()

	events, err := f.enquiries.Events(context.Background(), f.enquiry.ID)
	require.NoError(t, err)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].EventType != models.EventInviteResponded {
			continue
		}
		payload, ok := models.DecodePayload(events[i]).(models.InviteResponsePayload)
		require.True(t, ok)
		return payload
	}
	t.Fatal("no response event recorded")
	return models.InviteResponsePayload{}
}

func TestRoundsListing(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotA.ID}, SystemActor)
	require.NoError(t, err)
	_, err = f.invitations.StartRound(context.Background(), f.enquiry.ID, []string{f.pilotB.ID}, SystemActor)
	require.NoError(t, err)

	invitations, err := f.invitations.Rounds(context.Background(), f.enquiry.ID)
	require.NoError(t, err)
	require.Len(t, invitations, 2)
	assert.Equal(t, 1, invitations[0].InviteRound)
	assert.Equal(t, 2, invitations[1].InviteRound)
	require.NotNil(t, invitations[0].Pilot)
	assert.Equal(t, f.pilotA.ID, invitations[0].Pilot.ID)
}
