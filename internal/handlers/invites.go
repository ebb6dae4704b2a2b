package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skyquote/skyquote/internal/models"
	"github.com/skyquote/skyquote/internal/services"
	"github.com/skyquote/skyquote/pkg/response"
)

// InviteHandler serves the tokenised invitation links pilots receive by
// email. These routes are unauthenticated; the token is the credential.
type InviteHandler struct {
	invitations *services.InvitationService
}

func NewInviteHandler(invitations *services.InvitationService) *InviteHandler {
	return &InviteHandler{invitations: invitations}
}

// inviteView is the pilot-facing projection of an invitation. Requester
// contact details stay hidden until a pilot accepts through the ops team.
type inviteView struct {
	InvitationID string                  `json:"invitation_id"`
	Status       models.InvitationStatus `json:"status"`
	Round        int                     `json:"round"`
	Service      string                  `json:"service,omitempty"`
	SiteLocation string                  `json:"site_location,omitempty"`
	FlexibleDate bool                    `json:"flexible_dates,omitempty"`
	Details      string                  `json:"details,omitempty"`
}

// GET /invite/:token
func (h *InviteHandler) Open(c *gin.Context) {
	invitation, err := h.invitations.Open(requestContext(c), c.Param("token"))
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}
	response.Success(c, http.StatusOK, projectInvite(invitation))
}

// POST /invite/:token/decline
func (h *InviteHandler) Decline(c *gin.Context) {
	invitation, err := h.invitations.Decline(requestContext(c), c.Param("token"))
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}
	response.Success(c, http.StatusOK, projectInvite(invitation))
}

func projectInvite(invitation *models.PilotInvitation) inviteView {
	view := inviteView{
		InvitationID: invitation.ID,
		Status:       invitation.Status,
		Round:        invitation.InviteRound,
	}
	if invitation.Enquiry != nil {
		view.Service = invitation.Enquiry.Service
		view.SiteLocation = invitation.Enquiry.SiteLocation
		view.FlexibleDate = invitation.Enquiry.FlexibleDates
		view.Details = invitation.Enquiry.Details
	}
	return view
}
