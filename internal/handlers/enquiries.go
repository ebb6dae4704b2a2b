package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skyquote/skyquote/internal/middleware"
	"github.com/skyquote/skyquote/internal/models"
	"github.com/skyquote/skyquote/internal/services"
	"github.com/skyquote/skyquote/pkg/errors"
	"github.com/skyquote/skyquote/pkg/response"
)

// EnquiryHandler manages the public enquiry intake and the admin lifecycle
// endpoints.
type EnquiryHandler struct {
	enquiries   *services.EnquiryService
	invitations *services.InvitationService
}

func NewEnquiryHandler(enquiries *services.EnquiryService, invitations *services.InvitationService) *EnquiryHandler {
	return &EnquiryHandler{enquiries: enquiries, invitations: invitations}
}

type createEnquiryRequest struct {
	RequesterName  string `json:"requester_name" validate:"required,max=200"`
	RequesterEmail string `json:"requester_email" validate:"required,email"`
	RequesterPhone string `json:"requester_phone" validate:"max=40"`
	Service        string `json:"service" validate:"required,max=100"`
	SiteLocation   string `json:"site_location" validate:"required,max=300"`
	FlexibleDates  bool   `json:"flexible_dates"`
	Details        string `json:"details" validate:"max=5000"`
	ConsentContact bool   `json:"consent_contact"`
	ConsentMarket  bool   `json:"consent_marketing"`
	PolicyVersion  string `json:"policy_version" validate:"required,max=40"`
	SourceForm     string `json:"source_form" validate:"max=100"`
}

// POST /api/enquiries
func (h *EnquiryHandler) Create(c *gin.Context) {
	var req createEnquiryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if !req.ConsentContact {
		response.Error(c, errors.NewBadRequest("consent to be contacted is required"))
		return
	}

	enquiry, err := h.enquiries.Create(requestContext(c), services.CreateEnquiryInput{
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		RequesterPhone: req.RequesterPhone,
		Service:        req.Service,
		SiteLocation:   req.SiteLocation,
		FlexibleDates:  req.FlexibleDates,
		Details:        req.Details,
		ConsentContact: req.ConsentContact,
		ConsentMarket:  req.ConsentMarket,
		PolicyVersion:  req.PolicyVersion,
		SourceForm:     req.SourceForm,
	})
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusCreated, enquiry)
}

// GET /api/enquiries
func (h *EnquiryHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)
	status := models.EnquiryStatus(c.Query("status"))

	results, total, err := h.enquiries.List(requestContext(c), status, page, perPage)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	totalPages := 0
	if perPage > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	response.SuccessWithMeta(c, http.StatusOK, results, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

// GET /api/enquiries/:id
func (h *EnquiryHandler) Get(c *gin.Context) {
	enquiry, err := h.enquiries.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}
	response.Success(c, http.StatusOK, enquiry)
}

// GET /api/enquiries/:id/events
func (h *EnquiryHandler) Events(c *gin.Context) {
	enquiryID := c.Param("id")
	if _, err := h.enquiries.Get(requestContext(c), enquiryID); err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	events, err := h.enquiries.Events(requestContext(c), enquiryID)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}
	response.Success(c, http.StatusOK, events)
}

// POST /api/enquiries/:id/acknowledge
func (h *EnquiryHandler) Acknowledge(c *gin.Context) {
	h.transition(c, models.TriggerAcknowledge)
}

// POST /api/enquiries/:id/close
func (h *EnquiryHandler) Close(c *gin.Context) {
	h.transition(c, models.TriggerClose)
}

func (h *EnquiryHandler) transition(c *gin.Context, trigger models.EnquiryTrigger) {
	enquiry, err := h.enquiries.Transition(requestContext(c), c.Param("id"), trigger, adminActor(c))
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}
	response.Success(c, http.StatusOK, enquiry)
}

type startRoundRequest struct {
	PilotIDs []string `json:"pilot_ids" validate:"required,min=1,dive,uuid4"`
}

// POST /api/enquiries/:id/rounds
func (h *EnquiryHandler) StartRound(c *gin.Context) {
	var req startRoundRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.invitations.StartRound(requestContext(c), c.Param("id"), req.PilotIDs, adminActor(c))
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"round":               result.Round,
		"invitations":         result.Invitations,
		"reinvited_decliners": result.Reinvited,
	})
}

// GET /api/enquiries/:id/rounds
func (h *EnquiryHandler) Rounds(c *gin.Context) {
	enquiryID := c.Param("id")
	if _, err := h.enquiries.Get(requestContext(c), enquiryID); err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	invitations, err := h.invitations.Rounds(requestContext(c), enquiryID)
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}
	response.Success(c, http.StatusOK, invitations)
}

func adminActor(c *gin.Context) services.Actor {
	actor := services.Actor{Type: models.ActorAdmin}
	if claims, ok := middleware.ClaimsFrom(c); ok {
		actor.ID = claims.Subject
	}
	return actor
}
