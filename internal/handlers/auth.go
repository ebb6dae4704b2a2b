package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skyquote/skyquote/internal/middleware"
	"github.com/skyquote/skyquote/internal/services"
	appErrors "github.com/skyquote/skyquote/pkg/errors"
	"github.com/skyquote/skyquote/pkg/response"
)

// AuthHandler manages the passwordless login flow.
type AuthHandler struct {
	magicLinks *services.MagicLinkService
}

func NewAuthHandler(magicLinks *services.MagicLinkService) *AuthHandler {
	return &AuthHandler{magicLinks: magicLinks}
}

type magicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /api/auth/magic-link
//
// Always answers 202 for well-formed requests, registered email or not, so
// the endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) RequestMagicLink(c *gin.Context) {
	var req magicLinkRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.magicLinks.Request(requestContext(c), req.Email)
	if err != nil && !errors.Is(err, services.ErrIdentityNotFound) {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"message": "If that email is registered, a sign-in link is on its way",
	})
}

// GET /auth/magic/:token
func (h *AuthHandler) ConsumeMagicLink(c *gin.Context) {
	session, err := h.magicLinks.Consume(requestContext(c), c.Param("token"))
	if err != nil {
		response.Error(c, mapServiceError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"identity": gin.H{
			"id":    session.Identity.ID,
			"email": session.Identity.Email,
			"role":  session.Identity.Role,
		},
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"identity_id": claims.Subject,
		"email":       claims.Email,
		"role":        claims.Role,
	})
}
