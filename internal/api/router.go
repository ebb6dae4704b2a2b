package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/skyquote/skyquote/internal/app"
	iauth "github.com/skyquote/skyquote/internal/auth"
	"github.com/skyquote/skyquote/internal/handlers"
	"github.com/skyquote/skyquote/internal/middleware"
	"github.com/skyquote/skyquote/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(
	db *gorm.DB,
	cfg *app.Config,
	jwt *iauth.JWTService,
	enquiries *services.EnquiryService,
	invitations *services.InvitationService,
	magicLinks *services.MagicLinkService,
) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if enquiries == nil || invitations == nil || magicLinks == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.NoRoute(middleware.NotFoundHandler)

	// Health endpoint (public)
	r.GET("/health", healthHandler(db))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	enquiryHandler := handlers.NewEnquiryHandler(enquiries, invitations)
	inviteHandler := handlers.NewInviteHandler(invitations)
	authHandler := handlers.NewAuthHandler(magicLinks)

	// Public intake and tokenised routes; the token itself is the credential
	r.POST("/api/enquiries", enquiryHandler.Create)
	r.GET("/invite/:token", inviteHandler.Open)
	r.POST("/invite/:token/decline", inviteHandler.Decline)
	r.POST("/api/auth/magic-link", authHandler.RequestMagicLink)
	r.GET("/auth/magic/:token", authHandler.ConsumeMagicLink)

	requireAuth := middleware.Auth(jwt)

	authed := r.Group("/api")
	authed.Use(requireAuth)
	authed.GET("/auth/me", authHandler.Me)

	// Admin lifecycle routes
	admin := authed.Group("/enquiries")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("", enquiryHandler.List)
		admin.GET("/:id", enquiryHandler.Get)
		admin.GET("/:id/events", enquiryHandler.Events)
		admin.POST("/:id/acknowledge", enquiryHandler.Acknowledge)
		admin.POST("/:id/close", enquiryHandler.Close)
		admin.POST("/:id/rounds", enquiryHandler.StartRound)
		admin.GET("/:id/rounds", enquiryHandler.Rounds)
	}

	return r, nil
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
	}
}
