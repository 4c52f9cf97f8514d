package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pillsreminder/internal/auth"
	"pillsreminder/internal/models"
	"pillsreminder/internal/services"
	"pillsreminder/internal/telegram"
	"pillsreminder/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Reporting is what the dashboard API reads
type Reporting interface {
	Snapshot(ctx context.Context) (*models.Snapshot, error)
	UserSnapshot(ctx context.Context, userID string) (*models.UserSnapshot, error)
}

// Handlers serves the Telegram webhook and the dashboard API
type Handlers struct {
	reporting Reporting
	mgmt      *services.Management
	ack       *services.Acknowledger
	tracker   *services.Tracker
	updates   telegram.Handler
	log       zerolog.Logger
}

func New(reporting Reporting, mgmt *services.Management, ack *services.Acknowledger, tracker *services.Tracker, updates telegram.Handler, log zerolog.Logger) *Handlers {
	return &Handlers{
		reporting: reporting,
		mgmt:      mgmt,
		ack:       ack,
		tracker:   tracker,
		updates:   updates,
		log:       log.With().Str("component", "http").Logger(),
	}
}

// RouterConfig selects which surfaces are mounted
type RouterConfig struct {
	// WebhookSecret mounts POST /telegram/webhook when non-empty
	WebhookSecret string
	// JWTSecret mounts the /api group when non-empty
	JWTSecret string
}

// NewRouter builds the gin engine
func (h *Handlers) NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestLogger(h.log))
	router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", HealthHandler)

	if cfg.WebhookSecret != "" {
		router.POST("/telegram/webhook", h.Webhook(cfg.WebhookSecret))
	}

	if cfg.JWTSecret != "" {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
		corsCfg.MaxAge = 12 * time.Hour

		api := router.Group("/api")
		api.Use(cors.New(corsCfg), auth.AuthMiddleware(cfg.JWTSecret))
		{
			api.GET("/snapshot", h.GetSnapshot)
			api.GET("/outstanding", h.GetOutstanding)
			api.GET("/users/:user_id/snapshot", h.GetUserSnapshot)
			api.GET("/users/:user_id/history", h.GetUserHistory)
			api.GET("/users/:user_id/archive", h.GetUserArchive)
			api.POST("/users/:user_id/reminders/:reminder_id/slots/:slot/ack", h.Acknowledge)
		}
	}
	return router
}

// HealthHandler is a simple health check endpoint
func HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// handleError logs err and maps service errors to a status
func (h *Handlers) handleError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrReminderNotFound),
		errors.Is(err, services.ErrArchiveNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
