package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/config"
	"github.com/framefold/timeline-engine/internal/events"
	"github.com/framefold/timeline-engine/internal/session"
)

type SystemHandler struct {
	config  *config.Config
	session *session.Session
	hub     *events.Hub
	logger  *zap.Logger
}

func NewSystemHandler(cfg *config.Config, sess *session.Session, hub *events.Hub, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		config:  cfg,
		session: sess,
		hub:     hub,
		logger:  logger,
	}
}

func (h *SystemHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "Framefold Timeline Engine",
		"version": "1.0.0",
		"project": h.config.Remote.ProjectID,
		"remote":  h.config.Remote.BaseURL,
	})
}

func (h *SystemHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"totalDuration": h.session.TotalDuration(),
		"blocked":       h.session.Blocked(),
		"renderClients": h.hub.ClientCount(),
	})
}
