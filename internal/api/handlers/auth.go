package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/remote"
	"github.com/framefold/timeline-engine/internal/session"
)

type AuthHandler struct {
	tokens  *remote.TokenStore
	session *session.Session
	logger  *zap.Logger
}

func NewAuthHandler(tokens *remote.TokenStore, sess *session.Session, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		tokens:  tokens,
		session: sess,
		logger:  logger,
	}
}

// SetToken installs a fresh bearer token and resumes persistence if the
// session was blocked on an expired one
func (h *AuthHandler) SetToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.tokens.Set(req.Token)
	h.session.Unblock()
	h.logger.Info("Bearer token replaced, persistence resumed")

	c.JSON(http.StatusOK, gin.H{"blocked": h.session.Blocked()})
}
