package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/api/handlers"
	"github.com/framefold/timeline-engine/internal/api/middleware"
	"github.com/framefold/timeline-engine/internal/config"
	"github.com/framefold/timeline-engine/internal/events"
	"github.com/framefold/timeline-engine/internal/remote"
	"github.com/framefold/timeline-engine/internal/session"
)

func NewRouter(sess *session.Session, hub *events.Hub, tokens *remote.TokenStore, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CorsOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		// System endpoints
		system := api.Group("/system")
		{
			systemHandler := handlers.NewSystemHandler(cfg, sess, hub, logger)
			system.GET("/info", systemHandler.Info)
			system.GET("/status", systemHandler.Status)
		}

		// Auth endpoints
		authHandler := handlers.NewAuthHandler(tokens, sess, logger)
		api.POST("/auth/token", authHandler.SetToken)

		// Timeline endpoints
		tl := api.Group("/timeline")
		{
			timelineHandler := handlers.NewTimelineHandler(sess, cfg.Editor, logger)
			tl.GET("", timelineHandler.Get)
			tl.POST("/drop", timelineHandler.Drop)
			tl.POST("/undo", timelineHandler.Undo)
			tl.POST("/redo", timelineHandler.Redo)
			tl.POST("/reload", timelineHandler.Reload)

			// Segment endpoints
			segments := tl.Group("/segments")
			{
				segments.POST("/:segmentId/move", timelineHandler.Move)
				segments.POST("/:segmentId/split", timelineHandler.Split)
				segments.PUT("/:segmentId", timelineHandler.Update)
				segments.DELETE("/:segmentId", timelineHandler.Delete)
			}
		}

		// Render event stream
		api.GET("/events", hub.ServeWS)
	}

	return router
}
