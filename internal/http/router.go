// Package http builds the gin engine serving health checks, the Telegram webhook and the
// admin API.
package http

import (
	"net/http"
	"time"

	"github.com/giftgate/giftbot/internal/http/api/admin"
	"github.com/giftgate/giftbot/internal/http/api/admin/handlers"
	"github.com/giftgate/giftbot/internal/ingest"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Routes configures NewRouter.
type Routes struct {
	DB *gorm.DB
	// WebhookPath mounts the push endpoint when non-empty.
	WebhookPath   string
	WebhookSecret string
	Sink          ingest.Enqueuer
	Admin         admin.Deps
}

// NewRouter builds the engine.
func NewRouter(routes Routes) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogMiddleware())

	mode := "polling"
	if routes.WebhookPath != "" {
		mode = "webhook"
	}
	health := handlers.NewHealthHandler(routes.DB, mode)
	engine.GET("/healthz", health.Healthz)

	if routes.WebhookPath != "" && routes.Sink != nil {
		engine.POST(routes.WebhookPath, ingest.WebhookHandler(routes.Sink, routes.WebhookSecret))
	}

	adminDeps := routes.Admin
	if adminDeps.DB == nil {
		adminDeps.DB = routes.DB
	}
	admin.RegisterAdminRoutes(engine, adminDeps)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return engine
}

// requestLogMiddleware logs one line per request except health checks.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("http request")
			return
		}
		entry.Debug("http request")
	}
}
