// Package admin mounts the operator HTTP API.
package admin

import (
	"net/http"

	"github.com/giftgate/giftbot/internal/http/api/admin/handlers"
	"github.com/giftgate/giftbot/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the collaborators behind the admin API.
type Deps struct {
	DB        *gorm.DB
	Tokens    handlers.TokenPool
	Receipts  handlers.ReceiptLister
	JWTSecret string
	// FallbackAdmins are the configured admin ids.
	FallbackAdmins []int64
}

// RegisterAdminRoutes mounts /v0/admin. Nothing is mounted without a JWT secret.
func RegisterAdminRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil || deps.JWTSecret == "" {
		return
	}

	admin := r.Group("/v0/admin")
	admin.Use(adminAuthMiddleware(deps.JWTSecret))

	tokenHandler := handlers.NewTokenHandler(deps.Tokens)
	admin.POST("/tokens", tokenHandler.Add)
	admin.GET("/tokens/available", tokenHandler.Available)
	admin.GET("/tokens/count", tokenHandler.Count)

	receiptHandler := handlers.NewReceiptHandler(deps.Receipts)
	admin.GET("/receipts/:user_id", receiptHandler.ListByUser)

	adminsHandler := handlers.NewAdminsHandler(deps.DB, deps.FallbackAdmins)
	admin.GET("/settings/admins", adminsHandler.Get)
	admin.PUT("/settings/admins", adminsHandler.Put)
}

// adminAuthMiddleware validates admin JWTs.
func adminAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token, ok := security.BearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, errJWT := security.ParseAdminToken(secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("adminName", claims.Name)
		c.Next()
	}
}
