// Package api wires the management HTTP surface: admin auth, credential and
// group administration, swipe runs, and settings.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/swipedeck/swipedeck/internal/config"
	"github.com/swipedeck/swipedeck/internal/http/api/handlers"
	"github.com/swipedeck/swipedeck/internal/models"
	"github.com/swipedeck/swipedeck/internal/security"
	"github.com/swipedeck/swipedeck/internal/session"
	"github.com/swipedeck/swipedeck/internal/store"
	"github.com/swipedeck/swipedeck/internal/swipe"
	"github.com/swipedeck/swipedeck/internal/tinder"
	"gorm.io/gorm"
)

// Deps carries the shared components the route handlers need.
type Deps struct {
	DB            *gorm.DB
	JWT           config.JWTConfig
	Credentials   *store.CredentialStore
	Groups        *store.GroupStore
	SwipeSettings *store.SwipeSettingsStore
	Sessions      *session.Registry
	Engine        *swipe.Engine
	Phone         *tinder.PhoneAuth
}

// RegisterRoutes registers all routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWT, deps.Phone, deps.Credentials)
	r.POST("/v0/admin/login", authHandler.Login)

	authed := r.Group("/v0")
	authed.Use(adminAuthMiddleware(deps.DB, deps.JWT))

	authed.POST("/auth/otp/send", authHandler.SendOTP)
	authed.POST("/auth/otp/verify", authHandler.VerifyOTP)

	credentialHandler := handlers.NewCredentialHandler(deps.Credentials, deps.Sessions)
	authed.POST("/credentials", credentialHandler.Create)
	authed.GET("/credentials", credentialHandler.List)
	authed.DELETE("/credentials/:token", credentialHandler.Delete)

	groupHandler := handlers.NewGroupHandler(deps.Groups, deps.Sessions)
	authed.POST("/groups", groupHandler.Create)
	authed.GET("/groups", groupHandler.List)
	authed.DELETE("/groups/:name", groupHandler.Delete)
	authed.GET("/groups/:name/members", groupHandler.Members)
	authed.POST("/groups/:name/members", groupHandler.AddMember)
	authed.DELETE("/groups/:name/members/:token", groupHandler.RemoveMember)
	authed.POST("/groups/:name/bio", groupHandler.BroadcastBio)

	swipeHandler := handlers.NewSwipeHandler(deps.Sessions, deps.SwipeSettings, deps.Engine)
	authed.POST("/swipe/:token", swipeHandler.Run)

	settingHandler := handlers.NewSettingHandler(deps.DB, deps.SwipeSettings)
	authed.GET("/settings/swipe", settingHandler.GetSwipe)
	authed.PUT("/settings/swipe", settingHandler.PutSwipe)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Put)
}

func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}
