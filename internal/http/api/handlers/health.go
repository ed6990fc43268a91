package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	internalsettings "github.com/swipedeck/swipedeck/internal/settings"
	"gorm.io/gorm"
)

// HealthHandler reports process and database liveness.
type HealthHandler struct {
	db *gorm.DB // Database handle for the ping check.
}

// NewHealthHandler constructs a health handler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz pings the database and reports service health.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if h.db != nil {
		sqlDB, errDB := h.db.DB()
		if errDB != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"service":             siteName(),
		"settings_updated_at": internalsettings.DBConfigUpdatedAt(),
	})
}

func siteName() string {
	raw, ok := internalsettings.DBConfigValue(internalsettings.SiteNameKey)
	if !ok {
		return internalsettings.DefaultSiteName
	}
	var name string
	if errUnmarshal := json.Unmarshal(raw, &name); errUnmarshal != nil || name == "" {
		return internalsettings.DefaultSiteName
	}
	return name
}
