package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/swipedeck/swipedeck/internal/db"
	"github.com/swipedeck/swipedeck/internal/models"
	internalsettings "github.com/swipedeck/swipedeck/internal/settings"
	"github.com/swipedeck/swipedeck/internal/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingHandler manages the swipe settings singleton and raw settings rows.
type SettingHandler struct {
	db            *gorm.DB // Database handle for settings rows.
	swipeSettings *store.SwipeSettingsStore
}

// NewSettingHandler constructs a settings handler.
func NewSettingHandler(conn *gorm.DB, swipeSettings *store.SwipeSettingsStore) *SettingHandler {
	return &SettingHandler{db: conn, swipeSettings: swipeSettings}
}

// GetSwipe returns the swipe routine configuration.
func (h *SettingHandler) GetSwipe(c *gin.Context) {
	setting, errLoad := h.swipeSettings.Load(c.Request.Context())
	if errLoad != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load swipe settings failed"})
		return
	}
	c.JSON(http.StatusOK, formatSwipeSetting(setting))
}

type swipeSettingRequest struct {
	StartHour      int     `json:"start_hour"`       // First active hour, inclusive.
	EndHour        int     `json:"end_hour"`         // Last active hour, inclusive.
	LikesPerDay    int     `json:"likes_per_day"`    // Daily like quota.
	LeftSwipeRatio float64 `json:"left_swipe_ratio"` // Probability of passing a profile.
}

// PutSwipe replaces the swipe routine configuration.
func (h *SettingHandler) PutSwipe(c *gin.Context) {
	var body swipeSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	setting := models.SwipeSetting{
		StartHour:      body.StartHour,
		EndHour:        body.EndHour,
		LikesPerDay:    body.LikesPerDay,
		LeftSwipeRatio: body.LeftSwipeRatio,
	}
	if errSave := h.swipeSettings.Save(c.Request.Context(), setting); errSave != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errSave.Error()})
		return
	}
	saved, errLoad := h.swipeSettings.Load(c.Request.Context())
	if errLoad != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load swipe settings failed"})
		return
	}
	c.JSON(http.StatusOK, formatSwipeSetting(saved))
}

func formatSwipeSetting(setting models.SwipeSetting) gin.H {
	return gin.H{
		"start_hour":       setting.StartHour,
		"end_hour":         setting.EndHour,
		"likes_per_day":    setting.LikesPerDay,
		"left_swipe_ratio": setting.LeftSwipeRatio,
	}
}

var nonNegativeIntSettingKeys = map[string]struct{}{
	internalsettings.RateLimitKey:        {},
	internalsettings.RateLimitRedisDBKey: {},
}

var boolSettingKeys = map[string]struct{}{
	internalsettings.RateLimitRedisEnabledKey: {},
}

var errNonNegativeIntegerValue = errors.New("value must be a non-negative integer")
var errBooleanValue = errors.New("value must be a boolean")

func validateSettingValue(key string, value json.RawMessage) error {
	if _, ok := nonNegativeIntSettingKeys[key]; ok {
		n, errParse := strconv.Atoi(strings.TrimSpace(string(value)))
		if errParse != nil || n < 0 {
			return errNonNegativeIntegerValue
		}
	}
	if _, ok := boolSettingKeys[key]; ok {
		var b bool
		if errParse := json.Unmarshal(value, &b); errParse != nil {
			return errBooleanValue
		}
	}
	return nil
}

// Get returns a raw setting by key.
func (h *SettingHandler) Get(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	var setting models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Where("key = ?", key).First(&setting).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": setting.Key, "value": json.RawMessage(setting.Value)})
}

type putSettingRequest struct {
	Value json.RawMessage `json:"value"` // JSON value payload.
}

// Put upserts a raw setting and refreshes the in-memory snapshot so rate
// limit knobs take effect without a restart.
func (h *SettingHandler) Put(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	var body putSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.Value) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}
	if errValidate := validateSettingValue(key, body.Value); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errValidate.Error()})
		return
	}

	setting := models.Setting{Key: key, Value: datatypes.JSON(body.Value)}
	if errUpsert := h.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error; errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
		return
	}
	if errRefresh := db.RefreshDBConfigSnapshot(h.db); errRefresh != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh settings snapshot failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": body.Value})
}
