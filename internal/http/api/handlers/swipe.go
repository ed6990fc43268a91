package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/swipedeck/swipedeck/internal/session"
	"github.com/swipedeck/swipedeck/internal/store"
	"github.com/swipedeck/swipedeck/internal/swipe"
	"github.com/swipedeck/swipedeck/internal/tinder"
)

// SwipeHandler runs the like routine for one account.
type SwipeHandler struct {
	sessions *session.Registry
	settings *store.SwipeSettingsStore
	engine   *swipe.Engine
}

// NewSwipeHandler constructs a swipe handler.
func NewSwipeHandler(sessions *session.Registry, settings *store.SwipeSettingsStore, engine *swipe.Engine) *SwipeHandler {
	return &SwipeHandler{sessions: sessions, settings: settings, engine: engine}
}

// Run executes the swipe routine synchronously under the request context;
// the client disconnecting cancels the run.
func (h *SwipeHandler) Run(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
		return
	}

	setting, errLoad := h.settings.Load(c.Request.Context())
	if errLoad != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load swipe settings failed"})
		return
	}

	client, errSession := h.sessions.GetOrCreate(c.Request.Context(), token)
	if errSession != nil {
		if errors.Is(errSession, store.ErrCredentialNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown credential"})
			return
		}
		if tinder.IsLoginError(errSession) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "upstream login failed"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
		return
	}

	report, errRun := h.engine.Run(c.Request.Context(), client, swipe.Settings{
		StartHour:      setting.StartHour,
		EndHour:        setting.EndHour,
		LikesPerDay:    setting.LikesPerDay,
		LeftSwipeRatio: setting.LeftSwipeRatio,
	})
	if errRun != nil {
		if errors.Is(errRun, swipe.ErrNoRecommendations) {
			// The quota was not spent but the swipes so far still count.
			c.JSON(http.StatusOK, gin.H{"report": report, "exhausted": true})
			return
		}
		log.WithFields(log.Fields{
			"likes":  report.Likes,
			"passes": report.Passes,
			"error":  errRun,
		}).Warn("swipe routine aborted")
		c.JSON(http.StatusBadGateway, gin.H{"error": "swipe routine failed", "report": report})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}
