package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/swipedeck/swipedeck/internal/session"
	"github.com/swipedeck/swipedeck/internal/store"
	"github.com/swipedeck/swipedeck/internal/tinder"
)

// GroupHandler manages credential groups and group-wide actions.
type GroupHandler struct {
	groups   *store.GroupStore
	sessions *session.Registry
}

// NewGroupHandler constructs a group handler.
func NewGroupHandler(groups *store.GroupStore, sessions *session.Registry) *GroupHandler {
	return &GroupHandler{groups: groups, sessions: sessions}
}

type groupRequest struct {
	Name string `json:"name"` // Group name.
}

// Create creates a named group. Duplicate names report already_exists.
func (h *GroupHandler) Create(c *gin.Context) {
	var body groupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	result, errCreate := h.groups.Create(c.Request.Context(), body.Name)
	if errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create group failed"})
		return
	}
	status := http.StatusCreated
	if result == store.GroupAlreadyExists {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"result": result})
}

// List returns all group names.
func (h *GroupHandler) List(c *gin.Context) {
	names, errList := h.groups.List(c.Request.Context())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list groups failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": names})
}

// Delete removes a group and its memberships.
func (h *GroupHandler) Delete(c *gin.Context) {
	result, errRemove := h.groups.Remove(c.Request.Context(), c.Param("name"))
	if errRemove != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove group failed"})
		return
	}
	if result == store.GroupMissing {
		c.JSON(http.StatusNotFound, gin.H{"result": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Members returns a group's member tokens.
func (h *GroupHandler) Members(c *gin.Context) {
	tokens, errTokens := h.groups.Tokens(c.Request.Context(), c.Param("name"))
	if errTokens != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list members failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": tokens})
}

type memberRequest struct {
	Token string `json:"token"` // Credential token to add.
}

// AddMember adds a token to a group.
func (h *GroupHandler) AddMember(c *gin.Context) {
	var body memberRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	result, errAdd := h.groups.AddMember(c.Request.Context(), body.Token, c.Param("name"))
	if errAdd != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "add member failed"})
		return
	}
	if result == store.GroupMissing {
		c.JSON(http.StatusNotFound, gin.H{"result": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// RemoveMember removes a token from a group.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	result, errRemove := h.groups.RemoveMember(c.Request.Context(), c.Param("token"), c.Param("name"))
	if errRemove != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove member failed"})
		return
	}
	if result == store.GroupMissing {
		c.JSON(http.StatusNotFound, gin.H{"result": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

type bioRequest struct {
	Bio string `json:"bio"` // New profile bio text.
}

// BroadcastBio updates the profile bio for every member of a group. Each
// member reports its own outcome; one bad token does not fail the batch.
func (h *GroupHandler) BroadcastBio(c *gin.Context) {
	var body bioRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	tokens, errTokens := h.groups.Tokens(c.Request.Context(), c.Param("name"))
	if errTokens != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list members failed"})
		return
	}
	if len(tokens) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "group has no members"})
		return
	}

	results := make([]gin.H, 0, len(tokens))
	for _, token := range tokens {
		if errUpdate := h.updateBio(c, token, body.Bio); errUpdate != nil {
			log.WithFields(log.Fields{
				"group": c.Param("name"),
				"error": errUpdate,
			}).Warn("bio update failed for member")
			status := "upstream_error"
			if tinder.IsLoginError(errUpdate) {
				status = "login_failed"
			}
			results = append(results, gin.H{"token": token, "status": status})
			continue
		}
		results = append(results, gin.H{"token": token, "status": "updated"})
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *GroupHandler) updateBio(c *gin.Context, token, bio string) error {
	client, errSession := h.sessions.GetOrCreate(c.Request.Context(), token)
	if errSession != nil {
		return errSession
	}
	return client.UpdateBio(c.Request.Context(), bio)
}
