package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/swipedeck/swipedeck/internal/session"
	"github.com/swipedeck/swipedeck/internal/store"
)

// CredentialHandler manages stored account credentials.
type CredentialHandler struct {
	credentials *store.CredentialStore
	sessions    *session.Registry
}

// NewCredentialHandler constructs a credential handler.
func NewCredentialHandler(credentials *store.CredentialStore, sessions *session.Registry) *CredentialHandler {
	return &CredentialHandler{credentials: credentials, sessions: sessions}
}

// credentialPayload is one credential in an upload request.
type credentialPayload struct {
	Token      string `json:"token"`       // Upstream auth token.
	HTTPProxy  string `json:"http_proxy"`  // Optional HTTP proxy URL.
	HTTPSProxy string `json:"https_proxy"` // Optional HTTPS proxy URL.
}

// createCredentialsRequest accepts a single credential or a batch.
type createCredentialsRequest struct {
	credentialPayload
	Credentials []credentialPayload `json:"credentials"`
}

// Create uploads one or more credentials. Tokens already present are
// skipped; the response reports how many rows were actually inserted.
func (h *CredentialHandler) Create(c *gin.Context) {
	var body createCredentialsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	payloads := body.Credentials
	if strings.TrimSpace(body.Token) != "" {
		payloads = append(payloads, body.credentialPayload)
	}
	inputs := make([]store.CredentialInput, 0, len(payloads))
	for _, payload := range payloads {
		inputs = append(inputs, store.CredentialInput{
			Token:      payload.Token,
			HTTPProxy:  payload.HTTPProxy,
			HTTPSProxy: payload.HTTPSProxy,
		})
	}
	if len(inputs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one token is required"})
		return
	}

	inserted, errInsert := h.credentials.Insert(c.Request.Context(), inputs)
	if errInsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "insert credentials failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"inserted": inserted, "received": len(inputs)})
}

// List returns all stored credentials.
func (h *CredentialHandler) List(c *gin.Context) {
	rows, errFetch := h.credentials.FetchAll(c.Request.Context())
	if errFetch != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list credentials failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"token":       row.Token,
			"http_proxy":  row.HTTPProxy,
			"https_proxy": row.HTTPSProxy,
			"created_at":  row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"credentials": out})
}

// Delete removes a credential, its group memberships, and any live session.
func (h *CredentialHandler) Delete(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
		return
	}

	if errRemove := h.credentials.Remove(c.Request.Context(), token); errRemove != nil {
		if errors.Is(errRemove, store.ErrCredentialNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove credential failed"})
		return
	}
	h.sessions.Evict(token)
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
