package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/swipedeck/swipedeck/internal/config"
	"github.com/swipedeck/swipedeck/internal/models"
	"github.com/swipedeck/swipedeck/internal/security"
	"github.com/swipedeck/swipedeck/internal/store"
	"github.com/swipedeck/swipedeck/internal/tinder"
	"gorm.io/gorm"
)

// AuthHandler serves admin login and the upstream OTP phone flow.
type AuthHandler struct {
	db          *gorm.DB // Database handle for admin lookups.
	jwtCfg      config.JWTConfig
	phone       *tinder.PhoneAuth
	credentials *store.CredentialStore
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, phone *tinder.PhoneAuth, credentials *store.CredentialStore) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, phone: phone, credentials: credentials}
}

type loginRequest struct {
	Username string `json:"username"` // Admin login name.
	Password string `json:"password"` // Plaintext password to verify.
}

// Login verifies admin credentials and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&admin).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !admin.Active || !security.VerifyPassword(admin.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errSign := security.SignAdminToken(h.jwtCfg.Secret, admin.ID, admin.Username, h.jwtCfg.Expiry)
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int64(h.jwtCfg.Expiry.Seconds()),
	})
}

type sendOTPRequest struct {
	Phone string `json:"phone"` // Phone number in E.164 form.
}

// SendOTP asks the upstream to text a one-time code to a phone number.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var body sendOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	phone := strings.TrimSpace(body.Phone)
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}

	sent, errSend := h.phone.SendOTP(c.Request.Context(), phone)
	if errSend != nil {
		log.WithField("error", errSend).Warn("otp send failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "otp send failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}

type verifyOTPRequest struct {
	Phone      string `json:"phone"`       // Phone number the code was sent to.
	OTPCode    string `json:"otp_code"`    // Code received by SMS.
	Store      bool   `json:"store"`       // Persist the resulting credential.
	HTTPProxy  string `json:"http_proxy"`  // Optional proxy for the stored credential.
	HTTPSProxy string `json:"https_proxy"` // Optional proxy for the stored credential.
}

// VerifyOTP exchanges a one-time code for an upstream API token, optionally
// persisting it as a credential.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var body verifyOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	phone := strings.TrimSpace(body.Phone)
	code := strings.TrimSpace(body.OTPCode)
	if phone == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and otp_code are required"})
		return
	}

	refreshToken, errRefresh := h.phone.RefreshToken(c.Request.Context(), code, phone)
	if errRefresh != nil {
		if tinder.IsLoginError(errRefresh) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "otp validation failed"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "otp validation failed"})
		return
	}
	apiToken, errAuth := h.phone.AuthToken(c.Request.Context(), refreshToken)
	if errAuth != nil {
		if tinder.IsLoginError(errAuth) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token exchange failed"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}

	stored := false
	if body.Store && h.credentials != nil {
		inserted, errInsert := h.credentials.Insert(c.Request.Context(), []store.CredentialInput{{
			Token:      apiToken,
			HTTPProxy:  body.HTTPProxy,
			HTTPSProxy: body.HTTPSProxy,
		}})
		if errInsert != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store credential failed"})
			return
		}
		stored = inserted > 0
	}

	c.JSON(http.StatusOK, gin.H{
		"api_token":     apiToken,
		"refresh_token": refreshToken,
		"stored":        stored,
	})
}
