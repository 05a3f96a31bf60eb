package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/middleware"
	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
	"github.com/fonsecaaso/linkdrop/go-server/internal/service"
)

type SignupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type SigninRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Email string  `json:"email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type SessionResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type AuthHandler struct {
	svc          service.AuthService
	secureCookie bool
	logger       *zap.Logger
}

func NewAuthHandler(svc service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		svc:          svc,
		secureCookie: secureCookie,
		logger:       zap.L().With(zap.String("component", "AuthHandler")),
	}
}

func (h *AuthHandler) CheckSignup(c *gin.Context) {
	status, err := h.svc.CheckSignup(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid JSON in Signup", zap.Error(err))
		badRequest(c, "INVALID_PAYLOAD", "Invalid request payload", err)
		return
	}

	res, err := h.svc.Signup(c.Request.Context(), service.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setSessionCookie(c, res)
	c.JSON(http.StatusCreated, SessionResponse{User: res.User, Token: res.Token, ExpiresAt: res.ExpiresAt})
}

func (h *AuthHandler) Signin(c *gin.Context) {
	var req SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid JSON in Signin", zap.Error(err))
		badRequest(c, "INVALID_PAYLOAD", "Invalid request payload", err)
		return
	}

	res, err := h.svc.Signin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setSessionCookie(c, res)
	c.JSON(http.StatusOK, SessionResponse{User: res.User, Token: res.Token, ExpiresAt: res.ExpiresAt})
}

func (h *AuthHandler) Signout(c *gin.Context) {
	if signed := middleware.SessionToken(c); signed != "" {
		if err := h.svc.Signout(c.Request.Context(), signed); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c)})
}

// Verify reports whether the request carries a valid session without
// failing when it does not.
func (h *AuthHandler) Verify(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "user": user})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_PAYLOAD", "Invalid request payload", err)
		return
	}

	user, err := h.svc.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c), req.Name, req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ChangePassword ends every session of the user and sets a fresh cookie.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_PAYLOAD", "Invalid request payload", err)
		return
	}

	res, err := h.svc.ChangePassword(c.Request.Context(), middleware.CurrentUser(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setSessionCookie(c, res)
	c.JSON(http.StatusOK, SessionResponse{User: res.User, Token: res.Token, ExpiresAt: res.ExpiresAt})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, res *service.AuthResult) {
	maxAge := int(time.Until(res.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, res.Token, maxAge, "/", "", h.secureCookie, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", h.secureCookie, true)
}
