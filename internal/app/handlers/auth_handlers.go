// Package handlers exposes the sync engine, identity provider and
// generator over a JSON HTTP API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/domain/auth"
	"github.com/roamly-app/roamly/internal/app/domain/syncengine"
	"github.com/roamly-app/roamly/internal/app/models"
)

type AuthHandlers struct {
	logger     *zap.Logger
	identity   *auth.IdentityService
	controller *auth.Controller
	engine     syncengine.Service
}

func NewAuthHandlers(identity *auth.IdentityService, controller *auth.Controller, engine syncengine.Service, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		logger:     logger,
		identity:   identity,
		controller: controller,
		engine:     engine,
	}
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandlers) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	session, err := h.identity.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("Sign in rejected", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.respondWithSession(c, session)
}

func (h *AuthHandlers) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	session, err := h.identity.SignUp(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.logger.Error("Sign up failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "could not create account"})
		return
	}

	h.respondWithSession(c, session)
}

type otpRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code"`
}

func (h *AuthHandlers) RequestOtp(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	if err := h.identity.SignInWithOtp(c.Request.Context(), req.Email); err != nil {
		h.logger.Error("OTP issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "code sent"})
}

func (h *AuthHandlers) VerifyOtp(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and code are required"})
		return
	}

	session, err := h.identity.VerifyOtp(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
		return
	}

	h.respondWithSession(c, session)
}

func (h *AuthHandlers) RequestPasswordReset(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	if err := h.identity.ResetPassword(c.Request.Context(), req.Email); err != nil {
		h.logger.Error("Password reset issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send reset link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset link sent"})
}

type resetConfirmRequest struct {
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *AuthHandlers) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and new_password are required"})
		return
	}

	if err := h.identity.ConfirmPasswordReset(c.Request.Context(), req.Code, req.NewPassword); err != nil {
		if errors.Is(err, models.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
			return
		}
		h.logger.Error("Password reset failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reset password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

// SignOut clears the session. The local clear always wins even when the
// remote revoke hangs or fails.
func (h *AuthHandlers) SignOut(c *gin.Context) {
	h.controller.Logout(c.Request.Context())
	// User slots are wiped; the cached community snapshot stays so the
	// feed is still browsable after sign-out.
	h.engine.ClearUser()
	c.JSON(http.StatusOK, gin.H{"status": "signed out"})
}

func (h *AuthHandlers) GetSession(c *gin.Context) {
	session := h.controller.CurrentSession()
	if session == nil {
		c.JSON(http.StatusOK, gin.H{
			"state":   h.controller.State().String(),
			"session": nil,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":   h.controller.State().String(),
		"session": gin.H{"email": session.Email, "user_id": session.UserID},
		"profile": auth.ResolveProfile(session),
	})
}

func (h *AuthHandlers) respondWithSession(c *gin.Context, session *models.Session) {
	token, err := h.identity.AccessTokenFor(session)
	if err != nil {
		h.logger.Error("Failed to mint access token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"profile":      auth.ResolveProfile(session),
	})
}
