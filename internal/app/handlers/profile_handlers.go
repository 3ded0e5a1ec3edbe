package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/domain/location"
	"github.com/roamly-app/roamly/internal/app/domain/syncengine"
	"github.com/roamly-app/roamly/internal/app/middleware"
	"github.com/roamly-app/roamly/internal/app/models"
)

type ProfileHandlers struct {
	logger   *zap.Logger
	engine   syncengine.Service
	sessions syncengine.SessionSource
	geocoder location.ReverseGeocoder
}

func NewProfileHandlers(engine syncengine.Service, sessions syncengine.SessionSource, geocoder location.ReverseGeocoder, logger *zap.Logger) *ProfileHandlers {
	return &ProfileHandlers{
		logger:   logger,
		engine:   engine,
		sessions: sessions,
		geocoder: geocoder,
	}
}

// requireOwnAccount rejects account-level requests whose bearer token does
// not belong to the device's signed-in user. A stale or foreign token must
// never mutate another account through this device's session.
func (h *ProfileHandlers) requireOwnAccount(c *gin.Context) bool {
	session := h.sessions.CurrentSession()
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return false
	}
	if middleware.GetUserIDFromContext(c) != session.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "token does not match the signed-in user"})
		return false
	}
	return true
}

func (h *ProfileHandlers) GetProfile(c *gin.Context) {
	profile := h.engine.GetUser(c.Request.Context())
	if profile == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

type profileUpdateRequest struct {
	Name        string `json:"name"`
	City        string `json:"city"`
	Personality string `json:"personality"`
}

func (h *ProfileHandlers) UpdateProfile(c *gin.Context) {
	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile payload"})
		return
	}

	current := h.engine.GetUser(c.Request.Context())
	if current == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	profile := *current
	if req.Name != "" {
		profile.Name = req.Name
	}
	if req.City != "" {
		profile.City = req.City
	}
	if req.Personality != "" {
		profile.Personality = models.Personality(req.Personality)
	}

	result := h.engine.SaveUser(c.Request.Context(), profile)
	c.JSON(http.StatusOK, gin.H{
		"profile":       profile,
		"remote_synced": result.RemoteSynced,
	})
}

// UpdatePrivacy is remote-only: there is no durable local leg, so remote
// failure surfaces as an error instead of a silent fallback.
func (h *ProfileHandlers) UpdatePrivacy(c *gin.Context) {
	if !h.requireOwnAccount(c) {
		return
	}

	var settings models.PrivacySettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload"})
		return
	}

	if err := h.engine.SavePrivacySettings(c.Request.Context(), settings); err != nil {
		if errors.Is(err, models.ErrNoSession) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		h.logger.Error("Privacy settings update failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not save settings, try again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (h *ProfileHandlers) DeleteAccount(c *gin.Context) {
	if !h.requireOwnAccount(c) {
		return
	}

	if err := h.engine.DeleteAccount(c.Request.Context()); err != nil {
		if errors.Is(err, models.ErrNoSession) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		h.logger.Error("Account deletion failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not delete account, try again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "account deleted"})
}

type locateRequest struct {
	Lat float64 `json:"lat" binding:"required"`
	Lng float64 `json:"lng" binding:"required"`
}

// DetectCity resolves coordinates to a city for onboarding.
func (h *ProfileHandlers) DetectCity(c *gin.Context) {
	var req locateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}

	city, err := h.geocoder.CityFor(c.Request.Context(), req.Lat, req.Lng)
	if err != nil {
		h.logger.Warn("City detection failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not detect city"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"city": city})
}
