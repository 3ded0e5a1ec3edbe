// Package routes wires the HTTP surface onto the gin engine.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/handlers"
	"github.com/roamly-app/roamly/internal/app/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth      *handlers.AuthHandlers
	Itinerary *handlers.ItineraryHandlers
	Profile   *handlers.ProfileHandlers
}

// Setup mounts all routes. Reads and itinerary writes tolerate anonymous
// callers because the engine degrades to local-only persistence; account
// level operations require a valid token.
func Setup(r *gin.Engine, h Handlers, jwtSecret string, logger *zap.Logger) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", h.Auth.SignUp)
		authGroup.POST("/signin", h.Auth.SignIn)
		authGroup.POST("/otp", h.Auth.RequestOtp)
		authGroup.POST("/otp/verify", h.Auth.VerifyOtp)
		authGroup.POST("/password-reset", h.Auth.RequestPasswordReset)
		authGroup.POST("/password-reset/confirm", h.Auth.ConfirmPasswordReset)
		authGroup.POST("/signout", h.Auth.SignOut)
		authGroup.GET("/session", h.Auth.GetSession)
	}

	open := api.Group("")
	open.Use(middleware.OptionalAuthMiddleware(jwtSecret))
	{
		open.GET("/itineraries", h.Itinerary.ListSaved)
		open.GET("/itineraries/:id", h.Itinerary.GetByID)
		open.POST("/itineraries", h.Itinerary.Save)
		open.POST("/itineraries/:id/publish", h.Itinerary.Publish)
		open.POST("/itineraries/:id/remix", h.Itinerary.Remix)
		open.GET("/community", h.Itinerary.Community)
		open.POST("/generate", h.Itinerary.Generate)
		open.POST("/location/detect", h.Profile.DetectCity)
		open.GET("/me", h.Profile.GetProfile)
		open.PUT("/me", h.Profile.UpdateProfile)
	}

	account := api.Group("")
	account.Use(middleware.AuthMiddleware(jwtSecret))
	{
		account.PUT("/me/privacy", h.Profile.UpdatePrivacy)
		account.DELETE("/me", h.Profile.DeleteAccount)
	}

	logger.Info("Routes mounted", zap.Int("route_count", len(r.Routes())))
}
