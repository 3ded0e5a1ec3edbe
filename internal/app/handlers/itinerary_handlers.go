package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/roamly-app/roamly/internal/app/domain/auth"
	"github.com/roamly-app/roamly/internal/app/domain/generator"
	"github.com/roamly-app/roamly/internal/app/domain/syncengine"
	"github.com/roamly-app/roamly/internal/app/models"
	"github.com/roamly-app/roamly/internal/app/observability/metrics"
)

type ItineraryHandlers struct {
	logger     *zap.Logger
	engine     syncengine.Service
	generator  generator.Service
	controller *auth.Controller
}

func NewItineraryHandlers(engine syncengine.Service, gen generator.Service, controller *auth.Controller, logger *zap.Logger) *ItineraryHandlers {
	return &ItineraryHandlers{
		logger:     logger,
		engine:     engine,
		generator:  gen,
		controller: controller,
	}
}

func (h *ItineraryHandlers) ListSaved(c *gin.Context) {
	items := h.engine.GetSavedItineraries(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"itineraries": items})
}

func (h *ItineraryHandlers) GetByID(c *gin.Context) {
	it, err := h.engine.GetItineraryByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "itinerary not found"})
		return
	}
	c.JSON(http.StatusOK, it)
}

// Save accepts a full itinerary and persists it. The response reports both
// persistence legs so clients can surface pending-sync state.
func (h *ItineraryHandlers) Save(c *gin.Context) {
	var it models.Itinerary
	if err := c.ShouldBindJSON(&it); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid itinerary payload"})
		return
	}

	result := h.engine.SaveItinerary(c.Request.Context(), it)
	recordSave(c, result)
	c.JSON(http.StatusOK, gin.H{
		"id":            result.ID,
		"saved":         result.LocalSaved,
		"remote_synced": result.RemoteSynced,
	})
}

func (h *ItineraryHandlers) Publish(c *gin.Context) {
	it, err := h.engine.GetItineraryByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "itinerary not found"})
		return
	}

	author := "Roamly Traveler"
	if session := h.controller.CurrentSession(); session != nil {
		author = session.DisplayName()
	}

	result := h.engine.PublishItinerary(c.Request.Context(), *it, author)
	c.JSON(http.StatusOK, gin.H{
		"id":            result.ID,
		"shared":        true,
		"remote_synced": result.RemoteSynced,
	})
}

func (h *ItineraryHandlers) Remix(c *gin.Context) {
	remixed, err := h.engine.RemixItinerary(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "itinerary not found"})
			return
		}
		h.logger.Error("Remix failed", zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remix itinerary"})
		return
	}
	c.JSON(http.StatusOK, remixed)
}

func (h *ItineraryHandlers) Community(c *gin.Context) {
	items := h.engine.GetCommunityItineraries(c.Request.Context())

	if mood := c.Query("mood"); mood != "" {
		filtered := make([]models.Itinerary, 0, len(items))
		for _, it := range items {
			if it.Mood == mood {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}

	c.JSON(http.StatusOK, gin.H{"itineraries": items})
}

type generateRequest struct {
	City      string `json:"city" binding:"required"`
	Mood      string `json:"mood"`
	Budget    string `json:"budget"`
	GroupSize int    `json:"group_size"`
	Date      string `json:"date"`
}

// Generate plans a trip with the AI provider and saves the result through
// the engine so it is durable before the response goes out.
func (h *ItineraryHandlers) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city is required"})
		return
	}

	it, err := h.generator.Generate(c.Request.Context(), generator.Request{
		City:      req.City,
		Mood:      req.Mood,
		Budget:    req.Budget,
		GroupSize: req.GroupSize,
		Date:      req.Date,
	})
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Generation failed", zap.String("city", req.City), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not generate itinerary"})
		return
	}

	metrics.Get().GenerationsTotal.Add(c.Request.Context(), 1,
		metric.WithAttributes(attribute.String("mood", req.Mood)))

	result := h.engine.SaveItinerary(c.Request.Context(), it)
	recordSave(c, result)
	it.ID = result.ID
	c.JSON(http.StatusOK, gin.H{
		"itinerary":     it,
		"remote_synced": result.RemoteSynced,
	})
}

func recordSave(c *gin.Context, result syncengine.SaveResult) {
	m := metrics.Get()
	m.SavesTotal.Add(c.Request.Context(), 1,
		metric.WithAttributes(attribute.Bool("remote_synced", result.RemoteSynced)))
	if !result.RemoteSynced {
		m.RemoteSyncFailures.Add(c.Request.Context(), 1)
	}
}
