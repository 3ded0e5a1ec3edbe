// Package generator turns a trip request into a structured itinerary via
// the generative content provider. Responses are free text that must be
// repaired and normalized before they become domain objects.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	generativeAI "github.com/FACorreiaa/go-genai-sdk/lib"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/roamly-app/roamly/internal/app/models"
)

// Request describes the trip to plan.
type Request struct {
	City      string
	Mood      string
	Budget    string
	GroupSize int
	Date      string
}

// AIClient is the slice of the LLM client the generator needs.
type AIClient interface {
	GenerateResponse(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var _ AIClient = (*generativeAI.LLMChatClient)(nil)

type Service interface {
	Generate(ctx context.Context, req Request) (models.Itinerary, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger *zap.Logger
	ai     AIClient
}

func NewService(ai AIClient, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		ai:     ai,
	}
}

func (s *ServiceImpl) Generate(ctx context.Context, req Request) (models.Itinerary, error) {
	ctx, span := otel.Tracer("Generator").Start(ctx, "Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("trip.city", req.City),
		attribute.String("trip.mood", req.Mood),
	)

	if s.ai == nil {
		return models.Itinerary{}, fmt.Errorf("generation is not configured: %w", models.ErrBadRequest)
	}
	if strings.TrimSpace(req.City) == "" {
		return models.Itinerary{}, fmt.Errorf("city is required: %w", models.ErrBadRequest)
	}
	if req.Date == "" {
		req.Date = time.Now().Format("January 2, 2006")
	}

	prompt := buildPrompt(req)
	s.logger.Info("Requesting itinerary from AI provider",
		zap.String("city", req.City),
		zap.String("mood", req.Mood),
	)

	response, err := s.ai.GenerateResponse(ctx, prompt, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.7),
	})
	if err != nil {
		s.logger.Error("AI request failed", zap.Error(err))
		return models.Itinerary{}, fmt.Errorf("itinerary generation failed: %w", err)
	}

	text := extractText(response)
	if text == "" {
		return models.Itinerary{}, fmt.Errorf("AI provider returned an empty response")
	}

	plan, err := parseItinerary(text)
	if err != nil {
		s.logger.Error("Failed to parse AI response",
			zap.Error(err),
			zap.Int("response_len", len(text)),
		)
		return models.Itinerary{}, fmt.Errorf("itinerary generation failed: %w", err)
	}

	it := models.Itinerary{
		ID:    uuid.New().String(),
		Title: plan.Title,
		Date:  req.Date,
		Mood:  req.Mood,
		Tags:  plan.Tags,
		Items: plan.Items,
	}
	if it.Title == "" {
		it.Title = fmt.Sprintf("%s in %s", req.Mood, req.City)
	}
	if it.Mood == "" {
		it.Mood = plan.Mood
	}

	s.logger.Info("Itinerary generated",
		zap.String("id", it.ID),
		zap.Int("items", len(it.Items)),
	)
	return it, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a local travel planner. Build a one-day itinerary for ")
	b.WriteString(req.City)
	b.WriteString(".\n")
	if req.Mood != "" {
		fmt.Fprintf(&b, "The traveler's mood is %q.\n", req.Mood)
	}
	if req.Budget != "" {
		fmt.Fprintf(&b, "Budget level: %s.\n", req.Budget)
	}
	if req.GroupSize > 1 {
		fmt.Fprintf(&b, "Group size: %d people.\n", req.GroupSize)
	}
	b.WriteString(`
Respond with ONLY a JSON object, no markdown, in this exact shape:
{
  "title": "string",
  "mood": "string",
  "tags": ["string"],
  "items": [
    {
      "time": "9:00 AM",
      "activity": "string",
      "location_name": "string",
      "description": "string",
      "category": "Food|Activity|Nightlife",
      "rating": 4.5,
      "review_count": 120,
      "price": "$$",
      "image_url": ""
    }
  ]
}
Include 4 to 6 items ordered chronologically. Use real, well-known venues.
`)
	return b.String()
}

// extractText concatenates the text parts of the first candidate.
func extractText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
