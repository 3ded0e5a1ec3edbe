// Package location resolves coordinates to a city name for onboarding.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ReverseGeocoder turns a coordinate pair into a human-readable city.
type ReverseGeocoder interface {
	CityFor(ctx context.Context, lat, lng float64) (string, error)
}

var _ ReverseGeocoder = (*NominatimGeocoder)(nil)

// NominatimGeocoder queries an OSM Nominatim-compatible endpoint.
type NominatimGeocoder struct {
	logger  *zap.Logger
	baseURL string
	client  *http.Client
}

// NewNominatimGeocoder takes the service base URL without the /reverse
// segment; CityFor appends it. A base that already carries it is accepted.
func NewNominatimGeocoder(baseURL string, logger *zap.Logger) *NominatimGeocoder {
	baseURL = strings.TrimSuffix(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/reverse")
	return &NominatimGeocoder{
		logger:  logger,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type nominatimResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

func (g *NominatimGeocoder) CityFor(ctx context.Context, lat, lng float64) (string, error) {
	endpoint := fmt.Sprintf("%s/reverse?%s", g.baseURL, url.Values{
		"lat":    {fmt.Sprintf("%f", lat)},
		"lon":    {fmt.Sprintf("%f", lng)},
		"format": {"json"},
		"zoom":   {"10"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", "roamly/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("Reverse geocode request failed", zap.Error(err))
		return "", fmt.Errorf("reverse geocode failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode returned status %d", resp.StatusCode)
	}

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode geocode response: %w", err)
	}

	switch {
	case payload.Address.City != "":
		return payload.Address.City, nil
	case payload.Address.Town != "":
		return payload.Address.Town, nil
	case payload.Address.Village != "":
		return payload.Address.Village, nil
	case payload.Address.State != "":
		return payload.Address.State, nil
	}
	return "", fmt.Errorf("no locality found for %.4f,%.4f", lat, lng)
}
