package geocoding

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"googlemaps.github.io/maps"
)

// ProviderType represents the type of geocoding provider.
type ProviderType string

const (
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeNominatim represents OpenStreetMap Nominatim geocoding provider.
	ProviderTypeNominatim ProviderType = "nominatim"
)

// DefaultRegion biases every lookup towards the delivery area.
const DefaultRegion = "mt"

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	Type      ProviderType // Type of provider to create
	APIKey    string       // API key (used by Google provider)
	RateLimit int          // Requests per second (Google client option; Nominatim is capped at one)
	Region    string       // ccTLD region bias, DefaultRegion when empty
	Logger    *slog.Logger // Logger for the provider
}

// NewProvider creates a geocoding provider based on the provided configuration.
//
// Supported provider types:
// - "google": Google Maps Geocoding API (requires API key)
// - "nominatim": OpenStreetMap Nominatim API (free, no API key required)
func NewProvider(config ProviderConfig) (Provider, error) {
	if config.Region == "" {
		config.Region = DefaultRegion
	}

	switch config.Type {
	case ProviderTypeGoogle:
		client, err := NewMapsClient(config.APIKey, config.RateLimit)
		if err != nil {
			return nil, err
		}
		return NewGoogleProvider(client, config.Region, config.Logger), nil
	case ProviderTypeNominatim:
		return NewNominatimProvider(config.Region, config.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// NewMapsClient creates a Google Maps client. The same client serves geocoding and directions.
func NewMapsClient(apiKey string, rateLimit int) (*maps.Client, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}

	const requestTimeout = 15 * time.Second
	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: requestTimeout}),
	}
	if rateLimit > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(rateLimit))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return client, nil
}
