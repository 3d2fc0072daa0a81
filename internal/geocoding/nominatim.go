package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/geo"
	"github.com/UnknownOlympus/hermes/internal/models"
	"golang.org/x/time/rate"
)

const (
	nominatimURL       = "https://nominatim.openstreetmap.org/search"
	nominatimUserAgent = "Hermes-Fleet-Telemetry/1.0 (https://github.com/UnknownOlympus/hermes)"
)

// NominatimProvider geocodes through OpenStreetMap's Nominatim API.
// Requests are limited to one per second as the public instance requires.
type NominatimProvider struct {
	client       HTTPClient
	baseURL      string
	countryCodes string
	limiter      *rate.Limiter
	log          *slog.Logger
}

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type nominatimResponse struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// ErrNominatimInvalidCoords is returned when a result carries unparsable coordinates.
var ErrNominatimInvalidCoords = errors.New("nominatim API returned invalid coordinates")

// NewNominatimProvider creates a provider for the public Nominatim endpoint restricted to countryCodes.
func NewNominatimProvider(countryCodes string, log *slog.Logger) *NominatimProvider {
	const timeout = 10 * time.Second

	return NewNominatimProviderWithClient(&http.Client{Timeout: timeout}, countryCodes, log)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client.
func NewNominatimProviderWithClient(client HTTPClient, countryCodes string, log *slog.Logger) *NominatimProvider {
	return &NominatimProvider{
		client:       client,
		baseURL:      nominatimURL,
		countryCodes: countryCodes,
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		log:          log,
	}
}

// WithLimiter replaces the default one-request-per-second limiter, for self-hosted instances.
func (np *NominatimProvider) WithLimiter(limiter *rate.Limiter) *NominatimProvider {
	np.limiter = limiter

	return np
}

// Geocode tries the full address first, then progressively drops its leading components
// (street, then locality detail) until a result is found. Only ErrNoResult moves on to the
// next variation; transport and decoding errors end the lookup.
func (np *NominatimProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	np.log.DebugContext(ctx, "Geocoding using Nominatim", "address", address)

	variations := addressFallbacks(address)
	for idx, variation := range variations {
		coords, err := np.geocodeSingleAddress(ctx, variation)
		if err == nil {
			if idx > 0 {
				np.log.InfoContext(ctx, "Geocoded using fallback address",
					"original", address, "fallback", variation, "fallback_level", idx)
			}
			return coords, nil
		}

		if !errors.Is(err, ErrNoResult) {
			return nil, err
		}
	}

	np.log.WarnContext(ctx, "All address fallbacks exhausted", "address", address,
		"variations_tried", len(variations))

	return nil, ErrNoResult
}

// addressFallbacks lists the address followed by its suffixes, each missing one more leading
// component. A variation always keeps at least two components so the country suffix never
// stands alone.
func addressFallbacks(address string) []string {
	var parts []string
	for _, part := range strings.Split(address, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return []string{address}
	}

	const minParts = 2
	variations := []string{strings.Join(parts, ", ")}
	for start := 1; len(parts)-start >= minParts; start++ {
		variations = append(variations, strings.Join(parts[start:], ", "))
	}

	return variations
}

func (np *NominatimProvider) geocodeSingleAddress(ctx context.Context, address string) (*models.Coordinates, error) {
	if err := np.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for nominatim rate limit: %w", err)
	}

	reqURL, err := url.Parse(np.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")
	if np.countryCodes != "" {
		query.Set("countrycodes", np.countryCodes)
	}
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", nominatimUserAgent)
	req.Header.Set("Accept-Language", "en,mt")

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []nominatimResponse
	if err = json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoResult
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid latitude: %s", ErrNominatimInvalidCoords, results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid longitude: %s", ErrNominatimInvalidCoords, results[0].Lon)
	}
	if !geo.IsValidGPSCoordinates(lat, lon) {
		return nil, fmt.Errorf("%w: out of range position %f,%f", ErrNominatimInvalidCoords, lat, lon)
	}

	return &models.Coordinates{Latitude: lat, Longitude: lon}, nil
}
