package geocoding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/hermes/internal/geo"
	"github.com/UnknownOlympus/hermes/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider geocodes through the Google Maps Geocoding API.
type GoogleProvider struct {
	client GoogleAPIClient
	region string
	log    *slog.Logger
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

func NewGoogleProvider(client GoogleAPIClient, region string, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, region: region, log: log}
}

// Geocode returns the position of the first result. Partial matches are accepted but logged,
// since they usually point at the town centre rather than the street.
func (gp *GoogleProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "address", address)

	req := maps.GeocodingRequest{Address: address, Region: gp.region}
	results, err := gp.client.Geocode(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode address: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrNoResult
	}

	best := results[0]
	if best.PartialMatch {
		gp.log.WarnContext(ctx, "Google Maps returned a partial match", "address", address,
			"formatted", best.FormattedAddress)
	}

	loc := best.Geometry.Location
	if !geo.IsValidGPSCoordinates(loc.Lat, loc.Lng) {
		return nil, fmt.Errorf("%w: out of range position %f,%f", ErrNoResult, loc.Lat, loc.Lng)
	}

	return &models.Coordinates{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}
