// Package geocoding turns composed delivery addresses into coordinates.
package geocoding

import (
	"context"
	"errors"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// Provider resolves an address string to a single position.
// An address the provider cannot place is reported as ErrNoResult.
type Provider interface {
	Geocode(ctx context.Context, address string) (*models.Coordinates, error)
}

// ErrNoResult is returned when the provider answered but found nothing usable for the address.
var ErrNoResult = errors.New("geocoding provider returned no result")
