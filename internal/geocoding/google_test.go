package geocoding_test

import (
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGeocode(t *testing.T) {
	mockClient := mocks.NewGoogleAPIClient(t)
	provider := geocoding.NewGoogleProvider(mockClient, "mt", slog.Default())
	ctx := t.Context()

	t.Run("api returns error", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address, Region: "mt"}

		mockClient.On("Geocode", ctx, req).Return(nil, assert.AnError).Once()

		_, err := provider.Geocode(ctx, address)

		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
		mockClient.AssertExpectations(t)
	})

	t.Run("api return empty response", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address, Region: "mt"}

		mockClient.On("Geocode", ctx, req).Return(nil, nil).Once()

		coords, err := provider.Geocode(ctx, address)

		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrNoResult)
		mockClient.AssertExpectations(t)
	})

	t.Run("api returns position out of range", func(t *testing.T) {
		address := "Triq il-Kbira, Mosta, Malta"
		req := &maps.GeocodingRequest{Address: address, Region: "mt"}
		response := []maps.GeocodingResult{
			{Geometry: maps.AddressGeometry{Location: maps.LatLng{Lat: 135.9, Lng: 14.4}}},
		}

		mockClient.On("Geocode", ctx, req).Return(response, nil).Once()

		coords, err := provider.Geocode(ctx, address)

		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrNoResult)
	})

	t.Run("successfull geocoding", func(t *testing.T) {
		address := "Triq il-Kbira, Ħamrun, HMR 1010, Malta"
		req := &maps.GeocodingRequest{Address: address, Region: "mt"}
		response := []maps.GeocodingResult{
			{Geometry: maps.AddressGeometry{Location: maps.LatLng{Lat: 35.8847, Lng: 14.4844}}, PartialMatch: true},
		}

		mockClient.On("Geocode", ctx, req).Return(response, nil).Once()

		coords, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		require.NotNil(t, coords)
		require.InEpsilon(t, 35.8847, coords.Latitude, 0.0001)
		require.InEpsilon(t, 14.4844, coords.Longitude, 0.0001)
		mockClient.AssertExpectations(t)
	})
}
