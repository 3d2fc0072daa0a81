package geocoding_test

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	cache := geocoding.NewCache()
	coords := models.Coordinates{Latitude: 35.9, Longitude: 14.4}

	_, ok := cache.Get("Mosta, Malta")
	assert.False(t, ok)

	cache.Put("Mosta, Malta", coords)
	got, ok := cache.Get("Mosta, Malta")
	require.True(t, ok)
	assert.Equal(t, coords, got)

	_, ok = cache.Get("mosta, malta")
	assert.False(t, ok, "keys are exact strings")
	assert.Equal(t, 1, cache.Len())

	cache.Clear()
	assert.Zero(t, cache.Len())
}

func TestCachedProvider(t *testing.T) {
	ctx := t.Context()
	address := "Triq il-Kbira, Mosta, Malta"
	coords := &models.Coordinates{Latitude: 35.9092, Longitude: 14.4256}

	t.Run("miss calls the provider once and later lookups hit", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		m := metrics.NewMetrics(prometheus.NewRegistry())
		cached := geocoding.NewCachedProvider(provider, geocoding.NewCache(), "google", m, slog.Default())

		provider.On("Geocode", ctx, address).Return(coords, nil).Once()

		first, err := cached.Geocode(ctx, address)
		require.NoError(t, err)
		second, err := cached.Geocode(ctx, address)
		require.NoError(t, err)

		assert.Equal(t, *coords, *first)
		assert.Equal(t, *first, *second)
		assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("hit")), 1e-9)
		assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("miss")), 1e-9)
		assert.Equal(t, 1, cached.Cache().Len())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		m := metrics.NewMetrics(prometheus.NewRegistry())
		cached := geocoding.NewCachedProvider(provider, geocoding.NewCache(), "google", m, slog.Default())

		provider.On("Geocode", ctx, address).Return(nil, geocoding.ErrNoResult).Once()
		provider.On("Geocode", ctx, address).Return(coords, nil).Once()

		_, err := cached.Geocode(ctx, address)
		require.ErrorIs(t, err, geocoding.ErrNoResult)
		assert.Zero(t, cached.Cache().Len())

		got, err := cached.Geocode(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, *coords, *got)
	})

	t.Run("nil result without error is a miss", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		m := metrics.NewMetrics(prometheus.NewRegistry())
		cached := geocoding.NewCachedProvider(provider, geocoding.NewCache(), "google", m, slog.Default())

		provider.On("Geocode", ctx, address).Return(nil, nil).Once()

		_, err := cached.Geocode(ctx, address)
		require.ErrorIs(t, err, geocoding.ErrNoResult)
	})

	t.Run("concurrent lookups are safe", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		m := metrics.NewMetrics(prometheus.NewRegistry())
		cached := geocoding.NewCachedProvider(provider, geocoding.NewCache(), "google", m, slog.Default())

		provider.On("Geocode", ctx, address).Return(coords, nil)

		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := cached.Geocode(ctx, address)
				assert.NoError(t, err)
				assert.Equal(t, *coords, *got)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, cached.Cache().Len())
	})
}
