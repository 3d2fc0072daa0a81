package routing_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/routing"
	"github.com/UnknownOlympus/hermes/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var valletta = models.Coordinates{Latitude: 35.8989, Longitude: 14.5146}

// fakeGeocoder answers from a fixed table and counts provider calls.
type fakeGeocoder struct {
	mu     sync.Mutex
	points map[string]models.Coordinates
	calls  int
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (*models.Coordinates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	coords, ok := f.points[address]
	if !ok {
		return nil, geocoding.ErrNoResult
	}

	return &coords, nil
}

func (f *fakeGeocoder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// line builds n stops spread along a line north of Valletta, each in its own town.
func line(n int) ([]models.DeliveryStop, *fakeGeocoder) {
	geocoder := &fakeGeocoder{points: make(map[string]models.Coordinates)}
	stops := make([]models.DeliveryStop, 0, n)
	for i := range n {
		stop := models.DeliveryStop{
			Reference: fmt.Sprintf("BK-%02d", i),
			Street:    fmt.Sprintf("Triq %d", i),
			City:      fmt.Sprintf("Town %02d", i),
		}
		geocoder.points[stop.Address("Malta")] = models.Coordinates{
			Latitude:  valletta.Latitude + float64(n-i)/200,
			Longitude: valletta.Longitude,
		}
		stops = append(stops, stop)
	}

	return stops, geocoder
}

func newOptimizer(provider geocoding.Provider, exact routing.ExactOptimizer, limit int) *routing.Optimizer {
	return routing.NewOptimizer(provider, "fake", exact, routing.NewAliasTable(),
		routing.Config{WaypointLimit: limit, AddressSuffix: "Malta"},
		metrics.NewMetrics(prometheus.NewRegistry()), slog.Default())
}

func references(result routing.Result) []string {
	refs := make([]string, 0, len(result.Waypoints))
	for _, wp := range result.Waypoints {
		refs = append(refs, wp.StopReference)
	}

	return refs
}

func TestOptimize_ZeroAndOneStop(t *testing.T) {
	ctx := t.Context()

	t.Run("no stops makes no calls", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		exact := mocks.NewExactOptimizer(t)

		result, err := newOptimizer(provider, exact, 25).Optimize(ctx, nil, valletta)

		require.NoError(t, err)
		assert.Empty(t, result.Waypoints)
		assert.Equal(t, routing.StrategyTrivial, result.Strategy)
	})

	t.Run("one stop is geocoded but not optimized", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		exact := mocks.NewExactOptimizer(t)
		stop := models.DeliveryStop{Reference: "BK-1", Street: "Triq il-Kbira", City: "Mosta"}
		coords := &models.Coordinates{Latitude: 35.9092, Longitude: 14.4256}

		provider.On("Geocode", mock.Anything, "Triq il-Kbira, Mosta, Malta").Return(coords, nil).Once()

		result, err := newOptimizer(provider, exact, 25).Optimize(ctx, []models.DeliveryStop{stop}, valletta)

		require.NoError(t, err)
		require.Len(t, result.Waypoints, 1)
		assert.Equal(t, models.RouteWaypoint{StopReference: "BK-1", Coordinate: *coords, Order: 1}, result.Waypoints[0])
		assert.Equal(t, routing.StrategyTrivial, result.Strategy)
		assert.Zero(t, result.DurationSeconds)
	})

	t.Run("one stop that fails to geocode is excluded", func(t *testing.T) {
		provider := mocks.NewProvider(t)
		stop := models.DeliveryStop{Reference: "BK-1", City: "Atlantis"}

		provider.On("Geocode", mock.Anything, "Atlantis, Malta").Return(nil, geocoding.ErrNoResult).Once()

		result, err := newOptimizer(provider, nil, 25).Optimize(ctx, []models.DeliveryStop{stop}, valletta)

		require.NoError(t, err)
		assert.Empty(t, result.Waypoints)
		require.Len(t, result.Excluded, 1)
		assert.Equal(t, "BK-1", result.Excluded[0].Reference)
		assert.Equal(t, "Atlantis, Malta", result.Excluded[0].Address)
	})
}

func TestOptimize_StrategyBoundary(t *testing.T) {
	ctx := t.Context()
	const limit = 4

	t.Run("exactly limit stops use the exact optimizer", func(t *testing.T) {
		stops, geocoder := line(limit)
		exact := mocks.NewExactOptimizer(t)
		exact.On("OptimizeOrder", mock.Anything, valletta, mock.Anything, mock.Anything).
			Return(routing.ExactOutcome{Order: []int{2, 1, 0}, DistanceMeters: 9100, DurationSeconds: 1260}).Once()

		result, err := newOptimizer(geocoder, exact, limit).Optimize(ctx, stops, valletta)

		require.NoError(t, err)
		assert.Equal(t, routing.StrategyExact, result.Strategy)
		assert.Equal(t, []string{"BK-02", "BK-01", "BK-00", "BK-03"}, references(result))
		assert.InDelta(t, 9100, result.DistanceMeters, 1e-9)
		assert.InDelta(t, 1260, result.DurationSeconds, 1e-9)
		for i, wp := range result.Waypoints {
			assert.Equal(t, i+1, wp.Order)
		}
	})

	t.Run("limit plus one stops use the heuristic", func(t *testing.T) {
		stops, geocoder := line(limit + 1)
		exact := mocks.NewExactOptimizer(t)

		result, err := newOptimizer(geocoder, exact, limit).Optimize(ctx, stops, valletta)

		require.NoError(t, err)
		assert.Equal(t, routing.StrategyHeuristic, result.Strategy)
		assert.Equal(t, []string{"BK-04", "BK-03", "BK-02", "BK-01", "BK-00"}, references(result))
		assert.Zero(t, result.DurationSeconds)
		assert.Positive(t, result.DistanceMeters)
	})

	t.Run("exact destination is the last stop", func(t *testing.T) {
		stops, geocoder := line(3)
		exact := mocks.NewExactOptimizer(t)
		last := geocoder.points[stops[2].Address("Malta")]
		intermediates := []models.Coordinates{
			geocoder.points[stops[0].Address("Malta")],
			geocoder.points[stops[1].Address("Malta")],
		}
		exact.On("OptimizeOrder", mock.Anything, valletta, last, intermediates).
			Return(routing.ExactOutcome{Order: []int{0, 1}}).Once()

		result, err := newOptimizer(geocoder, exact, limit).Optimize(ctx, stops, valletta)

		require.NoError(t, err)
		assert.Equal(t, []string{"BK-00", "BK-01", "BK-02"}, references(result))
	})
}

func TestOptimize_ExactFallback(t *testing.T) {
	ctx := t.Context()

	t.Run("provider failure falls back to the heuristic", func(t *testing.T) {
		stops, geocoder := line(3)
		exact := mocks.NewExactOptimizer(t)
		exact.On("OptimizeOrder", mock.Anything, valletta, mock.Anything, mock.Anything).
			Return(routing.ExactOutcome{Failure: &routing.ExactFailure{Reason: "directions request failed", Err: assert.AnError}}).
			Once()

		result, err := newOptimizer(geocoder, exact, 25).Optimize(ctx, stops, valletta)

		require.NoError(t, err)
		assert.Equal(t, routing.StrategyHeuristicFallback, result.Strategy)
		assert.Equal(t, []string{"BK-02", "BK-01", "BK-00"}, references(result))
		assert.Zero(t, result.DurationSeconds)
	})

	t.Run("malformed permutation falls back to the heuristic", func(t *testing.T) {
		stops, geocoder := line(4)
		exact := mocks.NewExactOptimizer(t)
		exact.On("OptimizeOrder", mock.Anything, valletta, mock.Anything, mock.Anything).
			Return(routing.ExactOutcome{Order: []int{0, 0, 7}}).Once()

		result, err := newOptimizer(geocoder, exact, 25).Optimize(ctx, stops, valletta)

		require.NoError(t, err)
		assert.Equal(t, routing.StrategyHeuristicFallback, result.Strategy)
		assert.Len(t, result.Waypoints, 4)
	})

	t.Run("no exact optimizer configured", func(t *testing.T) {
		stops, geocoder := line(3)

		result, err := newOptimizer(geocoder, nil, 25).Optimize(ctx, stops, valletta)

		require.NoError(t, err)
		assert.Equal(t, routing.StrategyHeuristic, result.Strategy)
	})
}

func TestOptimize_CityClusters(t *testing.T) {
	geocoder := &fakeGeocoder{points: map[string]models.Coordinates{
		"Triq il-Kbira, Hamrun, Malta":   {Latitude: 35.8847, Longitude: 14.4844},
		"Triq San Ġużepp, Ħamrun, Malta": {Latitude: 35.8860, Longitude: 14.4870},
		"Triq il-Kungress, Mosta, Malta": {Latitude: 35.9092, Longitude: 14.4256},
	}}
	stops := []models.DeliveryStop{
		{Reference: "C", Street: "Triq il-Kungress", City: "Mosta"},
		{Reference: "A", Street: "Triq il-Kbira", City: "Hamrun"},
		{Reference: "B", Street: "Triq San Ġużepp", City: "Ħamrun"},
	}

	result, err := newOptimizer(geocoder, nil, 1).Optimize(t.Context(), stops, valletta)

	require.NoError(t, err)
	assert.Equal(t, routing.StrategyHeuristic, result.Strategy)
	assert.Equal(t, []string{"B", "A", "C"}, references(result))
}

func TestOptimize_Idempotent(t *testing.T) {
	ctx := t.Context()
	stops, geocoder := line(8)
	optimizer := newOptimizer(geocoder, nil, 5)

	first, err := optimizer.Optimize(ctx, stops, valletta)
	require.NoError(t, err)
	assert.Equal(t, 8, geocoder.Calls())
	assert.Equal(t, 8, optimizer.CacheSize())

	second, err := optimizer.Optimize(ctx, stops, valletta)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 8, geocoder.Calls(), "warm cache issues no geocoding calls")

	optimizer.ClearCache()
	assert.Zero(t, optimizer.CacheSize())

	_, err = optimizer.Optimize(ctx, stops, valletta)
	require.NoError(t, err)
	assert.Equal(t, 16, geocoder.Calls())
}

func TestOptimize_CachesAreNotShared(t *testing.T) {
	ctx := t.Context()
	stops, geocoder := line(3)

	_, err := newOptimizer(geocoder, nil, 1).Optimize(ctx, stops, valletta)
	require.NoError(t, err)
	_, err = newOptimizer(geocoder, nil, 1).Optimize(ctx, stops, valletta)
	require.NoError(t, err)

	assert.Equal(t, 6, geocoder.Calls())
}

func TestOptimize_ExcludesFailedStops(t *testing.T) {
	stops, geocoder := line(4)
	delete(geocoder.points, stops[1].Address("Malta"))

	result, err := newOptimizer(geocoder, nil, 1).Optimize(t.Context(), stops, valletta)

	require.NoError(t, err)
	assert.Len(t, result.Waypoints, 3)
	require.Len(t, result.Excluded, 1)
	assert.Equal(t, "BK-01", result.Excluded[0].Reference)
	assert.NotContains(t, references(result), "BK-01")
}

func TestOptimize_Errors(t *testing.T) {
	t.Run("invalid start", func(t *testing.T) {
		stops, geocoder := line(2)

		_, err := newOptimizer(geocoder, nil, 25).Optimize(t.Context(), stops, models.Coordinates{Latitude: 91})

		require.ErrorIs(t, err, routing.ErrInvalidStart)
		assert.Zero(t, geocoder.Calls())
	})

	t.Run("cancelled context", func(t *testing.T) {
		stops, geocoder := line(2)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := newOptimizer(geocoder, nil, 25).Optimize(ctx, stops, valletta)

		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestChooseStrategy(t *testing.T) {
	tests := []struct {
		stops int
		want  routing.Strategy
	}{
		{0, routing.StrategyTrivial},
		{1, routing.StrategyTrivial},
		{2, routing.StrategyExact},
		{25, routing.StrategyExact},
		{26, routing.StrategyHeuristic},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, routing.ChooseStrategy(tt.stops, routing.DefaultWaypointLimit), "stops=%d", tt.stops)
	}
}
