package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/UnknownOlympus/hermes/internal/models"
	"googlemaps.github.io/maps"
)

// ExactOptimizer orders intermediate waypoints between a fixed origin and destination.
// Failures are part of the outcome so the caller can fall back without inspecting errors.
type ExactOptimizer interface {
	OptimizeOrder(
		ctx context.Context, origin, destination models.Coordinates, intermediates []models.Coordinates,
	) ExactOutcome
}

// ExactOutcome is the answer of an ExactOptimizer. Order is a permutation of the
// intermediate indices when Failure is nil.
type ExactOutcome struct {
	Order           []int
	DistanceMeters  float64
	DurationSeconds float64
	Failure         *ExactFailure
}

// ExactFailure describes why the exact optimizer produced no usable order.
type ExactFailure struct {
	Reason string
	Err    error
}

func (f *ExactFailure) Error() string {
	if f.Err != nil {
		return f.Reason + ": " + f.Err.Error()
	}

	return f.Reason
}

func (f *ExactFailure) Unwrap() error { return f.Err }

func failed(reason string, err error) ExactOutcome {
	return ExactOutcome{Failure: &ExactFailure{Reason: reason, Err: err}}
}

// validPermutation reports whether order holds every index in [0, n) exactly once.
func validPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return false
		}
		seen[idx] = true
	}

	return true
}

// DirectionsClient is the part of the Google Maps client used for waypoint optimization.
type DirectionsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// GoogleOptimizer asks the Directions API for a driving route with optimized waypoint order.
type GoogleOptimizer struct {
	client DirectionsClient
	log    *slog.Logger
}

func NewGoogleOptimizer(client DirectionsClient, log *slog.Logger) *GoogleOptimizer {
	return &GoogleOptimizer{client: client, log: log}
}

func (g *GoogleOptimizer) OptimizeOrder(
	ctx context.Context, origin, destination models.Coordinates, intermediates []models.Coordinates,
) ExactOutcome {
	waypoints := make([]string, 0, len(intermediates))
	for _, point := range intermediates {
		waypoints = append(waypoints, formatLatLng(point))
	}

	req := &maps.DirectionsRequest{
		Origin:        formatLatLng(origin),
		Destination:   formatLatLng(destination),
		Waypoints:     waypoints,
		Optimize:      true,
		Mode:          maps.TravelModeDriving,
		DepartureTime: "now",
		TrafficModel:  maps.TrafficModelBestGuess,
		Region:        "mt",
	}

	routes, _, err := g.client.Directions(ctx, req)
	if err != nil {
		return failed("directions request failed", err)
	}
	if len(routes) == 0 {
		return failed("directions returned no route", nil)
	}

	route := routes[0]
	order := route.WaypointOrder
	if len(intermediates) > 0 && !validPermutation(order, len(intermediates)) {
		return failed(fmt.Sprintf("malformed waypoint order %v for %d waypoints", order, len(intermediates)), nil)
	}

	outcome := ExactOutcome{Order: append([]int(nil), order...)}
	if outcome.Order == nil {
		outcome.Order = []int{}
	}
	for _, leg := range route.Legs {
		if leg == nil {
			continue
		}
		outcome.DistanceMeters += float64(leg.Distance.Meters)
		duration := leg.Duration
		if leg.DurationInTraffic > 0 {
			duration = leg.DurationInTraffic
		}
		outcome.DurationSeconds += duration.Seconds()
	}
	g.log.DebugContext(ctx, "Directions optimized waypoint order", "waypoints", len(intermediates),
		"distance_m", outcome.DistanceMeters, "duration_s", outcome.DurationSeconds)

	return outcome
}

func formatLatLng(c models.Coordinates) string {
	return strconv.FormatFloat(c.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', 6, 64)
}
