// Package routing sequences delivery stops. Small stop sets go to an exact waypoint
// optimizer; large ones, or any set the exact optimizer fails on, are ordered by a
// nearest-neighbour heuristic over city clusters.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/hermes/internal/geo"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidStart is returned when the start position is not a valid coordinate.
var ErrInvalidStart = errors.New("invalid route start position")

// Config tunes an Optimizer.
type Config struct {
	WaypointLimit      int    // Largest stop count handed to the exact optimizer.
	AddressSuffix      string // Appended to every composed address, usually the country.
	GeocodeParallelism int    // Concurrent geocoding lookups per optimization.
}

// ExcludedStop is a stop left out of the route because it could not be geocoded.
type ExcludedStop struct {
	Reference string `json:"reference"`
	Address   string `json:"address"`
	Reason    string `json:"reason"`
}

// Result is an optimized route. DurationSeconds is only known on the exact path;
// DistanceMeters is the provider's road distance there and the great-circle length of the
// sequence otherwise.
type Result struct {
	Waypoints       []models.RouteWaypoint `json:"waypoints"`
	Excluded        []ExcludedStop         `json:"excluded,omitempty"`
	Strategy        Strategy               `json:"strategy"`
	DistanceMeters  float64                `json:"distance_meters"`
	DurationSeconds float64                `json:"duration_seconds"`
}

// Optimizer owns its geocoding cache; two optimizers never share entries.
type Optimizer struct {
	geocoder *geocoding.CachedProvider
	exact    ExactOptimizer
	aliases  *AliasTable
	cfg      Config
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewOptimizer creates an optimizer geocoding through provider. exact may be nil, in which
// case every route with more than one stop is ordered heuristically.
func NewOptimizer(
	provider geocoding.Provider,
	providerName string,
	exact ExactOptimizer,
	aliases *AliasTable,
	cfg Config,
	m *metrics.Metrics,
	log *slog.Logger,
) *Optimizer {
	if cfg.WaypointLimit <= 0 {
		cfg.WaypointLimit = DefaultWaypointLimit
	}
	if cfg.GeocodeParallelism <= 0 {
		cfg.GeocodeParallelism = 4
	}
	if aliases == nil {
		aliases = NewAliasTable()
	}

	return &Optimizer{
		geocoder: geocoding.NewCachedProvider(provider, geocoding.NewCache(), providerName, m, log),
		exact:    exact,
		aliases:  aliases,
		cfg:      cfg,
		metrics:  m,
		log:      log,
	}
}

// ClearCache drops every cached geocoding result.
func (o *Optimizer) ClearCache() {
	o.geocoder.Cache().Clear()
}

// CacheSize returns the number of cached addresses.
func (o *Optimizer) CacheSize() int {
	return o.geocoder.Cache().Len()
}

// Optimize returns the visiting order of stops starting from start. Stops that fail to
// geocode are reported in Result.Excluded; provider failures never fail the call.
// Only an invalid start or a cancelled context return an error.
func (o *Optimizer) Optimize(ctx context.Context, stops []models.DeliveryStop, start models.Coordinates) (Result, error) {
	if !geo.IsValidGPSCoordinates(start.Latitude, start.Longitude) {
		return Result{}, fmt.Errorf("%w: %f,%f", ErrInvalidStart, start.Latitude, start.Longitude)
	}

	if len(stops) == 0 {
		o.metrics.RouteOptimization.WithLabelValues(string(StrategyTrivial)).Inc()
		return Result{Waypoints: []models.RouteWaypoint{}, Strategy: StrategyTrivial}, nil
	}

	placed, excluded, err := o.geocodeAll(ctx, stops)
	if err != nil {
		return Result{}, err
	}

	result := Result{Excluded: excluded, Strategy: ChooseStrategy(len(placed), o.cfg.WaypointLimit)}
	if result.Strategy == StrategyExact && o.exact == nil {
		result.Strategy = StrategyHeuristic
	}

	var ordered []placedStop
	switch result.Strategy {
	case StrategyTrivial:
		ordered = placed
	case StrategyExact:
		var outcome ExactOutcome
		ordered, outcome = o.exactOrder(ctx, start, placed)
		if outcome.Failure != nil {
			o.log.WarnContext(ctx, "Exact route optimization failed, using city clusters",
				"stops", len(placed), "error", outcome.Failure)
			result.Strategy = StrategyHeuristicFallback
			ordered = clusterOrder(start, placed, o.aliases)
		} else {
			result.DistanceMeters = outcome.DistanceMeters
			result.DurationSeconds = outcome.DurationSeconds
		}
	default:
		ordered = clusterOrder(start, placed, o.aliases)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	result.Waypoints = make([]models.RouteWaypoint, 0, len(ordered))
	path := make([]models.Coordinates, 0, len(ordered)+1)
	path = append(path, start)
	for i, s := range ordered {
		result.Waypoints = append(result.Waypoints, models.RouteWaypoint{
			StopReference: s.stop.Reference,
			Coordinate:    s.coords,
			Order:         i + 1,
		})
		path = append(path, s.coords)
	}
	if result.Strategy != StrategyExact {
		result.DistanceMeters = geo.PathLength(path)
	}

	o.metrics.RouteOptimization.WithLabelValues(string(result.Strategy)).Inc()
	o.log.InfoContext(ctx, "Route optimized", "strategy", result.Strategy, "stops", len(stops),
		"routed", len(result.Waypoints), "excluded", len(result.Excluded))

	return result, nil
}

// geocodeAll resolves every stop concurrently. The returned stops keep input order.
func (o *Optimizer) geocodeAll(ctx context.Context, stops []models.DeliveryStop) ([]placedStop, []ExcludedStop, error) {
	type lookup struct {
		address string
		coords  *models.Coordinates
		err     error
	}
	lookups := make([]lookup, len(stops))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.GeocodeParallelism)
	for i, stop := range stops {
		address := stop.Address(o.cfg.AddressSuffix)
		lookups[i].address = address
		group.Go(func() error {
			lookups[i].coords, lookups[i].err = o.geocoder.Geocode(gctx, address)
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("geocoding interrupted: %w", err)
	}

	placed := make([]placedStop, 0, len(stops))
	var excluded []ExcludedStop
	for i, l := range lookups {
		if l.err != nil {
			excluded = append(excluded, ExcludedStop{Reference: stops[i].Reference, Address: l.address, Reason: l.err.Error()})
			o.log.WarnContext(ctx, "Stop excluded from route", "reference", stops[i].Reference,
				"address", l.address, "error", l.err)
			continue
		}
		placed = append(placed, placedStop{stop: stops[i], coords: *l.coords, index: i})
	}

	return placed, excluded, nil
}

// exactOrder sends the last stop as destination and the others as intermediates.
func (o *Optimizer) exactOrder(ctx context.Context, start models.Coordinates, placed []placedStop) ([]placedStop, ExactOutcome) {
	last := placed[len(placed)-1]
	intermediates := make([]models.Coordinates, 0, len(placed)-1)
	for _, s := range placed[:len(placed)-1] {
		intermediates = append(intermediates, s.coords)
	}

	outcome := o.exact.OptimizeOrder(ctx, start, last.coords, intermediates)
	if outcome.Failure != nil {
		return nil, outcome
	}
	if !validPermutation(outcome.Order, len(intermediates)) {
		outcome.Failure = &ExactFailure{Reason: fmt.Sprintf("malformed waypoint order %v", outcome.Order)}
		return nil, outcome
	}

	ordered := make([]placedStop, 0, len(placed))
	for _, idx := range outcome.Order {
		ordered = append(ordered, placed[idx])
	}

	return append(ordered, last), outcome
}
