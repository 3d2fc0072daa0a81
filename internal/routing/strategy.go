package routing

// Strategy names how a route order was produced.
type Strategy string

const (
	// StrategyTrivial covers zero or one routable stop, where no optimization runs.
	StrategyTrivial Strategy = "trivial"
	// StrategyExact is the waypoint optimization of the routing provider.
	StrategyExact Strategy = "exact"
	// StrategyHeuristic is nearest-neighbour over city clusters.
	StrategyHeuristic Strategy = "heuristic"
	// StrategyHeuristicFallback is the heuristic used after the exact optimizer failed.
	StrategyHeuristicFallback Strategy = "heuristic_fallback"
)

// DefaultWaypointLimit is the largest stop count the exact optimizer accepts.
const DefaultWaypointLimit = 25

// ChooseStrategy picks the strategy for stopCount geocoded stops. The exact optimizer is
// used up to and including limit.
func ChooseStrategy(stopCount, limit int) Strategy {
	if stopCount <= 1 {
		return StrategyTrivial
	}
	if stopCount <= limit {
		return StrategyExact
	}

	return StrategyHeuristic
}
