package routing

import (
	"math"
	"sort"

	"github.com/UnknownOlympus/hermes/internal/geo"
	"github.com/UnknownOlympus/hermes/internal/models"
)

// placedStop is a stop with its geocoded position. index is its position in the input.
type placedStop struct {
	stop   models.DeliveryStop
	coords models.Coordinates
	index  int
}

type cityCluster struct {
	key      string
	name     string
	stops    []placedStop
	centroid models.Coordinates
}

// clusterOrder sequences stops by visiting whole cities: the nearest unvisited city centroid
// is chosen next, and inside a city stops are sorted by distance from the point where the
// route entered it. Ties are broken by city name and stop reference so the order is stable.
func clusterOrder(start models.Coordinates, stops []placedStop, aliases *AliasTable) []placedStop {
	clusters := groupByCity(stops, aliases)

	ordered := make([]placedStop, 0, len(stops))
	position := start
	entry := start
	for len(clusters) > 0 {
		next := nearestCluster(position, clusters)
		city := clusters[next]
		clusters = append(clusters[:next], clusters[next+1:]...)

		sortFrom(entry, city.stops)
		ordered = append(ordered, city.stops...)

		position = city.centroid
		entry = city.stops[len(city.stops)-1].coords
	}

	return ordered
}

func groupByCity(stops []placedStop, aliases *AliasTable) []*cityCluster {
	byKey := make(map[string]*cityCluster)
	var clusters []*cityCluster
	for _, s := range stops {
		key := aliases.key(s.stop.City)
		cluster, ok := byKey[key]
		if !ok {
			cluster = &cityCluster{key: key, name: aliases.Canonical(s.stop.City)}
			byKey[key] = cluster
			clusters = append(clusters, cluster)
		}
		cluster.stops = append(cluster.stops, s)
	}

	for _, cluster := range clusters {
		points := make([]models.Coordinates, 0, len(cluster.stops))
		for _, s := range cluster.stops {
			points = append(points, s.coords)
		}
		cluster.centroid, _ = geo.Centroid(points)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].name != clusters[j].name {
			return clusters[i].name < clusters[j].name
		}
		return clusters[i].key < clusters[j].key
	})

	return clusters
}

func nearestCluster(from models.Coordinates, clusters []*cityCluster) int {
	best, bestDist := 0, math.Inf(1)
	for i, cluster := range clusters {
		d := geo.Distance(from, cluster.centroid)
		// clusters are sorted by name, so strict comparison keeps the first name on ties
		if d < bestDist {
			best, bestDist = i, d
		}
	}

	return best
}

func sortFrom(entry models.Coordinates, stops []placedStop) {
	sort.SliceStable(stops, func(i, j int) bool {
		di, dj := geo.Distance(entry, stops[i].coords), geo.Distance(entry, stops[j].coords)
		if di != dj {
			return di < dj
		}
		if stops[i].stop.Reference != stops[j].stop.Reference {
			return stops[i].stop.Reference < stops[j].stop.Reference
		}

		return stops[i].index < stops[j].index
	})
}
