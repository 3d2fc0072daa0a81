package models

import "strings"

// DeliveryStop is an immutable snapshot of a stop handed to the route optimizer.
type DeliveryStop struct {
	Reference string `json:"reference"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
}

// Address composes the geocoding query for the stop. Blank parts are skipped and
// the suffix (usually the country) is appended last.
func (s DeliveryStop) Address(suffix string) string {
	parts := make([]string, 0, 4)
	for _, part := range []string{s.Street, s.City, s.Postcode, suffix} {
		if p := strings.TrimSpace(part); p != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, ", ")
}

// RouteWaypoint is one entry of an optimized route. Order is 1-based.
type RouteWaypoint struct {
	StopReference string      `json:"stop_reference"`
	Coordinate    Coordinates `json:"coordinate"`
	Order         int         `json:"order"`
}
