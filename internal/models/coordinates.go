package models

// Coordinates represents a geographical point defined by its latitude and longitude.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`  // Latitude of the geographical point, degrees.
	Longitude float64 `json:"longitude"` // Longitude of the geographical point, degrees.
}

// GeocodedPoint binds a composed address string to the coordinates returned for it.
type GeocodedPoint struct {
	AddressKey string // AddressKey is the exact address string sent to the provider.
	Coordinates
}
