package domain

// FlightLeg is a scheduled flight as entered in the back office: an opaque
// flight identifier plus free-text origin and destination place names.
type FlightLeg struct {
	FlightID        string `json:"flight_id"`
	OriginName      string `json:"origin"`
	DestinationName string `json:"destination"`
}

// ResolvedRoute is a flight leg whose endpoints both geocoded.
// DistanceKm == 0 implies Origin == Destination, and then InitialBearingDeg is 0.
type ResolvedRoute struct {
	FlightID          string   `json:"flight_id"`
	OriginName        string   `json:"origin_name"`
	DestinationName   string   `json:"destination_name"`
	Origin            GeoPoint `json:"origin"`
	Destination       GeoPoint `json:"destination"`
	DistanceKm        float64  `json:"distance_km"`
	InitialBearingDeg float64  `json:"initial_bearing_deg"`
}

// MarkerPosition is the animated marker placement for one route.
type MarkerPosition struct {
	FlightID   string   `json:"flight_id"`
	Position   GeoPoint `json:"position"`
	HeadingDeg float64  `json:"heading_deg"`
}

// Frame is everything the map renderer needs for one tick.
type Frame struct {
	SessionID  string           `json:"session_id"`
	Generation uint64           `json:"generation"`
	Progress   float64          `json:"progress"`
	Routes     []ResolvedRoute  `json:"routes"`
	Viewport   Viewport         `json:"viewport"`
	Markers    []MarkerPosition `json:"markers"`
}
