package domain

import "fmt"

// GeoPoint is a labeled WGS-84 coordinate selected as origin or destination.
type GeoPoint struct {
	Lng   float64 `json:"lng"`
	Lat   float64 `json:"lat"`
	Label string  `json:"label"`
}

// Validate reports ErrCoordinateOutOfRange when the point is outside WGS-84
// bounds. NaN never passes.
func (p GeoPoint) Validate() error {
	if !(p.Lng >= -180 && p.Lng <= 180) {
		return fmt.Errorf("longitude %v: %w", p.Lng, ErrCoordinateOutOfRange)
	}
	if !(p.Lat >= -90 && p.Lat <= 90) {
		return fmt.Errorf("latitude %v: %w", p.Lat, ErrCoordinateOutOfRange)
	}
	return nil
}

// SamePoint reports whether a and b are both nil or hold identical values.
func SamePoint(a, b *GeoPoint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ClonePoint returns a copy of p so callers cannot mutate selection state.
func ClonePoint(p *GeoPoint) *GeoPoint {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
