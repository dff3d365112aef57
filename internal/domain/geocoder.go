package domain

import (
	"context"
	"fmt"
)

// Geocoder resolves place names and coordinates into "feature picked"
// payloads, the same shape the search widget emits. Feed the result to
// ResolvePickedFeature.
type Geocoder interface {
	// ForwardGeocode converts a free-text query to a {"features":[...]} payload.
	ForwardGeocode(ctx context.Context, query string) ([]byte, error)

	// ReverseGeocode converts coordinates to a {"features":[...]} payload.
	ReverseGeocode(ctx context.Context, lat, lng float64) ([]byte, error)
}

// GeocodePlace forward-geocodes query and returns the first matching point.
func GeocodePlace(ctx context.Context, g Geocoder, query string) (GeoPoint, error) {
	if g == nil {
		return GeoPoint{}, ErrGeocodingDisabled
	}
	payload, err := g.ForwardGeocode(ctx, query)
	if err != nil {
		return GeoPoint{}, err
	}
	picked := ResolvePickedFeature(payload)
	if err := picked.Err(); err != nil {
		return GeoPoint{}, fmt.Errorf("no place found for %q: %w", query, err)
	}
	return picked.Point, nil
}

// LabelPoint fills an empty label from the reverse-geocoded place name. The
// coordinates are kept as given. Points that already have a label, and
// lookups that find nothing, come back unchanged.
func LabelPoint(ctx context.Context, g Geocoder, p GeoPoint) (GeoPoint, error) {
	if p.Label != "" || g == nil {
		return p, nil
	}
	payload, err := g.ReverseGeocode(ctx, p.Lat, p.Lng)
	if err != nil {
		return p, err
	}
	if picked := ResolvePickedFeature(payload); picked.OK() {
		p.Label = picked.Point.Label
	}
	return p, nil
}
