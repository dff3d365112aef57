package main

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/road-risk-playground/internal/domain"
)

// resolvePlace accepts "lat,lng" or a free-text place name.
func resolvePlace(ctx context.Context, g domain.Geocoder, s string) (domain.GeoPoint, error) {
	s = strings.TrimSpace(s)
	if pt, ok := parseLatLng(s); ok {
		if err := pt.Validate(); err != nil {
			return domain.GeoPoint{}, err
		}
		labeled, err := domain.LabelPoint(ctx, g, pt)
		if err != nil {
			slog.Warn("reverse geocode failed, keeping coordinates", "place", s, "error", err)
		}
		return labeled, nil
	}
	return domain.GeocodePlace(ctx, g, s)
}

func parseLatLng(s string) (domain.GeoPoint, bool) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return domain.GeoPoint{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.GeoPoint{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return domain.GeoPoint{}, false
	}
	return domain.GeoPoint{Lng: lng, Lat: lat}, true
}

func label(p domain.GeoPoint) string {
	if p.Label != "" {
		return p.Label
	}
	return strconv.FormatFloat(p.Lat, 'f', 4, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 4, 64)
}
