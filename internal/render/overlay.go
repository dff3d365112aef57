// Package render turns orchestrator output into things a client can draw:
// a GeoJSON overlay of the markers and route, and the result rows.
package render

import (
	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Feature roles, also used as feature IDs.
const (
	RoleOrigin      = "origin"
	RoleDestination = "destination"
	RoleRoute       = "route"
)

// Overlay builds the map overlay. Markers follow the selection regardless of
// request state; the route feature is present only when route is non-nil.
func Overlay(origin, destination *domain.GeoPoint, route *geom.LineString) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, 3)}
	if origin != nil {
		fc.Features = append(fc.Features, marker(RoleOrigin, origin))
	}
	if destination != nil {
		fc.Features = append(fc.Features, marker(RoleDestination, destination))
	}
	if route != nil {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         RoleRoute,
			Geometry:   route,
			Properties: map[string]interface{}{"role": RoleRoute},
		})
	}
	return fc
}

func marker(role string, p *domain.GeoPoint) *geojson.Feature {
	return &geojson.Feature{
		ID:       role,
		Geometry: geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat}),
		Properties: map[string]interface{}{
			"role":  role,
			"label": p.Label,
		},
	}
}
