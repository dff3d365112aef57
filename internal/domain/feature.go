package domain

import (
	"bytes"
	"encoding/json"
)

// PickedKind discriminates the shapes a "feature picked" payload can take.
type PickedKind int

const (
	// PickedNone is an empty or unrecognized payload.
	PickedNone PickedKind = iota
	// PickedFeature is a bare GeoJSON feature.
	PickedFeature
	// PickedWrapped is {"feature": {...}}.
	PickedWrapped
	// PickedCollection is {"features": [...]}; the first feature is used.
	PickedCollection
)

func (k PickedKind) String() string {
	switch k {
	case PickedFeature:
		return "feature"
	case PickedWrapped:
		return "wrapped"
	case PickedCollection:
		return "collection"
	default:
		return "none"
	}
}

// Picked is the resolved form of a picked payload. Point is only meaningful
// when Kind is not PickedNone.
type Picked struct {
	Kind  PickedKind
	Point GeoPoint
}

// OK reports whether the payload produced a point.
func (p Picked) OK() bool { return p.Kind != PickedNone }

// Err returns ErrInvalidSelection for PickedNone.
func (p Picked) Err() error {
	if p.OK() {
		return nil
	}
	return ErrInvalidSelection
}

type pickedPayload struct {
	Type       string            `json:"type"`
	Geometry   *pickedGeometry   `json:"geometry"`
	Center     []float64         `json:"center"`
	PlaceName  string            `json:"place_name"`
	Properties pickedProperties  `json:"properties"`
	Feature    json.RawMessage   `json:"feature"`
	Features   []json.RawMessage `json:"features"`
}

type pickedGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type pickedProperties struct {
	Name        string `json:"name"`
	FullAddress string `json:"full_address"`
}

// ResolvePickedFeature normalizes a geocoder payload into a point.
// Shapes are tried in a fixed order: bare feature, {feature}, {features}.
// The first shape that yields coordinates wins; otherwise PickedNone.
func ResolvePickedFeature(payload []byte) Picked {
	p, ok := decodePicked(payload)
	if !ok {
		return Picked{}
	}

	if p.isFeature() {
		if pt, ok := p.point(); ok {
			return Picked{Kind: PickedFeature, Point: pt}
		}
	}
	if inner, ok := decodePicked(p.Feature); ok {
		if pt, ok := inner.point(); ok {
			return Picked{Kind: PickedWrapped, Point: pt}
		}
	}
	if len(p.Features) > 0 {
		if first, ok := decodePicked(p.Features[0]); ok {
			if pt, ok := first.point(); ok {
				return Picked{Kind: PickedCollection, Point: pt}
			}
		}
	}
	return Picked{}
}

func decodePicked(raw []byte) (pickedPayload, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return pickedPayload{}, false
	}
	var p pickedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return pickedPayload{}, false
	}
	return p, true
}

func (p pickedPayload) isFeature() bool {
	if p.Type == "Feature" {
		return true
	}
	_, ok := p.coordinates()
	return ok
}

func (p pickedPayload) coordinates() ([]float64, bool) {
	if p.Geometry == nil || len(p.Geometry.Coordinates) == 0 {
		return nil, false
	}
	var coords []float64
	if err := json.Unmarshal(p.Geometry.Coordinates, &coords); err != nil || len(coords) < 2 {
		return nil, false
	}
	return coords, true
}

// point reads [lng, lat] from geometry.coordinates, falling back to the
// Mapbox "center" field.
func (p pickedPayload) point() (GeoPoint, bool) {
	coords, ok := p.coordinates()
	if !ok {
		if len(p.Center) < 2 {
			return GeoPoint{}, false
		}
		coords = p.Center
	}
	return GeoPoint{Lng: coords[0], Lat: coords[1], Label: p.label()}, true
}

func (p pickedPayload) label() string {
	switch {
	case p.PlaceName != "":
		return p.PlaceName
	case p.Properties.Name != "":
		return p.Properties.Name
	default:
		return p.Properties.FullAddress
	}
}
