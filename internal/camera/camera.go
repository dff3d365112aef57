// Package camera derives map viewport actions from the selected points.
package camera

import (
	"math"

	"github.com/couchcryptid/road-risk-playground/internal/domain"
)

const (
	// FlyToZoom is the zoom level used when a single point is selected.
	FlyToZoom = 15
	// FitPadding is the padding in pixels applied to all four sides of a fit.
	FitPadding = 35
)

// Kind is the viewport action variant.
type Kind int

const (
	None Kind = iota
	FlyTo
	FitBounds
)

func (k Kind) String() string {
	switch k {
	case FlyTo:
		return "fly_to"
	case FitBounds:
		return "fit_bounds"
	default:
		return "none"
	}
}

// MarshalText renders the kind name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Padding is per-side padding in pixels.
type Padding struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Bounds is a lat/lng box. It may have zero area.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Action is a viewport side effect. Center and Zoom are set for FlyTo;
// Bounds and Padding for FitBounds.
type Action struct {
	Kind    Kind             `json:"kind"`
	Center  *domain.GeoPoint `json:"center,omitempty"`
	Zoom    float64          `json:"zoom,omitempty"`
	Bounds  *Bounds          `json:"bounds,omitempty"`
	Padding *Padding         `json:"padding,omitempty"`
}

// ComputeViewportAction maps the current selection to a viewport action.
// It is pure: the same points always produce the same action.
func ComputeViewportAction(origin, destination *domain.GeoPoint) Action {
	switch {
	case origin != nil && destination != nil:
		return Action{
			Kind: FitBounds,
			Bounds: &Bounds{
				MinLat: math.Min(origin.Lat, destination.Lat),
				MaxLat: math.Max(origin.Lat, destination.Lat),
				MinLng: math.Min(origin.Lng, destination.Lng),
				MaxLng: math.Max(origin.Lng, destination.Lng),
			},
			Padding: &Padding{Top: FitPadding, Bottom: FitPadding, Left: FitPadding, Right: FitPadding},
		}
	case origin != nil:
		return flyTo(*origin)
	case destination != nil:
		return flyTo(*destination)
	default:
		return Action{Kind: None}
	}
}

func flyTo(p domain.GeoPoint) Action {
	return Action{Kind: FlyTo, Center: &p, Zoom: FlyToZoom}
}
