package main

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedGeocoder []byte

func (g fixedGeocoder) ForwardGeocode(context.Context, string) ([]byte, error) { return g, nil }

func (g fixedGeocoder) ReverseGeocode(context.Context, float64, float64) ([]byte, error) {
	return g, nil
}

type failingGeocoder struct{}

func (failingGeocoder) ForwardGeocode(context.Context, string) ([]byte, error) {
	return nil, errors.New("mapbox unavailable")
}

func (failingGeocoder) ReverseGeocode(context.Context, float64, float64) ([]byte, error) {
	return nil, errors.New("mapbox unavailable")
}

func TestResolvePlace_Coordinates(t *testing.T) {
	pt, err := resolvePlace(context.Background(), nil, " 30.2672, -97.7431 ")
	require.NoError(t, err)
	assert.Equal(t, domain.GeoPoint{Lat: 30.2672, Lng: -97.7431}, pt)
	assert.Equal(t, "30.2672,-97.7431", label(pt))
}

func TestResolvePlace_OutOfRange(t *testing.T) {
	for _, place := range []string{"95,10", "NaN,NaN", "10,+Inf"} {
		_, err := resolvePlace(context.Background(), nil, place)
		assert.ErrorIs(t, err, domain.ErrCoordinateOutOfRange, place)
	}
}

func TestResolvePlace_CoordinatesReverseGeocoded(t *testing.T) {
	g := fixedGeocoder(`{"features":[{"center":[-97.74,30.27],"place_name":"Austin, Texas"}]}`)

	pt, err := resolvePlace(context.Background(), g, "30.2672,-97.7431")
	require.NoError(t, err)
	assert.Equal(t, domain.GeoPoint{Lat: 30.2672, Lng: -97.7431, Label: "Austin, Texas"}, pt)
	assert.Equal(t, "Austin, Texas", label(pt))
}

func TestResolvePlace_ReverseGeocodeFailureKeepsCoordinates(t *testing.T) {
	pt, err := resolvePlace(context.Background(), failingGeocoder{}, "30.2672,-97.7431")
	require.NoError(t, err)
	assert.Equal(t, "30.2672,-97.7431", label(pt))
}

func TestResolvePlace_Geocoded(t *testing.T) {
	g := fixedGeocoder(`{"features":[{"center":[-97.14,33.22],"place_name":"Denton, Texas"}]}`)

	pt, err := resolvePlace(context.Background(), g, "Denton, TX")
	require.NoError(t, err)
	assert.Equal(t, "Denton, Texas", label(pt))
	assert.InDelta(t, 33.22, pt.Lat, 1e-9)
}

func TestResolvePlace_NoGeocoder(t *testing.T) {
	_, err := resolvePlace(context.Background(), nil, "Denton, TX")
	assert.ErrorIs(t, err, domain.ErrGeocodingDisabled)
}

func TestResolvePlace_NoMatch(t *testing.T) {
	_, err := resolvePlace(context.Background(), fixedGeocoder(`{"features":[]}`), "Atlantis")
	assert.ErrorIs(t, err, domain.ErrInvalidSelection)
}
