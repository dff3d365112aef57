//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/couchcryptid/road-risk-playground/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	payload, err := c.ForwardGeocode(context.Background(), "Austin, TX")
	require.NoError(t, err)

	picked := domain.ResolvePickedFeature(payload)
	require.True(t, picked.OK())
	assert.InDelta(t, 30.27, picked.Point.Lat, 0.1, "lat should be near Austin")
	assert.InDelta(t, -97.74, picked.Point.Lng, 0.1, "lng should be near Austin")
	assert.Contains(t, picked.Point.Label, "Austin")
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	payload, err := c.ReverseGeocode(context.Background(), 30.2672, -97.7431)
	require.NoError(t, err)

	picked := domain.ResolvePickedFeature(payload)
	require.True(t, picked.OK())
	assert.NotEmpty(t, picked.Point.Label)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 10, observability.NewMetricsForTesting())

	p1, err := cached.ForwardGeocode(context.Background(), "Dallas, TX")
	require.NoError(t, err)
	assert.Contains(t, domain.ResolvePickedFeature(p1).Point.Label, "Dallas")

	p2, err := cached.ForwardGeocode(context.Background(), "Dallas, TX")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}
