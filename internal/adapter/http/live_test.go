package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/road-risk-playground/internal/adapter/http"
	"github.com/couchcryptid/road-risk-playground/internal/adapter/riskapi"
	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/couchcryptid/road-risk-playground/internal/observability"
	"github.com/couchcryptid/road-risk-playground/internal/session"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureResponse = `{
	"model_inputs": {"speed_limit": 45},
	"prediction": 0.42,
	"mapbox_data": {"routes": [{"geometry": {"type": "LineString", "coordinates": [[-97.1, 32.7], [-97.3, 32.8]]}}]}
}`

type viewData struct {
	Selection struct {
		Destination *domain.GeoPoint `json:"destination"`
	} `json:"selection"`
	Request struct {
		Phase string `json:"phase"`
		ID    int    `json:"id"`
	} `json:"request"`
	Result *struct {
		Prediction float64 `json:"prediction"`
		Headline   string  `json:"headline"`
	} `json:"result"`
	Overlay struct {
		Features []json.RawMessage `json:"features"`
	} `json:"overlay"`
}

type liveFixture struct {
	server *httptest.Server
	live   *httpadapter.LiveHandler
	wsURL  string
}

func newLiveFixture(t *testing.T, allowedOrigins []string, geocoder domain.Geocoder) *liveFixture {
	t.Helper()
	risk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, fixtureResponse)
	}))
	t.Cleanup(risk.Close)

	factory := session.NewFactory(riskapi.NewClient(risk.URL, 5*time.Second, discard), nil, time.UTC, discard, observability.NewMetricsForTesting())
	live := httpadapter.NewLiveHandler(factory, geocoder, allowedOrigins, discard)
	srv := httptest.NewServer(httpadapter.NewServer(":0", factory, live, discard))
	t.Cleanup(func() {
		live.Close()
		srv.Close()
	})

	return &liveFixture{
		server: srv,
		live:   live,
		wsURL:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (f *liveFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, cmd map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

// readUntil reads envelopes until match returns true. Intermediate views may
// be coalesced, so tests only wait for the state they care about.
func readUntil(t *testing.T, conn *websocket.Conn, match func(httpadapter.Envelope) bool) httpadapter.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env httpadapter.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if match(env) {
			return env
		}
	}
}

func decodeView(t *testing.T, env httpadapter.Envelope) viewData {
	t.Helper()
	var v viewData
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func isType(typ string) func(httpadapter.Envelope) bool {
	return func(env httpadapter.Envelope) bool { return env.Type == typ }
}

func TestLive_InitialView(t *testing.T) {
	f := newLiveFixture(t, nil, nil)
	conn := f.dial(t)

	env := readUntil(t, conn, isType(httpadapter.EnvelopeView))
	v := decodeView(t, env)
	assert.Equal(t, "idle", v.Request.Phase)
	assert.Nil(t, v.Result)
	assert.Empty(t, v.Overlay.Features)
	assert.False(t, env.Timestamp.IsZero())
}

func TestLive_AssessmentRoundTrip(t *testing.T) {
	f := newLiveFixture(t, nil, nil)
	conn := f.dial(t)

	send(t, conn, map[string]any{"type": httpadapter.CommandSetTravelMoment, "moment": "2024-05-01T08:00:00"})
	send(t, conn, map[string]any{
		"type":    httpadapter.CommandPickOrigin,
		"payload": map[string]any{"geometry": map[string]any{"coordinates": []float64{-97.1, 32.7}}, "place_name": "X"},
	})

	vp := readUntil(t, conn, isType(httpadapter.EnvelopeViewport))
	assert.Contains(t, string(vp.Data), `"fly_to"`)

	send(t, conn, map[string]any{"type": httpadapter.CommandSetDestination, "point": map[string]any{"lng": -97.3, "lat": 32.8}})

	env := readUntil(t, conn, func(env httpadapter.Envelope) bool {
		return env.Type == httpadapter.EnvelopeView && decodeView(t, env).Request.Phase == "success"
	})
	v := decodeView(t, env)
	assert.Equal(t, 1, v.Request.ID)
	require.NotNil(t, v.Result)
	assert.Equal(t, 0.42, v.Result.Prediction)
	assert.Equal(t, "The risk of a crash was calculated to be 0.42", v.Result.Headline)
	assert.Len(t, v.Overlay.Features, 3)

	send(t, conn, map[string]any{"type": httpadapter.CommandClearOrigin})
	env = readUntil(t, conn, func(env httpadapter.Envelope) bool {
		return env.Type == httpadapter.EnvelopeView && decodeView(t, env).Request.Phase == "idle"
	})
	v = decodeView(t, env)
	assert.Nil(t, v.Result)
	assert.Len(t, v.Overlay.Features, 1)
}

func TestLive_RejectedCommands(t *testing.T) {
	f := newLiveFixture(t, nil, nil)
	conn := f.dial(t)

	tests := []struct {
		cmd  map[string]any
		want string
	}{
		{map[string]any{"type": "FLY_AWAY"}, "unknown command"},
		{map[string]any{"type": httpadapter.CommandSetOrigin}, "point is required"},
		{map[string]any{"type": httpadapter.CommandSetOrigin, "point": map[string]any{"lng": 200, "lat": 0}}, "coordinate out of range"},
		{map[string]any{"type": httpadapter.CommandSetTravelMoment, "moment": "tomorrow"}, "invalid travel moment"},
	}
	for _, tt := range tests {
		send(t, conn, tt.cmd)
		env := readUntil(t, conn, isType(httpadapter.EnvelopeError))
		assert.Contains(t, string(env.Data), tt.want)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	env := readUntil(t, conn, isType(httpadapter.EnvelopeError))
	assert.Contains(t, string(env.Data), "invalid command")
}

func TestLive_UnrecognizedPickIsIgnored(t *testing.T) {
	f := newLiveFixture(t, nil, nil)
	conn := f.dial(t)
	readUntil(t, conn, isType(httpadapter.EnvelopeView))

	send(t, conn, map[string]any{"type": httpadapter.CommandPickOrigin, "payload": map[string]any{"features": []any{}}})
	send(t, conn, map[string]any{"type": "NOPE"})

	// The next message is the error for NOPE: the empty pick produced nothing.
	env := readUntil(t, conn, func(httpadapter.Envelope) bool { return true })
	assert.Equal(t, httpadapter.EnvelopeError, env.Type)
}

func TestLive_OriginCheck(t *testing.T) {
	f := newLiveFixture(t, []string{"https://roadrisk.example"}, nil)

	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	header = http.Header{"Origin": {"https://roadrisk.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL, header)
	require.NoError(t, err)
	resp.Body.Close()
	conn.Close()
}

func TestLive_CloseDisconnectsClients(t *testing.T) {
	f := newLiveFixture(t, nil, nil)
	conn := f.dial(t)
	readUntil(t, conn, isType(httpadapter.EnvelopeView))

	f.live.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) || strings.Contains(err.Error(), "close"), err.Error())
}

type stubGeocoder map[string]string

func (g stubGeocoder) ForwardGeocode(_ context.Context, query string) ([]byte, error) {
	return []byte(g[query]), nil
}

func (g stubGeocoder) ReverseGeocode(_ context.Context, lat, lng float64) ([]byte, error) {
	if payload, ok := g[fmt.Sprintf("%.2f,%.2f", lat, lng)]; ok {
		return []byte(payload), nil
	}
	return []byte(`{"features":[]}`), nil
}

func TestLive_GeocodeCommands(t *testing.T) {
	f := newLiveFixture(t, nil, stubGeocoder{
		"fort worth": `{"features":[{"center":[-97.3,32.8],"place_name":"Fort Worth, Texas"}]}`,
		"atlantis":   `{"features":[]}`,
	})
	conn := f.dial(t)
	readUntil(t, conn, isType(httpadapter.EnvelopeView))

	send(t, conn, map[string]any{"type": httpadapter.CommandGeocodeDestination, "query": "fort worth"})
	env := readUntil(t, conn, func(env httpadapter.Envelope) bool {
		return env.Type == httpadapter.EnvelopeView && decodeView(t, env).Selection.Destination != nil
	})
	dest := decodeView(t, env).Selection.Destination
	assert.Equal(t, "Fort Worth, Texas", dest.Label)
	assert.InDelta(t, -97.3, dest.Lng, 1e-9)

	send(t, conn, map[string]any{"type": httpadapter.CommandGeocodeOrigin, "query": "atlantis"})
	env = readUntil(t, conn, isType(httpadapter.EnvelopeError))
	assert.Contains(t, string(env.Data), `no place found for \"atlantis\"`)

	send(t, conn, map[string]any{"type": httpadapter.CommandGeocodeOrigin})
	env = readUntil(t, conn, isType(httpadapter.EnvelopeError))
	assert.Contains(t, string(env.Data), "query is required")
}

func TestLive_GeocodeDisabled(t *testing.T) {
	f := newLiveFixture(t, nil, nil)
	conn := f.dial(t)

	send(t, conn, map[string]any{"type": httpadapter.CommandGeocodeOrigin, "query": "austin"})
	env := readUntil(t, conn, isType(httpadapter.EnvelopeError))
	assert.Contains(t, string(env.Data), "geocoding disabled")
}

func TestLive_SetPointIsReverseGeocoded(t *testing.T) {
	f := newLiveFixture(t, nil, stubGeocoder{
		"32.80,-97.30": `{"features":[{"center":[-97.3,32.8],"place_name":"Fort Worth, Texas"}]}`,
	})
	conn := f.dial(t)
	readUntil(t, conn, isType(httpadapter.EnvelopeView))

	send(t, conn, map[string]any{"type": httpadapter.CommandSetDestination, "point": map[string]any{"lng": -97.3, "lat": 32.8}})
	env := readUntil(t, conn, func(env httpadapter.Envelope) bool {
		return env.Type == httpadapter.EnvelopeView && decodeView(t, env).Selection.Destination != nil
	})
	assert.Equal(t, "Fort Worth, Texas", decodeView(t, env).Selection.Destination.Label)

	// A caller-supplied label wins; an unknown place stays unlabeled.
	send(t, conn, map[string]any{"type": httpadapter.CommandSetDestination, "point": map[string]any{"lng": -97.3, "lat": 32.8, "label": "Work"}})
	env = readUntil(t, conn, func(env httpadapter.Envelope) bool {
		if env.Type != httpadapter.EnvelopeView {
			return false
		}
		d := decodeView(t, env).Selection.Destination
		return d != nil && d.Label == "Work"
	})
	assert.Equal(t, "Work", decodeView(t, env).Selection.Destination.Label)

	send(t, conn, map[string]any{"type": httpadapter.CommandSetDestination, "point": map[string]any{"lng": 10.0, "lat": 50.0}})
	env = readUntil(t, conn, func(env httpadapter.Envelope) bool {
		if env.Type != httpadapter.EnvelopeView {
			return false
		}
		d := decodeView(t, env).Selection.Destination
		return d != nil && d.Lat == 50.0
	})
	assert.Empty(t, decodeView(t, env).Selection.Destination.Label)
}
