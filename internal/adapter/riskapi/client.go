// Package riskapi calls the drive-risk prediction backend.
package riskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/road-risk-playground/internal/domain"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const driveRiskPath = "/drive-risk"

// maxErrorBody caps how much of a failed response is quoted in errors.
const maxErrorBody = 512

// Client implements domain.RiskAssessor against POST {baseURL}/drive-risk.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a drive-risk client. A zero timeout means no client-side limit.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type request struct {
	OriginLat float64 `json:"o_lat"`
	OriginLng float64 `json:"o_lng"`
	DestLat   float64 `json:"d_lat"`
	DestLng   float64 `json:"d_lng"`
	DateStr   string  `json:"date_str"`
}

type response struct {
	ModelInputs domain.ModelInputs `json:"model_inputs"`
	Prediction  *float64           `json:"prediction"`
	MapboxData  struct {
		Routes []struct {
			Geometry json.RawMessage `json:"geometry"`
		} `json:"routes"`
	} `json:"mapbox_data"`
}

// Assess requests the risk of driving q. Every failure wraps domain.ErrRequestFailed.
func (c *Client) Assess(ctx context.Context, q domain.RiskQuery) (domain.Assessment, error) {
	body, err := json.Marshal(request{
		OriginLat: q.Origin.Lat,
		OriginLng: q.Origin.Lng,
		DestLat:   q.Destination.Lat,
		DestLng:   q.Destination.Lng,
		DateStr:   string(q.TravelMoment),
	})
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("marshal request: %w: %w", domain.ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+driveRiskPath, bytes.NewReader(body))
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("create request: %w: %w", domain.ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("drive-risk request: %w: %w", domain.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.Assessment{}, fmt.Errorf("%w: status %d: %s", domain.ErrRequestFailed, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return domain.Assessment{}, fmt.Errorf("decode response: %w: %w", domain.ErrRequestFailed, err)
	}

	a, err := r.assessment()
	if err != nil {
		return domain.Assessment{}, err
	}
	c.logger.Debug("drive-risk response", "prediction", a.Prediction, "route_coords", a.Route.NumCoords())
	return a, nil
}

func (r response) assessment() (domain.Assessment, error) {
	if r.Prediction == nil {
		return domain.Assessment{}, fmt.Errorf("%w: response has no prediction", domain.ErrRequestFailed)
	}
	if r.ModelInputs == nil {
		return domain.Assessment{}, fmt.Errorf("%w: response has no model_inputs", domain.ErrRequestFailed)
	}
	if len(r.MapboxData.Routes) == 0 {
		return domain.Assessment{}, fmt.Errorf("%w: response has no routes", domain.ErrRequestFailed)
	}

	route, err := decodeRoute(r.MapboxData.Routes[0].Geometry)
	if err != nil {
		return domain.Assessment{}, err
	}
	return domain.Assessment{
		ModelInputs: r.ModelInputs,
		Prediction:  *r.Prediction,
		Route:       route,
	}, nil
}

func decodeRoute(raw json.RawMessage) (*geom.LineString, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: route has no geometry", domain.ErrRequestFailed)
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode route geometry: %w: %w", domain.ErrRequestFailed, err)
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, fmt.Errorf("%w: route geometry is %T, want LineString", domain.ErrRequestFailed, g)
	}
	return ls, nil
}
