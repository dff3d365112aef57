package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/twpayne/go-geom"
)

// RequestID identifies one issued risk request. IDs strictly increase per orchestrator.
type RequestID uint64

// RiskQuery is the immutable input of one risk request. It only exists while
// both origin and destination are selected.
type RiskQuery struct {
	Origin       GeoPoint
	Destination  GeoPoint
	TravelMoment TravelMoment
}

// ModelInputs is the feature map the backend derived for a route. It is
// passed through verbatim; keys include curvature, holiday, lighting,
// num_lanes, public_road, road_signs_present, road_type, school_season,
// speed_limit, time_of_day and weather.
type ModelInputs map[string]any

// Assessment is a successful risk response.
type Assessment struct {
	ModelInputs ModelInputs
	Prediction  float64
	Route       *geom.LineString
}

// RiskAssessor performs the risk call for a query.
type RiskAssessor interface {
	Assess(ctx context.Context, q RiskQuery) (Assessment, error)
}

// Phase is the lifecycle stage of the latest risk request.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// RequestState is the tagged variant Idle | Pending(id) | Success(id) | Error(id).
// ID is zero for Idle.
type RequestState struct {
	Phase Phase     `json:"phase"`
	ID    RequestID `json:"id,omitempty"`
}

func Idle() RequestState                  { return RequestState{Phase: PhaseIdle} }
func Pending(id RequestID) RequestState   { return RequestState{Phase: PhasePending, ID: id} }
func Succeeded(id RequestID) RequestState { return RequestState{Phase: PhaseSuccess, ID: id} }
func Failed(id RequestID) RequestState    { return RequestState{Phase: PhaseError, ID: id} }

// IsPending reports whether the state is Pending(id).
func (s RequestState) IsPending(id RequestID) bool {
	return s.Phase == PhasePending && s.ID == id
}

func (s RequestState) String() string {
	if s.Phase == PhaseIdle {
		return s.Phase.String()
	}
	return fmt.Sprintf("%s(%d)", s.Phase, s.ID)
}

// AssessmentEvent is the record of an accepted assessment handed to sinks.
type AssessmentEvent struct {
	SessionID    string       `json:"session_id"`
	RequestID    RequestID    `json:"request_id"`
	Origin       GeoPoint     `json:"origin"`
	Destination  GeoPoint     `json:"destination"`
	TravelMoment TravelMoment `json:"travel_moment"`
	Prediction   float64      `json:"prediction"`
	ModelInputs  ModelInputs  `json:"model_inputs"`
	AcceptedAt   time.Time    `json:"accepted_at"`
}
