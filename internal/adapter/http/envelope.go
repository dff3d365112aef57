package http

import (
	"encoding/json"
	"time"

	"github.com/couchcryptid/road-risk-playground/internal/domain"
)

// Outbound envelope types.
const (
	EnvelopeViewport = "VIEWPORT"
	EnvelopeView     = "VIEW"
	EnvelopeError    = "ERROR"
)

// Inbound command types.
const (
	CommandPickOrigin       = "PICK_ORIGIN"
	CommandPickDestination  = "PICK_DESTINATION"
	CommandSetOrigin        = "SET_ORIGIN"
	CommandSetDestination   = "SET_DESTINATION"
	CommandClearOrigin      = "CLEAR_ORIGIN"
	CommandClearDestination = "CLEAR_DESTINATION"
	CommandSetTravelMoment  = "SET_TRAVEL_MOMENT"

	CommandGeocodeOrigin      = "GEOCODE_ORIGIN"
	CommandGeocodeDestination = "GEOCODE_DESTINATION"
)

// Envelope wraps every message sent to a live client.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type errorData struct {
	Message string `json:"message"`
}

// command is one inbound message. Which fields are read depends on Type.
type command struct {
	Type    string           `json:"type"`
	Payload json.RawMessage  `json:"payload"`
	Point   *domain.GeoPoint `json:"point"`
	Moment  string           `json:"moment"`
	Query   string           `json:"query"`
}

func newEnvelope(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:      typ,
		Timestamp: domain.Clock().Now().UTC(),
		Data:      raw,
	})
}
