package domain

import "errors"

var (
	// ErrInvalidSelection marks a picked-feature payload with no usable point.
	ErrInvalidSelection = errors.New("invalid selection payload")

	// ErrCoordinateOutOfRange is returned when a point falls outside WGS-84 bounds.
	ErrCoordinateOutOfRange = errors.New("coordinate out of range")

	// ErrInvalidTravelMoment is returned for travel moments in an unrecognized format.
	ErrInvalidTravelMoment = errors.New("invalid travel moment")

	// ErrRequestFailed wraps transport failures, non-2xx statuses and malformed bodies.
	ErrRequestFailed = errors.New("risk request failed")

	// ErrGeocodingDisabled is returned when no geocoder is configured.
	ErrGeocodingDisabled = errors.New("geocoding disabled")

	// ErrStaleResponse marks a response whose request has been superseded.
	ErrStaleResponse = errors.New("stale risk response")
)
