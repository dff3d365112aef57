package domain

import (
	"fmt"
	"strings"
	"time"
)

// TravelMomentLayout is the wire format of a travel moment: second precision, no offset.
const TravelMomentLayout = "2006-01-02T15:04:05"

// datetime-local inputs omit seconds.
const minuteLayout = "2006-01-02T15:04"

// TravelMoment is a wall-clock timestamp in TravelMomentLayout.
type TravelMoment string

// Time returns the moment as a time in loc.
func (m TravelMoment) Time(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(TravelMomentLayout, string(m), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", string(m), ErrInvalidTravelMoment)
	}
	return t, nil
}

// NewTravelMoment formats t in loc.
func NewTravelMoment(t time.Time, loc *time.Location) TravelMoment {
	return TravelMoment(t.In(loc).Format(TravelMomentLayout))
}

// Now returns the current moment in loc, using the package clock.
func Now(loc *time.Location) TravelMoment {
	return NewTravelMoment(clock.Now(), loc)
}

// ParseTravelMoment normalizes user input into a TravelMoment in loc.
// An empty string yields the current moment. Accepted forms are the wire
// layout, the same without seconds, and RFC 3339 with an explicit offset.
func ParseTravelMoment(s string, loc *time.Location) (TravelMoment, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Now(loc), nil
	}
	if t, err := time.ParseInLocation(TravelMomentLayout, s, loc); err == nil {
		return NewTravelMoment(t, loc), nil
	}
	if t, err := time.ParseInLocation(minuteLayout, s, loc); err == nil {
		return NewTravelMoment(t, loc), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewTravelMoment(t, loc), nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidTravelMoment)
}
