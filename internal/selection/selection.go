// Package selection holds the origin, destination and travel moment a user
// has chosen, and pushes every change to its subscribers.
package selection

import (
	"sync"
	"time"

	"github.com/couchcryptid/road-risk-playground/internal/domain"
)

// Snapshot is an immutable copy of the selection.
type Snapshot struct {
	Origin       *domain.GeoPoint    `json:"origin"`
	Destination  *domain.GeoPoint    `json:"destination"`
	TravelMoment domain.TravelMoment `json:"travel_moment"`
}

// Query returns the risk query for the snapshot, or false unless both points are set.
func (s Snapshot) Query() (domain.RiskQuery, bool) {
	if s.Origin == nil || s.Destination == nil {
		return domain.RiskQuery{}, false
	}
	return domain.RiskQuery{
		Origin:       *s.Origin,
		Destination:  *s.Destination,
		TravelMoment: s.TravelMoment,
	}, true
}

// Selection is the single writer of the (origin, destination, travel moment)
// tuple. Subscribers run synchronously, in subscription order, while the
// selection lock is held; they must not call back into the setters.
type Selection struct {
	mu          sync.Mutex
	loc         *time.Location
	origin      *domain.GeoPoint
	destination *domain.GeoPoint
	moment      domain.TravelMoment
	subscribers []func(Snapshot)
}

// New creates an empty selection whose travel moment defaults to now in loc.
func New(loc *time.Location) *Selection {
	if loc == nil {
		loc = time.UTC
	}
	return &Selection{
		loc:    loc,
		moment: domain.Now(loc),
	}
}

// Subscribe registers fn to receive every subsequent change.
func (s *Selection) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Snapshot returns the current selection.
func (s *Selection) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Location is the timezone travel moments are interpreted in.
func (s *Selection) Location() *time.Location { return s.loc }

// SetOrigin replaces the origin. Nil clears it.
func (s *Selection) SetOrigin(p *domain.GeoPoint) error {
	return s.setPoint(&s.origin, p)
}

// SetDestination replaces the destination. Nil clears it.
func (s *Selection) SetDestination(p *domain.GeoPoint) error {
	return s.setPoint(&s.destination, p)
}

// PickOrigin sets the origin from a "feature picked" payload. Unrecognized
// payloads are ignored and return nil.
func (s *Selection) PickOrigin(payload []byte) error {
	return s.pick(payload, s.SetOrigin)
}

// PickDestination sets the destination from a "feature picked" payload.
func (s *Selection) PickDestination(payload []byte) error {
	return s.pick(payload, s.SetDestination)
}

// SetTravelMoment replaces the travel moment. An empty value resets it to now.
func (s *Selection) SetTravelMoment(v string) error {
	m, err := domain.ParseTravelMoment(v, s.loc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m == s.moment {
		return nil
	}
	s.moment = m
	s.notify()
	return nil
}

func (s *Selection) pick(payload []byte, set func(*domain.GeoPoint) error) error {
	picked := domain.ResolvePickedFeature(payload)
	if !picked.OK() {
		return nil
	}
	return set(&picked.Point)
}

func (s *Selection) setPoint(field **domain.GeoPoint, p *domain.GeoPoint) error {
	if p != nil {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if domain.SamePoint(*field, p) {
		return nil
	}
	*field = domain.ClonePoint(p)
	s.notify()
	return nil
}

// notify must be called with s.mu held.
func (s *Selection) notify() {
	for _, fn := range s.subscribers {
		fn(s.snapshot())
	}
}

func (s *Selection) snapshot() Snapshot {
	return Snapshot{
		Origin:       domain.ClonePoint(s.origin),
		Destination:  domain.ClonePoint(s.destination),
		TravelMoment: s.moment,
	}
}
