// Package domain models the route-risk selection and assessment data.
//
// # Points
//
// A [GeoPoint] is a WGS-84 longitude/latitude pair with a human-readable
// label. Longitude must fall within [-180, 180] and latitude within
// [-90, 90]; anything else is rejected with [ErrCoordinateOutOfRange].
// Points arrive from the geocoding widget as "feature picked" payloads and
// are normalized by [ResolvePickedFeature]:
//
//	{"type":"Feature","geometry":{"coordinates":[lng,lat]},"place_name":"..."}
//	{"feature": {...}}
//	{"features": [{...}, ...]}
//
// The first matching shape wins, in that order. Anything else resolves to
// [PickedNone] and is dropped without surfacing an error.
//
// # Travel moments
//
// A [TravelMoment] is a wall-clock timestamp with second precision and no
// offset, e.g. "2024-05-01T08:00:00". The risk API reads it as local time at
// the route. Moments are interpreted in a single configured location (UTC
// unless TRAVEL_TIMEZONE says otherwise); inputs carrying an explicit offset
// are converted into that location before the offset is dropped.
//
// # Requests
//
// Every risk query issued by the orchestrator is tagged with a [RequestID].
// IDs strictly increase for the lifetime of an orchestrator. A response is
// only accepted while its ID is the latest issued one and that request is
// still pending; everything else is a stale response and is discarded.
package domain
