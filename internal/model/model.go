// Package model defines the domain types used across the application.
package model

import (
	"errors"
	"strings"
	"time"
)

// AnyTheatre is the theatre filter token that matches every theatre.
const AnyTheatre = "any"

// Validation errors returned by NewWatchRequest.
var (
	ErrNoMovieName = errors.New("movie name is required")
	ErrNoKeywords  = errors.New("at least one keyword is required")
	ErrNoLocations = errors.New("at least one location is required")
	ErrNoTheatres  = errors.New("at least one theatre or \"any\" is required")
)

// WatchRequest is a user's declared interest in a movie going on sale.
type WatchRequest struct {
	ID         int64
	MovieName  string
	Keywords   []string
	AnyTheatre bool
	Theatres   []string
	Locations  []string
	CreatedAt  time.Time
}

// NewWatchRequest builds a validated WatchRequest. Keywords, theatres and
// locations are trimmed and lower-cased; a single "any" theatre turns on the
// theatre wildcard.
func NewWatchRequest(movie string, keywords, theatres, locations []string) (WatchRequest, error) {
	movie = strings.TrimSpace(movie)
	if movie == "" {
		return WatchRequest{}, ErrNoMovieName
	}

	req := WatchRequest{
		MovieName: movie,
		Keywords:  foldAll(keywords),
		Locations: foldAll(locations),
	}
	if len(req.Keywords) == 0 {
		return WatchRequest{}, ErrNoKeywords
	}
	if len(req.Locations) == 0 {
		return WatchRequest{}, ErrNoLocations
	}

	for _, t := range foldAll(theatres) {
		if t == AnyTheatre {
			req.AnyTheatre = true
			continue
		}
		req.Theatres = append(req.Theatres, t)
	}
	if req.AnyTheatre {
		req.Theatres = nil
	}
	if !req.AnyTheatre && len(req.Theatres) == 0 {
		return WatchRequest{}, ErrNoTheatres
	}
	return req, nil
}

// HasLocation reports whether loc is one of the request's locations.
func (w WatchRequest) HasLocation(loc string) bool {
	for _, l := range w.Locations {
		if l == loc {
			return true
		}
	}
	return false
}

// TheatreLabel renders the theatre filter for display.
func (w WatchRequest) TheatreLabel() string {
	if w.AnyTheatre {
		return AnyTheatre
	}
	return strings.Join(w.Theatres, ", ")
}

// Listing is one normalized showing returned by a provider for a location.
// All fields are lower-case.
type Listing struct {
	Title       string
	TheatreName string
	LocationKey string
}

// Match is a (theatre, location) pair a watch request matched.
type Match struct {
	TheatreName string
	LocationKey string
}

// AlertKey identifies one alertable (movie, theatre, location) event.
type AlertKey string

const alertKeySep = "||"

// NewAlertKey derives the dedup key for a match. The movie name keeps its
// case; theatre and location are folded.
func NewAlertKey(movie, theatre, location string) AlertKey {
	return AlertKey(strings.TrimSpace(movie) + alertKeySep +
		strings.ToLower(strings.TrimSpace(theatre)) + alertKeySep +
		strings.ToLower(strings.TrimSpace(location)))
}

// Parts splits a key into movie, theatre and location. The movie ends at the
// first separator and the location starts after the last one, so a theatre
// name containing the separator survives. ok is false for keys with fewer
// than two separators.
func (k AlertKey) Parts() (movie, theatre, location string, ok bool) {
	s := string(k)
	first := strings.Index(s, alertKeySep)
	last := strings.LastIndex(s, alertKeySep)
	if first < 0 || last < first+len(alertKeySep) {
		return "", "", "", false
	}
	return s[:first], s[first+len(alertKeySep) : last], s[last+len(alertKeySep):], true
}

// AlertRecord is the persisted marker that an alert was fired.
// FiredAt is nil when the stored timestamp could not be read; the record
// still counts as fired.
type AlertRecord struct {
	Key     AlertKey
	FiredAt *time.Time
}

// AlertState maps every fired key to its record.
type AlertState map[AlertKey]AlertRecord

// Has reports whether key has already fired.
func (s AlertState) Has(key AlertKey) bool {
	_, ok := s[key]
	return ok
}

// Clone returns a shallow copy of the state.
func (s AlertState) Clone() AlertState {
	out := make(AlertState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func foldAll(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
