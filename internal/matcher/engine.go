// Package matcher implements the watch request matching engine.
package matcher

import (
	"sort"
	"strings"

	"ticketwatch/internal/model"
)

// Match returns the distinct (theatre, location) pairs of listings that
// satisfy req, sorted by location then theatre.
// Every keyword must occur in the title (AND semantics).
// The listing's location must be one of the request's locations.
// Named theatres match by substring, the wildcard matches every theatre.
func Match(req model.WatchRequest, listings []model.Listing) []model.Match {
	if len(req.Keywords) == 0 {
		return nil
	}

	seen := make(map[model.Match]struct{})
	for _, l := range listings {
		if !req.HasLocation(strings.ToLower(l.LocationKey)) {
			continue
		}
		if !titleMatches(req.Keywords, l.Title) {
			continue
		}
		if !req.AnyTheatre && !theatreMatches(req.Theatres, l.TheatreName) {
			continue
		}
		seen[model.Match{
			TheatreName: strings.ToLower(l.TheatreName),
			LocationKey: strings.ToLower(l.LocationKey),
		}] = struct{}{}
	}

	matches := make([]model.Match, 0, len(seen))
	for m := range seen {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].LocationKey != matches[j].LocationKey {
			return matches[i].LocationKey < matches[j].LocationKey
		}
		return matches[i].TheatreName < matches[j].TheatreName
	})
	return matches
}

func titleMatches(keywords []string, title string) bool {
	title = strings.ToLower(title)
	for _, kw := range keywords {
		if !strings.Contains(title, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

func theatreMatches(filters []string, theatre string) bool {
	theatre = strings.ToLower(theatre)
	for _, f := range filters {
		if f == "" {
			continue
		}
		if strings.Contains(theatre, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
