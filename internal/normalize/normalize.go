// Package normalize converts provider payloads into uniform listings.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"ticketwatch/internal/model"
)

// Provider names understood by Normalize.
const (
	ProviderBookMyShow = "bookmyshow"
	ProviderDistrict   = "district"
	ProviderRSS        = "rss"
)

var (
	// ErrUnknownProvider is returned for a provider with no registered layout.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrUnrecognizedPayload is returned when a payload does not have the
	// provider's expected shape.
	ErrUnrecognizedPayload = errors.New("unrecognized payload")
)

// Error describes a normalization failure for one provider fetch.
type Error struct {
	Provider string
	Location string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s/%s: %v", e.Provider, e.Location, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Providers lists the provider names Normalize accepts.
func Providers() []string {
	return []string{ProviderBookMyShow, ProviderDistrict, ProviderRSS}
}

// Normalize decodes raw with the layout of provider and returns the listings
// it contains, scoped to location. Any shape mismatch fails the whole payload.
func Normalize(provider string, raw []byte, location string) ([]model.Listing, error) {
	var (
		entries []entry
		err     error
	)
	switch provider {
	case ProviderBookMyShow:
		entries, err = bookMyShow(raw)
	case ProviderDistrict:
		entries, err = district(raw)
	case ProviderRSS:
		entries, err = rss(raw)
	default:
		err = ErrUnknownProvider
	}
	if err != nil {
		return nil, &Error{Provider: provider, Location: location, Err: err}
	}

	loc := fold(location)
	listings := make([]model.Listing, 0, len(entries))
	for _, e := range entries {
		listings = append(listings, model.Listing{
			Title:       e.title,
			TheatreName: e.theatre,
			LocationKey: loc,
		})
	}
	return listings, nil
}

// entry is one (title, theatre) pair already folded.
type entry struct {
	title   string
	theatre string
}

func bookMyShow(raw []byte) ([]entry, error) {
	var payload struct {
		Movies *[]struct {
			EventTitle string `json:"EventTitle"`
			Venues     *[]struct {
				VenueName string `json:"VenueName"`
			} `json:"Venues"`
		} `json:"movies"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}
	if payload.Movies == nil {
		return nil, fmt.Errorf("%w: missing movies", ErrUnrecognizedPayload)
	}

	var out []entry
	for i, m := range *payload.Movies {
		if m.Venues == nil {
			return nil, fmt.Errorf("%w: movie %d has no venues list", ErrUnrecognizedPayload, i)
		}
		for _, v := range *m.Venues {
			e, err := newEntry(m.EventTitle, v.VenueName)
			if err != nil {
				return nil, fmt.Errorf("movie %d: %w", i, err)
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func district(raw []byte) ([]entry, error) {
	var payload struct {
		Data *struct {
			Shows *[]struct {
				MovieName string `json:"movieName"`
				Cinemas   *[]struct {
					Name string `json:"name"`
				} `json:"cinemas"`
			} `json:"shows"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}
	if payload.Data == nil || payload.Data.Shows == nil {
		return nil, fmt.Errorf("%w: missing data.shows", ErrUnrecognizedPayload)
	}

	var out []entry
	for i, s := range *payload.Data.Shows {
		if s.Cinemas == nil {
			return nil, fmt.Errorf("%w: show %d has no cinemas list", ErrUnrecognizedPayload, i)
		}
		for _, c := range *s.Cinemas {
			e, err := newEntry(s.MovieName, c.Name)
			if err != nil {
				return nil, fmt.Errorf("show %d: %w", i, err)
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// rss reads a feed where every item is one showing: the item title is the
// movie and the first category (or the author) is the theatre.
func rss(raw []byte) ([]entry, error) {
	feed, err := gofeed.NewParser().ParseString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}

	out := make([]entry, 0, len(feed.Items))
	for i, item := range feed.Items {
		theatre := ""
		if len(item.Categories) > 0 {
			theatre = item.Categories[0]
		} else if item.Author != nil {
			theatre = item.Author.Name
		}
		e, err := newEntry(item.Title, theatre)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func newEntry(title, theatre string) (entry, error) {
	e := entry{title: fold(title), theatre: fold(theatre)}
	if e.title == "" {
		return entry{}, fmt.Errorf("%w: empty title", ErrUnrecognizedPayload)
	}
	if e.theatre == "" {
		return entry{}, fmt.Errorf("%w: empty theatre name", ErrUnrecognizedPayload)
	}
	return e, nil
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
