package model

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestNewWatchRequest(t *testing.T) {
	tests := []struct {
		name      string
		movie     string
		keywords  []string
		theatres  []string
		locations []string
		want      WatchRequest
		wantErr   error
	}{
		{
			name:      "folds and trims fields",
			movie:     " Dune ",
			keywords:  []string{" Dune", "PART two ", ""},
			theatres:  []string{"PVR Forum", " INOX "},
			locations: []string{"Bangalore"},
			want: WatchRequest{
				MovieName: "Dune",
				Keywords:  []string{"dune", "part two"},
				Theatres:  []string{"pvr forum", "inox"},
				Locations: []string{"bangalore"},
			},
		},
		{
			name:      "any theatre wildcard",
			movie:     "Dune",
			keywords:  []string{"dune"},
			theatres:  []string{"ANY"},
			locations: []string{"bangalore", "chennai"},
			want: WatchRequest{
				MovieName:  "Dune",
				Keywords:   []string{"dune"},
				AnyTheatre: true,
				Locations:  []string{"bangalore", "chennai"},
			},
		},
		{
			name:      "any wins over named theatres",
			movie:     "Dune",
			keywords:  []string{"dune"},
			theatres:  []string{"pvr", "any"},
			locations: []string{"bangalore"},
			want: WatchRequest{
				MovieName:  "Dune",
				Keywords:   []string{"dune"},
				AnyTheatre: true,
				Locations:  []string{"bangalore"},
			},
		},
		{
			name:      "missing movie",
			keywords:  []string{"dune"},
			theatres:  []string{"any"},
			locations: []string{"bangalore"},
			wantErr:   ErrNoMovieName,
		},
		{
			name:      "blank keywords",
			movie:     "Dune",
			keywords:  []string{" ", ""},
			theatres:  []string{"any"},
			locations: []string{"bangalore"},
			wantErr:   ErrNoKeywords,
		},
		{
			name:     "no locations",
			movie:    "Dune",
			keywords: []string{"dune"},
			theatres: []string{"any"},
			wantErr:  ErrNoLocations,
		},
		{
			name:      "no theatres",
			movie:     "Dune",
			keywords:  []string{"dune"},
			locations: []string{"bangalore"},
			wantErr:   ErrNoTheatres,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewWatchRequest(tt.movie, tt.keywords, tt.theatres, tt.locations)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("NewWatchRequest() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewAlertKey(t *testing.T) {
	tests := []struct {
		name     string
		movie    string
		theatre  string
		location string
		want     AlertKey
	}{
		{
			name:     "movie keeps case",
			movie:    "Dune",
			theatre:  "PVR Forum",
			location: "Bangalore",
			want:     "Dune||pvr forum||bangalore",
		},
		{
			name:     "trims whitespace",
			movie:    " Dune ",
			theatre:  " pvr forum ",
			location: "bangalore ",
			want:     "Dune||pvr forum||bangalore",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAlertKey(tt.movie, tt.theatre, tt.location)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NewAlertKey() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAlertKeyParts(t *testing.T) {
	tests := []struct {
		name string
		key  AlertKey
		want []string
		ok   bool
	}{
		{
			name: "plain",
			key:  "Dune||pvr forum||bangalore",
			want: []string{"Dune", "pvr forum", "bangalore"},
			ok:   true,
		},
		{
			name: "separator inside theatre",
			key:  NewAlertKey("Dune", "PVR || Forum", "Bangalore"),
			want: []string{"Dune", "pvr || forum", "bangalore"},
			ok:   true,
		},
		{
			name: "empty theatre",
			key:  "Dune||||bangalore",
			want: []string{"Dune", "", "bangalore"},
			ok:   true,
		},
		{name: "legacy two-part key", key: "Dune||pvr forum"},
		{name: "overlapping separators", key: "Dune|||bangalore"},
		{name: "no separator", key: "Dune"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			movie, theatre, location, ok := tt.key.Parts()
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.want, []string{movie, theatre, location}); diff != "" {
				t.Errorf("Parts() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAlertStateClone(t *testing.T) {
	s := AlertState{"a||b||c": {Key: "a||b||c"}}
	c := s.Clone()
	c["x||y||z"] = AlertRecord{Key: "x||y||z"}

	if s.Has("x||y||z") {
		t.Error("clone mutation leaked into original")
	}
	if !c.Has("a||b||c") {
		t.Error("clone lost original key")
	}
}
