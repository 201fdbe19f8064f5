package watchfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ticketwatch/internal/model"
)

func TestLoadJSONList(t *testing.T) {
	got, err := Load("../../testdata/movies.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := []model.WatchRequest{
		{
			MovieName: "Dune Part Two",
			Keywords:  []string{"dune", "part two"},
			Theatres:  []string{"pvr forum", "cinepolis"},
			Locations: []string{"bangalore"},
		},
		{
			MovieName:  "Oppenheimer",
			Keywords:   []string{"oppenheimer"},
			AnyTheatre: true,
			Locations:  []string{"chennai", "mumbai"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("watches (-want +got):\n%s", diff)
	}
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
- movie: Tenet
  keywords: [tenet, imax]
  theatres: [INOX]
  locations: [Pune]
`)
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []model.WatchRequest{{
		MovieName: "Tenet",
		Keywords:  []string{"tenet", "imax"},
		Theatres:  []string{"inox"},
		Locations: []string{"pune"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("watches (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "not a list", data: `movie: Tenet`},
		{name: "missing keywords", data: `[{"movie": "Tenet", "theatres": ["any"], "locations": ["pune"]}]`, wantErr: model.ErrNoKeywords},
		{name: "missing locations", data: `[{"movie": "Tenet", "keywords": ["tenet"], "theatres": ["any"]}]`, wantErr: model.ErrNoLocations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	got, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff(0, len(got)); diff != "" {
		t.Errorf("count (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}
