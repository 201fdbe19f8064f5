// Package watchfile imports watch requests from a YAML or JSON list.
package watchfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ticketwatch/internal/model"
)

type entry struct {
	Movie     string   `yaml:"movie"`
	Keywords  []string `yaml:"keywords"`
	Theatres  []string `yaml:"theatres"`
	Locations []string `yaml:"locations"`
}

// Load reads the watch list at path.
func Load(path string) ([]model.WatchRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watch file: %w", err)
	}
	reqs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reqs, nil
}

// Parse decodes a top-level list of watch entries. Every entry is
// validated; the first invalid one fails the whole list.
func Parse(data []byte) ([]model.WatchRequest, error) {
	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode watch list: %w", err)
	}

	reqs := make([]model.WatchRequest, 0, len(entries))
	for i, e := range entries {
		req, err := model.NewWatchRequest(e.Movie, e.Keywords, e.Theatres, e.Locations)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i+1, e.Movie, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
