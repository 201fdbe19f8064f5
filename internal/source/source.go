// Package source fetches raw listing payloads from cinema providers.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ticketwatch/internal/config"
)

const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchError reports a failed provider call for one location.
type FetchError struct {
	Provider string
	Location string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s/%s: %v", e.Provider, e.Location, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPSource fetches one provider's listings over HTTP. The URL template's
// {region} placeholder is replaced with the provider region of a location.
type HTTPSource struct {
	name    string
	tmpl    string
	regions map[string]string
	client  HTTPClient
}

// New creates an HTTPSource. With an empty regions table every location is
// supported and substituted verbatim.
func New(name, urlTemplate string, regions map[string]string, client HTTPClient) *HTTPSource {
	folded := make(map[string]string, len(regions))
	for k, v := range regions {
		folded[strings.ToLower(k)] = v
	}
	return &HTTPSource{
		name:    name,
		tmpl:    urlTemplate,
		regions: folded,
		client:  client,
	}
}

// FromConfig builds one source per configured provider.
func FromConfig(providers []config.ProviderConfig, client HTTPClient) []*HTTPSource {
	out := make([]*HTTPSource, 0, len(providers))
	for _, p := range providers {
		out = append(out, New(p.Name, p.URL, p.Regions, client))
	}
	return out
}

// Name returns the provider name, used to pick the normalization layout.
func (s *HTTPSource) Name() string { return s.name }

// Supports reports whether the provider serves location.
func (s *HTTPSource) Supports(location string) bool {
	if len(s.regions) == 0 {
		return true
	}
	_, ok := s.regions[strings.ToLower(location)]
	return ok
}

// URL returns the request URL for location.
func (s *HTTPSource) URL(location string) string {
	region, ok := s.regions[strings.ToLower(location)]
	if !ok {
		region = strings.ToLower(location)
	}
	return strings.ReplaceAll(s.tmpl, "{region}", url.PathEscape(region))
}

// Fetch downloads the raw payload for location.
func (s *HTTPSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	body, err := s.fetch(ctx, location)
	if err != nil {
		return nil, &FetchError{Provider: s.name, Location: location, Err: err}
	}
	return body, nil
}

func (s *HTTPSource) fetch(ctx context.Context, location string) ([]byte, error) {
	if !s.Supports(location) {
		return nil, fmt.Errorf("location not served")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(location), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; TicketWatch/1.0)")
	req.Header.Set("Accept", "application/json, application/rss+xml, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
