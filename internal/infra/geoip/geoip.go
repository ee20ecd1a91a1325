package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Location is a resolved IP geography. Either field may be empty; a fully
// empty Location means the lookup produced no usable answer and nothing
// should be tallied for the geo dimension.
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// Unknown reports whether the location carries no usable geography.
func (l Location) Unknown() bool {
	return l.Country == "" && l.City == ""
}

// Resolver maps an IP address to a coarse geography. Implementations are
// collaborators; resolution failures are soft (the caller drops the geo
// dimension, never the click).
type Resolver interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// Nop is a Resolver that knows nothing. Used when no geo endpoint is
// configured and in tests.
type Nop struct{}

func (Nop) Lookup(ctx context.Context, ip string) (Location, error) {
	return Location{}, nil
}

const defaultTimeout = 2 * time.Second

// HTTPResolver queries an external geolocation service expected to answer
// GET {endpoint}/{ip} with a JSON body containing country and city fields.
type HTTPResolver struct {
	endpoint string
	client   *http.Client
}

// NewHTTPResolver builds a resolver against the given endpoint.
func NewHTTPResolver(endpoint string, timeout time.Duration) *HTTPResolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPResolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *HTTPResolver) Lookup(ctx context.Context, ip string) (Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", r.endpoint, ip), nil)
	if err != nil {
		return Location{}, fmt.Errorf("geoip: build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geoip: lookup %s: %w", ip, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geoip: lookup %s: unexpected status %d", ip, resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return Location{}, fmt.Errorf("geoip: decode response: %w", err)
	}
	return loc, nil
}
