// Package geo resolves coarse locations for client IPs.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Location is a best-effort country and city.
type Location struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// Locator looks up an IP. A nil Location with nil error means "unknown".
type Locator interface {
	Lookup(ctx context.Context, ip string) (*Location, error)
}

var ErrLookupFailed = errors.New("geolocation lookup failed")

// HTTPLocator queries an ip-api.com compatible JSON endpoint.
type HTTPLocator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPLocator(baseURL string, timeout time.Duration) *HTTPLocator {
	return &HTTPLocator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type ipAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
	City    string `json:"city"`
}

func (l *HTTPLocator) Lookup(ctx context.Context, ip string) (*Location, error) {
	if !Routable(ip) {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/json/%s?fields=status,message,country,city", l.baseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if body.Status != "success" {
		return nil, nil
	}
	return &Location{Country: body.Country, City: body.City}, nil
}

// Routable reports whether ip is a public address worth looking up.
func Routable(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return !(parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsUnspecified() ||
		parsed.IsLinkLocalUnicast() || parsed.IsMulticast())
}
