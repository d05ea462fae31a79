// Package geocode resolves free-text addresses to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/pkg/metrics"
	"github.com/rotisserie/eris"
)

// Sentinel errors for geocoding.
var (
	ErrNoMatch      = errors.New("address not found")
	ErrEmptyAddress = errors.New("address is empty")
	ErrProvider     = errors.New("geocoding provider error")
)

// Result is a geocoded address.
type Result struct {
	Coordinate       model.Coordinate `json:"coordinate"`
	FormattedAddress string           `json:"formatted_address"`
	City             string           `json:"city,omitempty"`
	State            string           `json:"state,omitempty"`
	ZipCode          string           `json:"zip_code,omitempty"`
}

// Geocoder resolves an address.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Result, error)
}

// Client speaks the Google Geocoding JSON format.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient constructs a geocoding client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type component struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type apiResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress  string      `json:"formatted_address"`
		AddressComponents []component `json:"address_components"`
		Geometry          struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode implements Geocoder using the first result.
func (c *Client) Geocode(ctx context.Context, address string) (Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Result{}, ErrEmptyAddress
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Result{}, eris.Wrap(err, "geocode: parse base url")
	}
	q := u.Query()
	q.Set("address", address)
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, eris.Wrap(err, "geocode: build request")
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RecordCollaboratorLatency("geocoder", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return Result{}, eris.Wrapf(ErrProvider, "geocode: call provider: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, eris.Wrapf(ErrProvider, "geocode: status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, eris.Wrapf(ErrProvider, "geocode: decode: %v", err)
	}
	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return Result{}, eris.Wrapf(ErrNoMatch, "geocode: %q", address)
	default:
		return Result{}, eris.Wrapf(ErrProvider, "geocode: status %s %s", body.Status, body.ErrorMessage)
	}
	if len(body.Results) == 0 {
		return Result{}, eris.Wrapf(ErrNoMatch, "geocode: %q", address)
	}

	first := body.Results[0]
	out := Result{
		Coordinate: model.Coordinate{
			Latitude:  first.Geometry.Location.Lat,
			Longitude: first.Geometry.Location.Lng,
		},
		FormattedAddress: first.FormattedAddress,
	}
	for _, comp := range first.AddressComponents {
		switch {
		case has(comp.Types, "locality"):
			out.City = comp.LongName
		case has(comp.Types, "administrative_area_level_1"):
			out.State = comp.ShortName
		case has(comp.Types, "postal_code"):
			out.ZipCode = comp.LongName
		}
	}
	if err := out.Coordinate.Validate(); err != nil {
		return Result{}, eris.Wrapf(ErrProvider, "geocode: %v", err)
	}
	return out, nil
}

func has(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

// String renders the result for logs.
func (r Result) String() string {
	return fmt.Sprintf("%s (%s)", r.FormattedAddress, r.Coordinate.Key())
}
