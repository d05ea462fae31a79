// Package propertydata looks up public property records by address.
package propertydata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/roofline/internal/domain/property"
	"github.com/okian/roofline/pkg/metrics"
	"github.com/rotisserie/eris"
)

// ErrProvider is returned for transport, status and decoding failures.
var ErrProvider = errors.New("property data provider error")

// Provider returns the record for an address, or nil when none exists.
type Provider interface {
	Lookup(ctx context.Context, address string) (*property.Record, error)
}

// Client queries an HTTP property-records endpoint:
// GET {base}?address=...&key=... answering with a record as JSON.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient constructs a property data client.
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

// Lookup implements Provider. A 404 means no record and is not an error.
func (c *Client) Lookup(ctx context.Context, address string) (*property.Record, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, eris.Wrap(err, "propertydata: parse base url")
	}
	q := u.Query()
	q.Set("address", strings.TrimSpace(address))
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "propertydata: build request")
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RecordCollaboratorLatency("property_data", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, eris.Wrapf(ErrProvider, "propertydata: call provider: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, eris.Wrapf(ErrProvider, "propertydata: status %d", resp.StatusCode)
	}

	var rec property.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, eris.Wrapf(ErrProvider, "propertydata: decode: %v", err)
	}
	return &rec, nil
}
