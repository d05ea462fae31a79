// Package imagery fetches satellite tiles for a coordinate at several zoom levels.
package imagery

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// MapTypeSatellite is the only map type roof measurement uses.
const MapTypeSatellite = "satellite"

// maxImageBytes caps a tile body.
const maxImageBytes = 10 << 20

// TileProvider returns a raster image centred on a point.
type TileProvider interface {
	FetchImage(ctx context.Context, lat, lng float64, zoom int, size, mapType string) ([]byte, error)
}

// Client is a TileProvider for static-maps style HTTP endpoints:
// GET {base}?center=lat,lng&zoom=z&size=WxH&maptype=satellite&key=...
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient constructs a tile client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchImage downloads one tile.
func (c *Client) FetchImage(ctx context.Context, lat, lng float64, zoom int, size, mapType string) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, eris.Wrap(err, "imagery: parse base url")
	}
	q := u.Query()
	q.Set("center", strconv.FormatFloat(lat, 'f', 6, 64)+","+strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("zoom", strconv.Itoa(zoom))
	q.Set("size", size)
	q.Set("maptype", mapType)
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "imagery: build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "imagery: fetch zoom %d", zoom)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, eris.Wrapf(&StatusError{StatusCode: resp.StatusCode}, "imagery: fetch zoom %d", zoom)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "imagery: read zoom %d", zoom)
	}
	if len(body) == 0 {
		return nil, eris.Wrapf(ErrEmptyImage, "imagery: fetch zoom %d", zoom)
	}
	return body, nil
}
