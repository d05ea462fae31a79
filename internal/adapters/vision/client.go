package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client sends one image and prompt to a vision-capable model and returns
// its raw text answer.
type Client interface {
	Complete(ctx context.Context, image []byte, prompt string) (string, error)
}

// Default HTTP client settings.
const (
	DefaultModel     = "vision-large"
	DefaultMaxTokens = 1024
)

type completeRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	ImageBase64 string `json:"image_base64"`
	MediaType   string `json:"media_type"`
	MaxTokens   int    `json:"max_tokens"`
}

type completeResponse struct {
	Text string `json:"text"`
}

// HTTPClient posts JSON to a completion endpoint.
type HTTPClient struct {
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	http      *http.Client
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithModel sets the model name.
func WithModel(model string) ClientOption {
	return func(c *HTTPClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens caps the answer length.
func WithMaxTokens(n int) ClientOption {
	return func(c *HTTPClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewHTTPClient constructs a vision client for endpoint.
func NewHTTPClient(endpoint, apiKey string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:  endpoint,
		apiKey:    apiKey,
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		http:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete implements Client.
func (c *HTTPClient) Complete(ctx context.Context, image []byte, prompt string) (string, error) {
	body, err := json.Marshal(completeRequest{
		Model:       c.model,
		Prompt:      prompt,
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		MediaType:   mediaType(image),
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", eris.Wrap(err, "vision: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "vision: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "vision: call service")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", eris.Wrap(err, "vision: read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", eris.Wrap(&StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}, "vision: call service")
	}

	var out completeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", eris.Wrap(err, "vision: decode envelope")
	}
	return out.Text, nil
}

// mediaType sniffs the image format, defaulting to PNG.
func mediaType(image []byte) string {
	ct := http.DetectContentType(image)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/png"
}
