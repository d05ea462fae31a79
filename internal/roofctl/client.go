package roofctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/roofline/internal/adapters/geocode"
	"github.com/okian/roofline/internal/domain/job"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
)

// ErrDuplicate marks a job submission the server had already seen.
var ErrDuplicate = errors.New("job already submitted")

// APIError is a non-2xx answer from the roofline server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// EstimateRequest is the body of POST /v1/roof/estimate.
type EstimateRequest struct {
	Latitude       float64          `json:"latitude"`
	Longitude      float64          `json:"longitude"`
	Property       *property.Record `json:"property,omitempty"`
	ManualAreaSqFt float64          `json:"manual_area_sq_ft,omitempty"`
}

// AddressEstimate is the answer of POST /v1/roof/estimate-by-address.
type AddressEstimate struct {
	Address  geocode.Result     `json:"address"`
	Property *property.Record   `json:"property,omitempty"`
	Estimate model.RoofEstimate `json:"estimate"`
}

// JobAck acknowledges a job submission.
type JobAck struct {
	JobID     string     `json:"job_id"`
	Status    job.Status `json:"status"`
	Duplicate bool       `json:"duplicate"`
}

// Client talks to a roofline server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks the service answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Estimate requests one estimate by coordinate.
func (c *Client) Estimate(ctx context.Context, req EstimateRequest) (model.RoofEstimate, error) {
	var out struct {
		Estimate model.RoofEstimate `json:"estimate"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/roof/estimate", req, &out); err != nil {
		return model.RoofEstimate{}, err
	}
	return out.Estimate, nil
}

// EstimateByAddress requests one estimate by street address.
func (c *Client) EstimateByAddress(ctx context.Context, address string, rec *property.Record) (AddressEstimate, error) {
	body := struct {
		Address  string           `json:"address"`
		Property *property.Record `json:"property,omitempty"`
	}{Address: address, Property: rec}
	var out AddressEstimate
	err := c.do(ctx, http.MethodPost, "/v1/roof/estimate-by-address", body, &out)
	return out, err
}

// SubmitJob submits a batch job. A duplicate submission returns the ack
// together with ErrDuplicate.
func (c *Client) SubmitJob(ctx context.Context, id string, items []job.Item) (JobAck, error) {
	body := struct {
		JobID string     `json:"job_id,omitempty"`
		Items []job.Item `json:"items"`
	}{JobID: id, Items: items}
	var ack JobAck
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", body, &ack); err != nil {
		return JobAck{}, err
	}
	if ack.Duplicate {
		return ack, ErrDuplicate
	}
	return ack, nil
}

// Job fetches a job by ID.
func (c *Client) Job(ctx context.Context, id string) (job.Job, error) {
	var out job.Job
	err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(id), nil, &out)
	return out, err
}

// WaitJob polls a job until it is done or ctx ends.
func (c *Client) WaitJob(ctx context.Context, id string, every time.Duration) (job.Job, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		j, err := c.Job(ctx, id)
		if err != nil {
			return job.Job{}, err
		}
		if j.Status == job.StatusDone {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
