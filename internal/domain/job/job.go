// Package job models batch estimation jobs.
package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
)

// Status is the lifecycle state of a job.
type Status string

// Job states. Jobs only move forward.
const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
)

// Sentinel errors.
var (
	ErrNoItems      = errors.New("job has no items")
	ErrTooManyItems = errors.New("job has too many items")
)

// Item is one location to estimate. Estimate and Error are filled by the
// worker; exactly one of them is set once the item has run.
type Item struct {
	Latitude  float64             `json:"latitude"`
	Longitude float64             `json:"longitude"`
	Property  *property.Record    `json:"property,omitempty"`
	Estimate  *model.RoofEstimate `json:"estimate,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Coordinate returns the item location.
func (i Item) Coordinate() model.Coordinate {
	return model.Coordinate{Latitude: i.Latitude, Longitude: i.Longitude}
}

// Job is a batch of items processed together by one worker.
type Job struct {
	ID        string    `json:"job_id"`
	Status    Status    `json:"status"`
	Items     []Item    `json:"items"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New validates items and builds a queued job.
func New(id string, items []Item, maxItems int, now time.Time) (Job, error) {
	if len(items) == 0 {
		return Job{}, ErrNoItems
	}
	if maxItems > 0 && len(items) > maxItems {
		return Job{}, fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(items), maxItems)
	}
	for i, it := range items {
		if err := it.Coordinate().Validate(); err != nil {
			return Job{}, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return Job{
		ID:        id,
		Status:    StatusQueued,
		Items:     append([]Item(nil), items...),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Clone returns a copy that shares nothing mutable with j.
func (j Job) Clone() Job {
	out := j
	out.Items = make([]Item, len(j.Items))
	for i, it := range j.Items {
		if it.Estimate != nil {
			est := it.Estimate.Clone()
			it.Estimate = &est
		}
		out.Items[i] = it
	}
	return out
}
