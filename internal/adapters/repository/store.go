// Package repository keeps batch jobs and their per-item results.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/roofline/internal/domain/job"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/pkg/metrics"
)

// Store provides read/write access to jobs. Readers always get copies.
type Store interface {
	// Create stores a new job. Returns ErrExists if the ID is taken.
	Create(ctx context.Context, j job.Job) error
	// Get returns the job. Returns ErrNotFound if the job is unknown.
	Get(ctx context.Context, id string) (job.Job, error)
	// Delete forgets a job.
	Delete(ctx context.Context, id string)
	// MarkRunning moves a queued job to running.
	MarkRunning(ctx context.Context, id string) error
	// RecordItem stores the outcome of item i.
	RecordItem(ctx context.Context, id string, i int, est *model.RoofEstimate, itemErr error) error
	// Finish marks the job done.
	Finish(ctx context.Context, id string) error
	// Counts returns the number of jobs per status.
	Counts(ctx context.Context) map[job.Status]int
}

// MemoryStore implements Store with a mutex-guarded map. Finished jobs
// older than the retention window are pruned on Create.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*job.Job
	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		jobs:      make(map[string]*job.Job),
		retention: defaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, j job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return ErrExists
	}
	s.pruneLocked()
	c := j.Clone()
	s.jobs[j.ID] = &c
	return nil
}

func (s *MemoryStore) pruneLocked() {
	cutoff := s.now().Add(-s.retention)
	for id, j := range s.jobs {
		if j.Status == job.StatusDone && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return job.Job{}, ErrNotFound
	}
	return j.Clone(), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// MarkRunning implements Store.
func (s *MemoryStore) MarkRunning(_ context.Context, id string) error {
	return s.update(id, func(j *job.Job) error {
		if j.Status != job.StatusQueued {
			return ErrInvalidTransition
		}
		j.Status = job.StatusRunning
		return nil
	})
}

// RecordItem implements Store.
func (s *MemoryStore) RecordItem(_ context.Context, id string, i int, est *model.RoofEstimate, itemErr error) error {
	return s.update(id, func(j *job.Job) error {
		if i < 0 || i >= len(j.Items) {
			return ErrItemOutOfRange
		}
		if j.Status != job.StatusRunning {
			return ErrInvalidTransition
		}
		it := &j.Items[i]
		if itemErr != nil {
			it.Error = itemErr.Error()
			it.Estimate = nil
			j.Failed++
			return nil
		}
		if est != nil {
			c := est.Clone()
			it.Estimate = &c
		}
		j.Completed++
		return nil
	})
}

// Finish implements Store.
func (s *MemoryStore) Finish(_ context.Context, id string) error {
	err := s.update(id, func(j *job.Job) error {
		if j.Status == job.StatusDone {
			return ErrInvalidTransition
		}
		j.Status = job.StatusDone
		return nil
	})
	if err == nil {
		metrics.RecordJob(string(job.StatusDone))
	}
	return err
}

func (s *MemoryStore) update(id string, fn func(*job.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(j); err != nil {
		return err
	}
	j.UpdatedAt = s.now()
	return nil
}

// Counts implements Store.
func (s *MemoryStore) Counts(_ context.Context) map[job.Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[job.Status]int{
		job.StatusQueued:  0,
		job.StatusRunning: 0,
		job.StatusDone:    0,
	}
	for _, j := range s.jobs {
		out[j.Status]++
	}
	return out
}
