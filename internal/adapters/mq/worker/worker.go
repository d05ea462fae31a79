// Package worker runs queued batch jobs through the roof estimator.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/roofline/internal/adapters/mq/queue"
	"github.com/okian/roofline/internal/domain/job"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/reconcile"
	"github.com/okian/roofline/pkg/logger"
	"github.com/okian/roofline/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
)

// Estimator produces a roof estimate for one request.
type Estimator interface {
	Estimate(ctx context.Context, req reconcile.Request) (model.RoofEstimate, error)
}

// Store is the slice of the job repository workers need.
type Store interface {
	Get(ctx context.Context, id string) (job.Job, error)
	MarkRunning(ctx context.Context, id string) error
	RecordItem(ctx context.Context, id string, i int, est *model.RoofEstimate, itemErr error) error
	Finish(ctx context.Context, id string) error
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
}

// Worker processes jobs one at a time.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	estimator Estimator
	store     Store
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, estimator Estimator, store Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		estimator: estimator,
		store:     store,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.process(ctx, task); err != nil {
				w.logger.Error(ctx, "error processing job",
					logger.String("job_id", task.JobID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for it to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs every item of one job. Item failures are recorded on the
// item; only store failures abort the job.
func (w *InMemoryWorker) process(ctx context.Context, task queue.Task) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	j, err := w.store.Get(ctx, task.JobID)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "job_lookup")
		return fmt.Errorf("load job %s: %w", task.JobID, err)
	}
	if err := w.store.MarkRunning(ctx, j.ID); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("start job %s: %w", j.ID, err)
	}
	metrics.RecordJob(string(job.StatusRunning))
	w.logger.Debug(ctx, "job started",
		logger.String("job_id", j.ID),
		logger.Int("items", len(j.Items)),
		logger.Duration("queued_for", start.Sub(task.EnqueuedAt)),
	)

	for i, it := range j.Items {
		est, estErr := w.estimator.Estimate(ctx, reconcile.Request{
			Coordinate: it.Coordinate(),
			Property:   it.Property,
		})
		var result *model.RoofEstimate
		if estErr == nil {
			result = &est
		} else {
			metrics.RecordErrorByComponent("worker", "estimate")
			w.logger.Warn(ctx, "item estimate failed",
				logger.String("job_id", j.ID), logger.Int("item", i), logger.Error(estErr))
		}
		if err := w.store.RecordItem(ctx, j.ID, i, result, estErr); err != nil {
			metrics.RecordWorkerError()
			return fmt.Errorf("record item %d of job %s: %w", i, j.ID, err)
		}
	}

	if err := w.store.Finish(ctx, j.ID); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("finish job %s: %w", j.ID, err)
	}
	w.logger.Info(ctx, "job done",
		logger.String("job_id", j.ID),
		logger.Int("items", len(j.Items)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A count below one means 2x NumCPU.
func NewPool(workerCount int, q Queue, estimator Estimator, store Store, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, estimator, store, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue so workers drain what is already queued, then
// waits for them. When ctx expires first the workers are told to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			if !timedOut {
				p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("worker_id", i))
			}
			timedOut = true
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
	return nil
}
