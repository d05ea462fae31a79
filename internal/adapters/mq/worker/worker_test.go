package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/roofline/internal/adapters/mq/queue"
	"github.com/okian/roofline/internal/adapters/mq/worker"
	"github.com/okian/roofline/internal/adapters/repository"
	"github.com/okian/roofline/internal/domain/job"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/reconcile"
	logging "github.com/okian/roofline/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockEstimator struct {
	mu    sync.Mutex
	calls int
	fail  map[float64]error // keyed by latitude
}

func (m *mockEstimator) Estimate(_ context.Context, req reconcile.Request) (model.RoofEstimate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err, ok := m.fail[req.Coordinate.Latitude]; ok {
		return model.RoofEstimate{}, err
	}
	return model.RoofEstimate{
		AreaSqFt:   1000 + req.Coordinate.Latitude,
		Confidence: model.ConfidenceMedium,
		Method:     model.MethodVision,
	}, nil
}

func (m *mockEstimator) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func submit(ctx context.Context, store *repository.MemoryStore, q *queue.InMemoryQueue, id string, lats ...float64) {
	items := make([]job.Item, len(lats))
	for i, lat := range lats {
		items[i] = job.Item{Latitude: lat, Longitude: -100}
	}
	j, err := job.New(id, items, 0, time.Now())
	if err != nil {
		panic(err)
	}
	if err := store.Create(ctx, j); err != nil {
		panic(err)
	}
	if !q.Enqueue(ctx, queue.Task{JobID: id}) {
		panic("enqueue failed")
	}
}

func waitDone(ctx context.Context, store *repository.MemoryStore, id string) job.Job {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, err := store.Get(ctx, id)
		if err == nil && j.Status == job.StatusDone {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	j, _ := store.Get(ctx, id)
	return j
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue and job store", t, func() {
		_ = logging.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		store := repository.NewMemoryStore()
		est := &mockEstimator{fail: map[float64]error{41: errors.New("imagery down")}}

		w := worker.NewInMemoryWorker(q, est, store, worker.WithName("test-worker"))
		go w.Run(ctx)

		convey.Convey("When a job is processed", func() {
			submit(ctx, store, q, "j1", 40, 41, 42)
			j := waitDone(ctx, store, "j1")

			convey.Convey("Then every item is estimated and failures are recorded per item", func() {
				convey.So(j.Status, convey.ShouldEqual, job.StatusDone)
				convey.So(j.Completed, convey.ShouldEqual, 2)
				convey.So(j.Failed, convey.ShouldEqual, 1)
				convey.So(j.Items[0].Estimate.AreaSqFt, convey.ShouldEqual, 1040)
				convey.So(j.Items[1].Estimate, convey.ShouldBeNil)
				convey.So(j.Items[1].Error, convey.ShouldEqual, "imagery down")
				convey.So(j.Items[2].Estimate.AreaSqFt, convey.ShouldEqual, 1042)
				convey.So(est.count(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the task names an unknown job", func() {
			convey.So(q.Enqueue(ctx, queue.Task{JobID: "ghost"}), convey.ShouldBeTrue)
			submit(ctx, store, q, "j2", 10)

			convey.Convey("Then the worker skips it and keeps going", func() {
				j := waitDone(ctx, store, "j2")
				convey.So(j.Status, convey.ShouldEqual, job.StatusDone)
			})
		})

		convey.Convey("When shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers", t, func() {
		_ = logging.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(50))
		store := repository.NewMemoryStore()
		est := &mockEstimator{}
		pool := worker.NewPool(3, q, est, store)
		convey.So(pool.Size(), convey.ShouldEqual, 3)
		pool.Start(ctx)

		ids := []string{"a", "b", "c", "d", "e", "f"}
		for _, id := range ids {
			submit(ctx, store, q, id, 1, 2)
		}

		convey.Convey("Then every job finishes", func() {
			for _, id := range ids {
				convey.So(waitDone(ctx, store, id).Status, convey.ShouldEqual, job.StatusDone)
			}
			convey.So(est.count(), convey.ShouldEqual, 12)
		})

		convey.Convey("Then shutdown drains and closes the queue", func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			convey.So(pool.Shutdown(sctx), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
			for _, id := range ids {
				j, err := store.Get(ctx, id)
				convey.So(err, convey.ShouldBeNil)
				convey.So(j.Status, convey.ShouldEqual, job.StatusDone)
			}
		})
	})

	convey.Convey("A non-positive count uses a CPU-based default", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), &mockEstimator{}, repository.NewMemoryStore())
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
