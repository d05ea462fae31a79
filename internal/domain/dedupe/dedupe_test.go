package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/roofline/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("A new job ID is recorded once", func() {
			So(d.SeenAndRecord(ctx, "job-1"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "job-1"), ShouldBeTrue)
			So(d.Size(), ShouldEqual, 1)
		})

		Convey("Unrecord allows a retry", func() {
			d.SeenAndRecord(ctx, "job-1")
			d.Unrecord(ctx, "job-1")
			So(d.Size(), ShouldEqual, 0)
			So(d.SeenAndRecord(ctx, "job-1"), ShouldBeFalse)
		})

		Convey("Unrecording an unknown ID is a no-op", func() {
			d.Unrecord(ctx, "missing")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"job-1", "job-2", "job-3"} {
			So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
		}

		Convey("The oldest ID is evicted first", func() {
			So(d.SeenAndRecord(ctx, "job-4"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 3)

			So(d.SeenAndRecord(ctx, "job-2"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "job-3"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "job-4"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "job-1"), ShouldBeFalse)
		})

		Convey("Unrecording from the middle keeps the order intact", func() {
			d.Unrecord(ctx, "job-2")
			So(d.SeenAndRecord(ctx, "job-4"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "job-5"), ShouldBeFalse)

			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "job-3"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "job-5"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "job-1"), ShouldBeFalse)
		})

		Convey("Unrecording head and tail works", func() {
			d.Unrecord(ctx, "job-1")
			d.Unrecord(ctx, "job-3")
			So(d.Size(), ShouldEqual, 1)
			So(d.SeenAndRecord(ctx, "job-2"), ShouldBeTrue)
		})
	})

	Convey("Given a size of one", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1))
		So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
		So(d.SeenAndRecord(ctx, "b"), ShouldBeFalse)
		So(d.Size(), ShouldEqual, 1)
		So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))
		for i := 0; i < 1000; i++ {
			So(d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", i)), ShouldBeFalse)
		}
		So(d.Size(), ShouldEqual, 1000)
		So(d.SeenAndRecord(ctx, "job-0"), ShouldBeTrue)
	})
}

func TestDedupeConcurrency(t *testing.T) {
	ctx := context.Background()

	Convey("Concurrent submitters record each ID exactly once", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(10000))
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for g := 0; g < 10; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", j)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()
		So(fresh, ShouldEqual, 100)
		So(d.Size(), ShouldEqual, 100)
	})
}
