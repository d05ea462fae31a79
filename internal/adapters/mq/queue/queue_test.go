package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue of capacity two", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		So(q.Len(ctx), ShouldEqual, 0)
		So(q.Cap(), ShouldEqual, 2)

		Convey("Enqueued tasks come out in order with a timestamp", func() {
			So(q.Enqueue(ctx, Task{JobID: "a"}), ShouldBeTrue)
			So(q.Enqueue(ctx, Task{JobID: "b"}), ShouldBeTrue)
			So(q.Len(ctx), ShouldEqual, 2)

			ch := q.Dequeue(ctx)
			first := <-ch
			So(first.JobID, ShouldEqual, "a")
			So(first.EnqueuedAt.IsZero(), ShouldBeFalse)
			So((<-ch).JobID, ShouldEqual, "b")
		})

		Convey("A full queue rejects without blocking", func() {
			So(q.Enqueue(ctx, Task{JobID: "a"}), ShouldBeTrue)
			So(q.Enqueue(ctx, Task{JobID: "b"}), ShouldBeTrue)
			So(q.Enqueue(ctx, Task{JobID: "c"}), ShouldBeFalse)
			So(q.Len(ctx), ShouldEqual, 2)
		})

		Convey("A cancelled context rejects", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(q.Enqueue(cctx, Task{JobID: "a"}), ShouldBeFalse)
		})

		Convey("Close drains then closes the channel", func() {
			So(q.Enqueue(ctx, Task{JobID: "a"}), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)
			So(q.Enqueue(ctx, Task{JobID: "b"}), ShouldBeFalse)
			So(q.Close(), ShouldBeNil)

			ch := q.Dequeue(ctx)
			task, ok := <-ch
			So(ok, ShouldBeTrue)
			So(task.JobID, ShouldEqual, "a")

			select {
			case _, ok = <-ch:
				So(ok, ShouldBeFalse)
			case <-time.After(100 * time.Millisecond):
				So("channel not closed", ShouldBeEmpty)
			}
		})
	})

	Convey("Producers and consumers run concurrently", t, func() {
		q := NewInMemoryQueue(WithCapacity(50))
		const producers, perProducer = 5, 40

		var consumed sync.WaitGroup
		consumed.Add(producers * perProducer)
		for i := 0; i < 3; i++ {
			go func() {
				for range q.Dequeue(ctx) {
					consumed.Done()
				}
			}()
		}

		var produced sync.WaitGroup
		for p := 0; p < producers; p++ {
			produced.Add(1)
			go func(p int) {
				defer produced.Done()
				for j := 0; j < perProducer; j++ {
					for !q.Enqueue(ctx, Task{JobID: fmt.Sprintf("%d-%d", p, j)}) {
						time.Sleep(time.Millisecond)
					}
				}
			}(p)
		}
		produced.Wait()
		consumed.Wait()
		So(q.Len(ctx), ShouldEqual, 0)
		So(q.Close(), ShouldBeNil)
	})
}
