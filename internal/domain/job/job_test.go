package job_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/roofline/internal/domain/job"
	"github.com/okian/roofline/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	items := []job.Item{{Latitude: 39.7392, Longitude: -104.9903}, {Latitude: 40.7128, Longitude: -74.006}}

	Convey("A valid batch becomes a queued job", t, func() {
		j, err := job.New("j1", items, 10, now)
		So(err, ShouldBeNil)
		So(j.Status, ShouldEqual, job.StatusQueued)
		So(j.Items, ShouldHaveLength, 2)
		So(j.CreatedAt, ShouldEqual, now)

		items[0].Latitude = 0
		So(j.Items[0].Latitude, ShouldEqual, 39.7392)
		items[0].Latitude = 39.7392
	})

	Convey("Empty and oversized batches are rejected", t, func() {
		_, err := job.New("j", nil, 10, now)
		So(errors.Is(err, job.ErrNoItems), ShouldBeTrue)

		_, err = job.New("j", items, 1, now)
		So(errors.Is(err, job.ErrTooManyItems), ShouldBeTrue)
	})

	Convey("An invalid coordinate names the item", t, func() {
		_, err := job.New("j", []job.Item{items[0], {Latitude: 91}}, 0, now)
		So(errors.Is(err, model.ErrInvalidCoordinate), ShouldBeTrue)
		So(err.Error(), ShouldStartWith, "item 1:")
	})
}

func TestClone(t *testing.T) {
	Convey("Clone does not share estimates", t, func() {
		est := model.RoofEstimate{AreaSqFt: 2000, Polygon: model.Polygon{{Latitude: 1, Longitude: 1}}}
		j := job.Job{ID: "j", Items: []job.Item{{Estimate: &est}}}

		c := j.Clone()
		c.Items[0].Estimate.AreaSqFt = 1
		c.Items[0].Estimate.Polygon[0].Latitude = 5

		So(j.Items[0].Estimate.AreaSqFt, ShouldEqual, 2000)
		So(j.Items[0].Estimate.Polygon[0].Latitude, ShouldEqual, 1)
	})
}
