package property_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/roofline/internal/domain/geometry"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
	. "github.com/smartystreets/goconvey/convey"
)

func size(v float64) *float64 { return &v }

func TestNormalize(t *testing.T) {
	Convey("Given free-text property types", t, func() {
		cases := map[string]property.Category{
			"Single Family Residence": property.SingleFamily,
			"single-family":           property.SingleFamily,
			"SFR":                     property.SingleFamily,
			"Townhome":                property.Townhouse,
			"Row House":               property.Townhouse,
			"CONDOMINIUM":             property.Condo,
			"Apartment":               property.Condo,
			"Multi-Family (2-4)":      property.MultiFamily,
			"Duplex":                  property.MultiFamily,
			"Retail Store":            property.Commercial,
			"Office":                  property.Commercial,
			"barn":                    property.Unknown,
			"   ":                     property.Unknown,
		}
		for raw, want := range cases {
			So(property.Normalize(raw), ShouldEqual, want)
		}
	})

	Convey("Given a JSON record", t, func() {
		var r property.Record
		err := json.Unmarshal([]byte(`{"property_type":"Single Family","building_size_sq_ft":1800,"stories":2}`), &r)

		Convey("Then the category is normalised on decode", func() {
			So(err, ShouldBeNil)
			So(r.Type, ShouldEqual, property.SingleFamily)
			fp, ok := r.Footprint()
			So(ok, ShouldBeTrue)
			So(fp, ShouldEqual, 900)
		})
	})
}

func TestFactors(t *testing.T) {
	Convey("Given the factor table", t, func() {
		So(property.SingleFamily.Factors().Multiplier, ShouldEqual, 1.4)
		So(property.SingleFamily.Factors().MaxExpected, ShouldEqual, 1.8)
		So(property.SingleFamily.Factors().PitchFloor, ShouldBeTrue)
		So(property.Commercial.Factors().Multiplier, ShouldEqual, 1.05)
		So(property.Townhouse.Factors().PitchFloor, ShouldBeFalse)
		So(property.Category("castle").Factors(), ShouldResemble, property.Unknown.Factors())
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given property records", t, func() {
		a := &property.Record{Type: property.SingleFamily, BuildingSizeSqFt: size(2400), Stories: 1}
		b := &property.Record{Type: property.SingleFamily, BuildingSizeSqFt: size(2400)}
		c := &property.Record{Type: property.SingleFamily, BuildingSizeSqFt: size(2400), Stories: 2}

		Convey("Then the fingerprint is twelve hex characters and stable", func() {
			So(len(a.Fingerprint()), ShouldEqual, 12)
			So(a.Fingerprint(), ShouldEqual, a.Fingerprint())
		})

		Convey("Then a missing story count equals one story", func() {
			So(b.Fingerprint(), ShouldEqual, a.Fingerprint())
		})

		Convey("Then differing attributes change it", func() {
			So(c.Fingerprint(), ShouldNotEqual, a.Fingerprint())
		})

		Convey("Then absent data has a fixed marker", func() {
			var none *property.Record
			So(none.Fingerprint(), ShouldEqual, property.NoPropertyFingerprint)
		})
	})
}

func TestEstimate(t *testing.T) {
	coord := model.Coordinate{Latitude: 33.4484, Longitude: -112.074}

	Convey("Given a one-story single-family home of 2400 sq ft", t, func() {
		r := &property.Record{Type: property.SingleFamily, BuildingSizeSqFt: size(2400), Stories: 1}
		est, err := property.Estimate(r, &coord)

		Convey("Then the estimate is 3360 sq ft with medium confidence", func() {
			So(err, ShouldBeNil)
			So(est.AreaSqFt, ShouldEqual, 3360)
			So(est.Confidence, ShouldEqual, model.ConfidenceMedium)
			So(est.Method, ShouldEqual, model.MethodPropertyBased)
			So(est.RoofShape, ShouldEqual, model.ShapeComplex)
			So(est.EstimatedPitch, ShouldEqual, model.PitchModerate)
		})

		Convey("Then a synthetic polygon of the same area is attached", func() {
			So(len(est.Polygon), ShouldEqual, 4)
			So(geometry.Area(est.Polygon), ShouldAlmostEqual, 3360, 5)
		})
	})

	Convey("Given a small single-family home", t, func() {
		r := &property.Record{Type: property.SingleFamily, BuildingSizeSqFt: size(1500)}
		est, err := property.Estimate(r, nil)
		So(err, ShouldBeNil)
		So(est.RoofShape, ShouldEqual, model.ShapeSimple)
		So(est.Polygon, ShouldBeNil)
	})

	Convey("Given a two-story commercial building", t, func() {
		r := &property.Record{Type: property.Commercial, BuildingSizeSqFt: size(10000), Stories: 2}
		est, err := property.Estimate(r, nil)
		So(err, ShouldBeNil)
		So(est.AreaSqFt, ShouldEqual, 5250)
		So(est.RoofShape, ShouldEqual, model.ShapeUnknown)
		So(est.EstimatedPitch, ShouldEqual, model.PitchLow)
	})

	Convey("Given a record without a building size", t, func() {
		_, err := property.Estimate(&property.Record{Type: property.Condo}, nil)
		So(errors.Is(err, property.ErrInsufficientData), ShouldBeTrue)

		_, err = property.Estimate(nil, nil)
		So(errors.Is(err, property.ErrInsufficientData), ShouldBeTrue)
	})
}

func TestDefault(t *testing.T) {
	Convey("Given no data at all", t, func() {
		est := property.Default(nil)
		So(est.AreaSqFt, ShouldEqual, 2500)
		So(est.Confidence, ShouldEqual, model.ConfidenceLow)
		So(est.Method, ShouldEqual, model.MethodDefault)
		So(est.Polygon, ShouldBeNil)
	})
}
