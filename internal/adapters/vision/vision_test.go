package vision_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/roofline/internal/adapters/vision"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/sebdah/goldie/v2"
	. "github.com/smartystreets/goconvey/convey"
)

var denver = model.Coordinate{Latitude: 39.7392, Longitude: -104.9903}

func TestBuildPromptGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	withProperty := vision.BuildPrompt(denver,
		"Property type: single family. Building size: 2400 sq ft across 1 stories (estimated footprint 2400 sq ft). Year built: 1998.")
	g.Assert(t, "prompt_with_property", []byte(withProperty))

	withoutProperty := vision.BuildPrompt(model.Coordinate{Latitude: 40.7128, Longitude: -74.006}, "   ")
	g.Assert(t, "prompt_without_property", []byte(withoutProperty))
}

func TestExtractJSON(t *testing.T) {
	Convey("ExtractJSON finds the first balanced object", t, func() {
		for _, tc := range []struct {
			name string
			in   string
			want string
		}{
			{"bare", `{"a":1}`, `{"a":1}`},
			{"prose around", "Here is the analysis:\n```json\n{\"a\":{\"b\":2}}\n```\nThanks", `{"a":{"b":2}}`},
			{"braces in strings", `{"notes":"a } and { inside","x":1} trailing {"y":2}`, `{"notes":"a } and { inside","x":1}`},
			{"escaped quote", `{"notes":"he said \"}\"","x":1}`, `{"notes":"he said \"}\"","x":1}`},
			{"unbalanced opener skipped", `{ oops {"x":1}`, `{"x":1}`},
		} {
			Convey(tc.name, func() {
				got, err := vision.ExtractJSON(tc.in)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, tc.want)
			})
		}
	})

	Convey("Text without an object is ErrNoJSON", t, func() {
		_, err := vision.ExtractJSON("I could not see a roof.")
		So(errors.Is(err, vision.ErrNoJSON), ShouldBeTrue)

		_, err = vision.ExtractJSON(`{"unterminated": 1`)
		So(errors.Is(err, vision.ErrNoJSON), ShouldBeTrue)
	})
}

func TestParse(t *testing.T) {
	Convey("Given a full response wrapped in prose", t, func() {
		an, err := vision.Parse(`Sure. {"roofArea": 2450.5, "confidence": "High", "roofShape": "COMPLEX",
			"roofPolygon": [{"lat": 1, "lng": 2}, {"latitude": 1, "longitude": 3}, {"lat": 2, "lng": 3}],
			"estimatedPitch": "Steep", "notes": " two gables ", "includedFeaturesInArea": ["garage", " "]}`)
		So(err, ShouldBeNil)

		Convey("Every field is coerced into the canonical schema", func() {
			So(an.AreaSqFt, ShouldEqual, 2450.5)
			So(an.Confidence, ShouldEqual, model.ConfidenceHigh)
			So(an.ConfidenceRank, ShouldEqual, 3)
			So(an.RoofShape, ShouldEqual, model.ShapeComplex)
			So(an.EstimatedPitch, ShouldEqual, model.PitchSteep)
			So(an.Notes, ShouldEqual, "two gables")
			So(an.Polygon, ShouldHaveLength, 3)
			So(an.Polygon[1], ShouldResemble, model.Coordinate{Latitude: 1, Longitude: 3})
			So(an.IncludedFeatures, ShouldResemble, []string{"garage"})
		})
	})

	Convey("Braces in prose ahead of the answer are skipped", t, func() {
		an, err := vision.Parse("I measured the outline {see overlay}. Result:\n{\"roofArea\": 2450, \"confidence\": \"high\"}")
		So(err, ShouldBeNil)
		So(an.AreaSqFt, ShouldEqual, 2450.0)
		So(an.Confidence, ShouldEqual, model.ConfidenceHigh)
	})

	Convey("Optional fields default to empty", t, func() {
		an, err := vision.Parse(`{"RoofArea": "2,100 sq ft", "Confidence": "medium"}`)
		So(err, ShouldBeNil)
		So(an.AreaSqFt, ShouldEqual, 2100.0)
		So(an.Polygon, ShouldNotBeNil)
		So(an.Polygon, ShouldBeEmpty)
		So(an.IncludedFeatures, ShouldNotBeNil)
		So(an.IncludedFeatures, ShouldBeEmpty)
		So(an.RoofShape, ShouldEqual, model.ShapeUnknown)
		So(an.EstimatedPitch, ShouldEqual, model.PitchUnknown)
	})

	Convey("An unknown confidence keeps its string and ranks zero", t, func() {
		an, err := vision.Parse(`{"roofArea": 0, "confidence": "Very Sure"}`)
		So(err, ShouldBeNil)
		So(an.Confidence, ShouldEqual, model.Confidence("very sure"))
		So(an.ConfidenceRank, ShouldEqual, 0)
		So(an.AreaSqFt, ShouldEqual, 0.0)
	})

	Convey("Malformed answers are rejected", t, func() {
		for name, raw := range map[string]string{
			"missing area":       `{"confidence": "high"}`,
			"missing confidence": `{"roofArea": 1800}`,
			"blank confidence":   `{"roofArea": 1800, "confidence": " "}`,
			"negative area":      `{"roofArea": -5, "confidence": "low"}`,
			"non-numeric area":   `{"roofArea": "large", "confidence": "low"}`,
			"only prose braces":  `It is {big} and {wide}.`,
		} {
			Convey(name, func() {
				_, err := vision.Parse(raw)
				So(errors.Is(err, vision.ErrMalformedResponse), ShouldBeTrue)
			})
		}
	})
}

func TestHTTPClient(t *testing.T) {
	image := []byte("\x89PNG\r\n\x1a\nfake")

	Convey("Complete posts the image and prompt", t, func() {
		requests := make(chan map[string]any, 1)
		auth := make(chan string, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			requests <- body
			auth <- r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(map[string]string{"text": `{"roofArea": 1900, "confidence": "medium"}`})
		}))
		defer srv.Close()

		c := vision.NewHTTPClient(srv.URL, "token", vision.WithModel("roof-v1"), vision.WithMaxTokens(256))
		text, err := c.Complete(context.Background(), image, "measure")
		So(err, ShouldBeNil)
		So(text, ShouldContainSubstring, "roofArea")

		body := <-requests
		So(body["model"], ShouldEqual, "roof-v1")
		So(body["prompt"], ShouldEqual, "measure")
		So(body["media_type"], ShouldEqual, "image/png")
		So(body["max_tokens"], ShouldEqual, float64(256))
		So(body["image_base64"], ShouldEqual, base64.StdEncoding.EncodeToString(image))
		So(<-auth, ShouldEqual, "Bearer token")
	})

	Convey("A non-2xx answer is a status error", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := vision.NewHTTPClient(srv.URL, "token").Complete(context.Background(), image, "measure")
		So(errors.Is(err, vision.ErrBadStatus), ShouldBeTrue)
		var se *vision.StatusError
		So(errors.As(err, &se), ShouldBeTrue)
		So(se.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
	})
}

type stubClient struct {
	text   string
	err    error
	prompt string
	delay  time.Duration
}

func (s *stubClient) Complete(ctx context.Context, _ []byte, prompt string) (string, error) {
	s.prompt = prompt
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.text, s.err
}

func TestAnalyzer(t *testing.T) {
	ctx := context.Background()

	Convey("Given an analyzer over a stub client", t, func() {
		Convey("A good answer is parsed and the prompt carries the property summary", func() {
			stub := &stubClient{text: `{"roofArea": 2300, "confidence": "medium", "estimatedPitch": "moderate"}`}
			an, err := vision.NewAnalyzer(stub).Analyze(ctx, []byte("img"), denver, "Property type: condo.")
			So(err, ShouldBeNil)
			So(an.AreaSqFt, ShouldEqual, 2300.0)
			So(stub.prompt, ShouldContainSubstring, "Property records: Property type: condo.")
		})

		Convey("Garbage is never turned into an estimate", func() {
			stub := &stubClient{text: "The roof looks big."}
			_, err := vision.NewAnalyzer(stub).Analyze(ctx, []byte("img"), denver, "")
			So(errors.Is(err, vision.ErrNoJSON), ShouldBeTrue)
		})

		Convey("Transport errors propagate", func() {
			boom := errors.New("connection reset")
			_, err := vision.NewAnalyzer(&stubClient{err: boom}).Analyze(ctx, []byte("img"), denver, "")
			So(errors.Is(err, boom), ShouldBeTrue)
		})

		Convey("A slow client times out", func() {
			stub := &stubClient{text: `{"roofArea": 1, "confidence": "low"}`, delay: time.Second}
			_, err := vision.NewAnalyzer(stub, vision.WithTimeout(20*time.Millisecond)).Analyze(ctx, []byte("img"), denver, "")
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})
	})
}
