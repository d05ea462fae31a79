package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/roofline/internal/adapters/geocode"
	"github.com/okian/roofline/internal/adapters/http/api"
	"github.com/okian/roofline/internal/adapters/repository"
	service "github.com/okian/roofline/internal/app"
	"github.com/okian/roofline/internal/domain/job"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
	"github.com/okian/roofline/internal/domain/reconcile"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	lastRequest reconcile.Request
	lastAddress string
	lastItems   []job.Item

	estimateErr error
	addressErr  error
	submitErr   error
	duplicate   bool
	jobs        map[string]job.Job
}

func (m *mockDependencies) Estimate(_ context.Context, req reconcile.Request) (model.RoofEstimate, error) {
	m.lastRequest = req
	if m.estimateErr != nil {
		return model.RoofEstimate{}, m.estimateErr
	}
	if err := req.Coordinate.Validate(); err != nil {
		return model.RoofEstimate{}, err
	}
	return model.RoofEstimate{
		AreaSqFt:   2200,
		Confidence: model.ConfidenceHigh,
		Method:     model.MethodVision,
	}, nil
}

func (m *mockDependencies) EstimateByAddress(_ context.Context, address string, rec *property.Record) (service.AddressEstimate, error) {
	m.lastAddress = address
	if m.addressErr != nil {
		return service.AddressEstimate{}, m.addressErr
	}
	return service.AddressEstimate{
		Address:  geocode.Result{FormattedAddress: address, City: "Austin", State: "TX"},
		Property: rec,
		Estimate: model.RoofEstimate{AreaSqFt: 1900, Confidence: model.ConfidenceMedium, Method: model.MethodVision},
	}, nil
}

func (m *mockDependencies) SubmitJob(_ context.Context, id string, items []job.Item) (job.Job, bool, error) {
	m.lastItems = items
	if m.submitErr != nil {
		return job.Job{}, false, m.submitErr
	}
	if id == "" {
		id = "generated"
	}
	status := job.StatusQueued
	if m.duplicate {
		status = job.StatusDone
	}
	return job.Job{ID: id, Status: status, Items: items}, m.duplicate, nil
}

func (m *mockDependencies) Job(_ context.Context, id string) (job.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return job.Job{}, fmt.Errorf("get %s: %w", id, repository.ErrNotFound)
	}
	return j, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}})
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestEstimateHandler(t *testing.T) {
	Convey("Given the estimate endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When the request carries a valid coordinate and property", func() {
			w := do(mux, http.MethodPost, "/v1/roof/estimate",
				`{"latitude":30.2672,"longitude":-97.7431,"property":{"property_type":"Single Family","building_size_sq_ft":1800,"stories":2}}`)

			Convey("Then the estimate is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["success"], ShouldEqual, true)
				est := body["estimate"].(map[string]interface{})
				So(est["area_sq_ft"], ShouldEqual, 2200.0)
				So(est["method"], ShouldEqual, "vision")
			})

			Convey("Then the property type is normalized on decode", func() {
				So(deps.lastRequest.Property, ShouldNotBeNil)
				So(deps.lastRequest.Property.Type, ShouldEqual, property.SingleFamily)
				So(deps.lastRequest.Property.Stories, ShouldEqual, 2)
			})

			Convey("Then a request ID is attached", func() {
				So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			})
		})

		Convey("When a manual area is supplied", func() {
			w := do(mux, http.MethodPost, "/v1/roof/estimate", `{"latitude":30,"longitude":-97,"manual_area_sq_ft":1750}`)

			Convey("Then it is passed through", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastRequest.ManualAreaSqFt, ShouldEqual, 1750)
			})
		})

		Convey("When the coordinate is out of range", func() {
			w := do(mux, http.MethodPost, "/v1/roof/estimate", `{"latitude":95,"longitude":-97}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When the coordinate is missing", func() {
			w := do(mux, http.MethodPost, "/v1/roof/estimate", `{"latitude":30}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/v1/roof/estimate", `{"latitude":`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body has unknown fields", func() {
			w := do(mux, http.MethodPost, "/v1/roof/estimate", `{"latitude":30,"longitude":-97,"lat":1}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the manual area is negative", func() {
			w := do(mux, http.MethodPost, "/v1/roof/estimate", `{"latitude":30,"longitude":-97,"manual_area_sq_ft":-1}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the method is wrong", func() {
			w := do(mux, http.MethodGet, "/v1/roof/estimate", "")

			Convey("Then the route does not match", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})

		Convey("When the service is not ready", func() {
			deps.estimateErr = service.ErrNotStarted
			w := do(mux, http.MethodPost, "/v1/roof/estimate", `{"latitude":30,"longitude":-97}`)

			Convey("Then it is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When estimation fails unexpectedly", func() {
			deps.estimateErr = reconcile.ErrNoEstimate
			w := do(mux, http.MethodPost, "/v1/roof/estimate", `{"latitude":30,"longitude":-97}`)

			Convey("Then it is an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeBody(w)["code"], ShouldEqual, "internal")
			})
		})
	})
}

func TestEstimateByAddressHandler(t *testing.T) {
	Convey("Given the estimate-by-address endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When the address resolves", func() {
			w := do(mux, http.MethodPost, "/v1/roof/estimate-by-address", `{"address":"  100 Congress Ave  "}`)

			Convey("Then the address and estimate are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastAddress, ShouldEqual, "100 Congress Ave")
				body := decodeBody(w)
				So(body["success"], ShouldEqual, true)
				So(body["address"].(map[string]interface{})["city"], ShouldEqual, "Austin")
				So(body["estimate"].(map[string]interface{})["area_sq_ft"], ShouldEqual, 1900.0)
			})
		})

		Convey("When the address is blank", func() {
			w := do(mux, http.MethodPost, "/v1/roof/estimate-by-address", `{"address":" "}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		errCases := []struct {
			name   string
			err    error
			status int
		}{
			{"no geocoding match", fmt.Errorf("geocode: %w", geocode.ErrNoMatch), http.StatusUnprocessableEntity},
			{"a geocoder failure", fmt.Errorf("geocode: %w", geocode.ErrProvider), http.StatusBadGateway},
			{"no geocoder configured", service.ErrGeocoderUnavailable, http.StatusServiceUnavailable},
		}
		for _, tc := range errCases {
			Convey("When the service reports "+tc.name, func() {
				deps.addressErr = tc.err
				w := do(mux, http.MethodPost, "/v1/roof/estimate-by-address", `{"address":"1 Main St"}`)

				Convey(fmt.Sprintf("Then the status is %d", tc.status), func() {
					So(w.Code, ShouldEqual, tc.status)
				})
			})
		}
	})
}

func TestJobsHandler(t *testing.T) {
	Convey("Given the jobs endpoints", t, func() {
		deps := &mockDependencies{jobs: map[string]job.Job{
			"known": {ID: "known", Status: job.StatusDone, Completed: 1, Items: []job.Item{{Latitude: 1, Longitude: 2}}},
		}}
		mux := newMux(deps)

		Convey("When a new job is submitted", func() {
			w := do(mux, http.MethodPost, "/v1/jobs",
				`{"job_id":"b-1","items":[{"latitude":30,"longitude":-97},{"latitude":31,"longitude":-98,"property":{"property_type":"condo"}}]}`)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				body := decodeBody(w)
				So(body["job_id"], ShouldEqual, "b-1")
				So(body["status"], ShouldEqual, "queued")
				So(body["duplicate"], ShouldEqual, false)
				So(deps.lastItems, ShouldHaveLength, 2)
				So(deps.lastItems[1].Property.Type, ShouldEqual, property.Condo)
			})
		})

		Convey("When the job was already submitted", func() {
			deps.duplicate = true
			w := do(mux, http.MethodPost, "/v1/jobs", `{"job_id":"b-1","items":[{"latitude":30,"longitude":-97}]}`)

			Convey("Then it is acknowledged as a duplicate", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["duplicate"], ShouldEqual, true)
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = service.ErrBackpressure
			w := do(mux, http.MethodPost, "/v1/jobs", `{"items":[{"latitude":30,"longitude":-97}]}`)

			Convey("Then it is rejected with 429", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeBody(w)["code"], ShouldEqual, "backpressure")
			})
		})

		Convey("When the job is invalid", func() {
			deps.submitErr = fmt.Errorf("%w: %w", service.ErrInvalidJob, job.ErrNoItems)
			w := do(mux, http.MethodPost, "/v1/jobs", `{"items":[]}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a known job is fetched", func() {
			w := do(mux, http.MethodGet, "/v1/jobs/known", "")

			Convey("Then its status is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["job_id"], ShouldEqual, "known")
				So(body["status"], ShouldEqual, "done")
				So(body["completed"], ShouldEqual, 1.0)
			})
		})

		Convey("When an unknown job is fetched", func() {
			w := do(mux, http.MethodGet, "/v1/jobs/missing", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeBody(w)["code"], ShouldEqual, "not_found")
			})
		})
	})
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given a registered server", t, func() {
		mux := newMux(&mockDependencies{})

		Convey("Then /healthz exposes Prometheus metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/plain")
		})

		Convey("Then /stats returns the provider's stats as JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["started"], ShouldEqual, true)
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given a wrapped API error", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause match", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "api.op: ")
		})

		Convey("Then a nil cause degrades to the kind alone", func() {
			So(api.WrapKind("api.op", api.ErrNotFound, nil).Error(), ShouldEqual, "api.op: not found")
		})
	})
}
