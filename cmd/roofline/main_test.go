package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	app "github.com/okian/roofline/internal/app"
	"github.com/okian/roofline/internal/config"
	"github.com/okian/roofline/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given the full mux over a service that is not started", t, func() {
		ctx := context.Background()
		svc := app.New(config.New(ctx), app.WithLogger(logger.Noop()))
		mux := newMux(ctx, svc)

		serve := func(method, path, body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, path, strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		convey.Convey("Then the docs routes are mounted", func() {
			convey.So(serve(http.MethodGet, "/openapi.yaml", "").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/api-docs", "").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then health and stats answer", func() {
			convey.So(serve(http.MethodGet, "/healthz", "").Code, convey.ShouldEqual, http.StatusOK)
			w := serve(http.MethodGet, "/stats", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"started":false`)
		})

		convey.Convey("Then estimates report the service as unavailable", func() {
			w := serve(http.MethodPost, "/v1/roof/estimate", `{"latitude":30,"longitude":-97}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Updating system gauges does not panic", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
