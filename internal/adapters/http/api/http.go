// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/roofline/internal/app"
	"github.com/okian/roofline/internal/adapters/geocode"
	"github.com/okian/roofline/internal/adapters/repository"
	"github.com/okian/roofline/internal/domain/job"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
	"github.com/okian/roofline/internal/domain/reconcile"
)

// maxBodyBytes bounds request bodies; a full batch of items fits well within.
const maxBodyBytes = 4 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Estimate(ctx context.Context, req reconcile.Request) (model.RoofEstimate, error)
	EstimateByAddress(ctx context.Context, address string, rec *property.Record) (service.AddressEstimate, error)
	SubmitJob(ctx context.Context, id string, items []job.Item) (job.Job, bool, error)
	Job(ctx context.Context, id string) (job.Job, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	estimateHandler *EstimateHandler
	jobsHandler     *JobsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		estimateHandler: NewEstimateHandler(deps),
		jobsHandler:     NewJobsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /v1/roof/estimate", MetricsMiddleware(s.estimateHandler.HandleEstimate, "estimate"))
	mux.HandleFunc("POST /v1/roof/estimate-by-address", MetricsMiddleware(s.estimateHandler.HandleEstimateByAddress, "estimate_by_address"))
	mux.HandleFunc("POST /v1/jobs", MetricsMiddleware(s.jobsHandler.HandleSubmit, "jobs_submit"))
	mux.HandleFunc("GET /v1/jobs/{id}", MetricsMiddleware(s.jobsHandler.HandleGet, "jobs_get"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decode reads a JSON body, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeServiceError maps service and collaborator failures onto statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidCoordinate),
		errors.Is(err, service.ErrInvalidJob),
		errors.Is(err, geocode.ErrEmptyAddress):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, geocode.ErrNoMatch):
		writeError(w, http.StatusUnprocessableEntity, "address_not_found", err)
	case errors.Is(err, geocode.ErrProvider):
		writeError(w, http.StatusBadGateway, "geocoder_failed", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrGeocoderUnavailable),
		errors.Is(err, service.ErrNotStarted),
		errors.Is(err, reconcile.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
