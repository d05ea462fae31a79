package api

import (
	"net/http"
	"strings"

	service "github.com/okian/roofline/internal/app"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
	"github.com/okian/roofline/internal/domain/reconcile"
)

// estimateRequest mirrors the body of POST /v1/roof/estimate.
type estimateRequest struct {
	Latitude       *float64         `json:"latitude"`
	Longitude      *float64         `json:"longitude"`
	Property       *property.Record `json:"property,omitempty"`
	ManualAreaSqFt float64          `json:"manual_area_sq_ft,omitempty"`
}

type estimateResponse struct {
	Success  bool               `json:"success"`
	Estimate model.RoofEstimate `json:"estimate"`
}

// addressRequest mirrors the body of POST /v1/roof/estimate-by-address.
type addressRequest struct {
	Address  string           `json:"address"`
	Property *property.Record `json:"property,omitempty"`
}

type addressResponse struct {
	Success bool `json:"success"`
	service.AddressEstimate
}

// EstimateHandler serves single-location estimates.
type EstimateHandler struct {
	deps Dependencies
}

// NewEstimateHandler creates a new estimate handler.
func NewEstimateHandler(deps Dependencies) *EstimateHandler {
	return &EstimateHandler{deps: deps}
}

// HandleEstimate handles POST /v1/roof/estimate.
func (h *EstimateHandler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	const op = "api.estimate"
	var req estimateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, model.ErrInvalidCoordinate))
		return
	}
	if req.ManualAreaSqFt < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op+": manual_area_sq_ft must not be negative", ErrBadRequest))
		return
	}

	est, err := h.deps.Estimate(r.Context(), reconcile.Request{
		Coordinate:     model.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude},
		Property:       req.Property,
		ManualAreaSqFt: req.ManualAreaSqFt,
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, estimateResponse{Success: true, Estimate: est})
}

// HandleEstimateByAddress handles POST /v1/roof/estimate-by-address.
func (h *EstimateHandler) HandleEstimateByAddress(w http.ResponseWriter, r *http.Request) {
	const op = "api.estimate_by_address"
	var req addressRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op+": missing address", ErrBadRequest))
		return
	}

	out, err := h.deps.EstimateByAddress(r.Context(), address, req.Property)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, addressResponse{Success: true, AddressEstimate: out})
}
