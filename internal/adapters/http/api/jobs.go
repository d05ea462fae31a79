package api

import (
	"net/http"
	"strings"

	"github.com/okian/roofline/internal/domain/job"
	"github.com/okian/roofline/internal/domain/property"
)

// jobRequest mirrors the body of POST /v1/jobs.
type jobRequest struct {
	JobID string           `json:"job_id,omitempty"`
	Items []jobItemRequest `json:"items"`
}

type jobItemRequest struct {
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Property  *property.Record `json:"property,omitempty"`
}

type jobAck struct {
	JobID     string     `json:"job_id"`
	Status    job.Status `json:"status"`
	Duplicate bool       `json:"duplicate"`
}

// JobsHandler serves batch estimation jobs.
type JobsHandler struct {
	deps Dependencies
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps Dependencies) *JobsHandler {
	return &JobsHandler{deps: deps}
}

// HandleSubmit handles POST /v1/jobs. New jobs answer 202; a repeated
// job_id answers 200 with duplicate=true.
func (h *JobsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_job"
	var req jobRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	items := make([]job.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = job.Item{Latitude: it.Latitude, Longitude: it.Longitude, Property: it.Property}
	}

	j, duplicate, err := h.deps.SubmitJob(r.Context(), req.JobID, items)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, jobAck{JobID: j.ID, Status: j.Status, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, jobAck{JobID: j.ID, Status: j.Status})
}

// HandleGet handles GET /v1/jobs/{id}.
func (h *JobsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_job"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op+": missing job id", ErrBadRequest))
		return
	}
	j, err := h.deps.Job(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}
