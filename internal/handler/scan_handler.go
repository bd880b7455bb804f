package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
	"github.com/netopscockpit/cockpit/internal/pkg/response"
	"github.com/netopscockpit/cockpit/internal/service"
)

// ScanHandler handles discovery scan HTTP requests.
type ScanHandler struct {
	scans    service.ScanService
	validate *validator.Validate
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(scans service.ScanService) *ScanHandler {
	return &ScanHandler{
		scans:    scans,
		validate: validator.New(),
	}
}

// Routes returns a chi router with scan routes.
func (h *ScanHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/start", h.Start)
	r.Get("/jobs", h.Jobs)
	r.Get("/{job_id}/status", h.Status)
	r.Post("/{job_id}/onboard", h.Onboard)
	r.Delete("/{job_id}", h.Delete)

	return r
}

// Start handles POST /api/scan/start
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req service.StartScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage(err.Error()))
		return
	}

	resp, err := h.scans.Start(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Accepted(w, resp)
}

// Status handles GET /api/scan/{job_id}/status
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	status, err := h.scans.Status(r.Context(), jobID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, status)
}

// Jobs handles GET /api/scan/jobs
func (h *ScanHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.scans.Jobs(r.Context()))
}

// Delete handles DELETE /api/scan/{job_id}
func (h *ScanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := h.scans.Delete(r.Context(), jobID); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// Onboard handles POST /api/scan/{job_id}/onboard
func (h *ScanHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	var req service.OnboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage(err.Error()))
		return
	}

	result, err := h.scans.Onboard(r.Context(), jobID, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}
