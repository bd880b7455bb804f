// Package handler provides HTTP handlers for the cockpit API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
	"github.com/netopscockpit/cockpit/internal/pkg/response"
	"github.com/netopscockpit/cockpit/internal/service"
)

// CredentialHandler handles credential HTTP requests. Responses never
// carry password material, encrypted or otherwise.
type CredentialHandler struct {
	credentials service.CredentialService
	validate    *validator.Validate
}

// NewCredentialHandler creates a new credential handler.
func NewCredentialHandler(credentials service.CredentialService) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
		validate:    validator.New(),
	}
}

// Routes returns a chi router with credential routes.
func (h *CredentialHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	return r
}

// List handles GET /api/credentials
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	includeExpired := r.URL.Query().Get("include_expired") == "true"

	infos, err := h.credentials.List(r.Context(), includeExpired)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, infos)
}

// Create handles POST /api/credentials
func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage(err.Error()))
		return
	}

	info, err := h.credentials.Create(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, info)
}

// Update handles PUT /api/credentials/{id}
func (h *CredentialHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	var req service.UpdateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}

	info, err := h.credentials.Update(r.Context(), id, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, info)
}

// Delete handles DELETE /api/credentials/{id}
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	if err := h.credentials.Delete(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// pathID parses a numeric chi URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierrors.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}
