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

// InventoryHandler handles inventory query and generation requests.
type InventoryHandler struct {
	inventory service.InventoryService
	validate  *validator.Validate
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(inventory service.InventoryService) *InventoryHandler {
	return &InventoryHandler{
		inventory: inventory,
		validate:  validator.New(),
	}
}

// Routes returns a chi router with inventory routes.
func (h *InventoryHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/preview", h.Preview)
	r.Post("/generate", h.Generate)
	r.Post("/download", h.Download)
	r.Get("/field-options", h.FieldOptions)
	r.Get("/field-values/{field}", h.FieldValues)
	r.Get("/custom-fields", h.CustomFields)

	return r
}

// Preview handles POST /api/ansible-inventory/preview
func (h *InventoryHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req service.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage(err.Error()))
		return
	}

	result, err := h.inventory.Preview(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}

// Generate handles POST /api/ansible-inventory/generate
func (h *InventoryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	result, err := h.generate(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}

// Download handles POST /api/ansible-inventory/download, returning the
// rendered inventory as a file attachment.
func (h *InventoryHandler) Download(w http.ResponseWriter, r *http.Request) {
	result, err := h.generate(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", `attachment; filename=inventory.yaml`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(result.InventoryContent))
}

func (h *InventoryHandler) generate(r *http.Request) (*service.GenerateResult, error) {
	var req service.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apierrors.ErrBadRequest.WithMessage("Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, apierrors.ErrBadRequest.WithMessage(err.Error())
	}
	return h.inventory.Generate(r.Context(), req)
}

// FieldOptions handles GET /api/ansible-inventory/field-options
func (h *InventoryHandler) FieldOptions(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.inventory.FieldOptions())
}

// FieldValues handles GET /api/ansible-inventory/field-values/{field}
func (h *InventoryHandler) FieldValues(w http.ResponseWriter, r *http.Request) {
	field := chi.URLParam(r, "field")
	values, err := h.inventory.FieldValues(r.Context(), field)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, values)
}

// CustomFields handles GET /api/ansible-inventory/custom-fields
func (h *InventoryHandler) CustomFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.inventory.CustomFields(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, fields)
}
