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

// GitRepositoryHandler handles repository HTTP requests.
type GitRepositoryHandler struct {
	repos    service.GitRepositoryService
	validate *validator.Validate
}

// NewGitRepositoryHandler creates a new repository handler.
func NewGitRepositoryHandler(repos service.GitRepositoryService) *GitRepositoryHandler {
	return &GitRepositoryHandler{
		repos:    repos,
		validate: validator.New(),
	}
}

// Routes returns a chi router with repository routes.
func (h *GitRepositoryHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/test", h.Test)
	r.Get("/selected", h.GetSelected)
	r.Post("/selected/{id}", h.SetSelected)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/sync", h.Sync)
	r.Get("/{id}/status", h.Status)
	r.Get("/{id}/commits", h.Commits)
	r.Get("/{id}/files/search", h.SearchFiles)
	r.Get("/{id}/files/history", h.FileHistory)

	return r
}

// List handles GET /api/git-repositories
func (h *GitRepositoryHandler) List(w http.ResponseWriter, r *http.Request) {
	repos, err := h.repos.List(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, repos)
}

// Get handles GET /api/git-repositories/{id}
func (h *GitRepositoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	repo, err := h.repos.Get(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, repo)
}

// Create handles POST /api/git-repositories
func (h *GitRepositoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateGitRepositoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage(err.Error()))
		return
	}

	repo, err := h.repos.Create(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, repo)
}

// Update handles PUT /api/git-repositories/{id}
func (h *GitRepositoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	var req service.UpdateGitRepositoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}

	repo, err := h.repos.Update(r.Context(), id, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, repo)
}

// Delete handles DELETE /api/git-repositories/{id}
func (h *GitRepositoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.repos.Delete(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// GetSelected handles GET /api/git-repositories/selected
func (h *GitRepositoryHandler) GetSelected(w http.ResponseWriter, r *http.Request) {
	repo, err := h.repos.GetSelected(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, repo)
}

// SetSelected handles POST /api/git-repositories/selected/{id}
func (h *GitRepositoryHandler) SetSelected(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	repo, err := h.repos.SetSelected(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, repo)
}

// Sync handles POST /api/git-repositories/{id}/sync
func (h *GitRepositoryHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	result, err := h.repos.Sync(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}

// Status handles GET /api/git-repositories/{id}/status
func (h *GitRepositoryHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	status, err := h.repos.Status(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, status)
}

// Test handles POST /api/git-repositories/test. The repository does
// not need to be registered; connectivity is verified with a shallow
// clone.
func (h *GitRepositoryHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req service.CreateGitRepositoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if req.URL == "" {
		response.Error(w, apierrors.NewValidationError("url", "url is required"))
		return
	}
	response.OK(w, h.repos.Test(r.Context(), req))
}

// Commits handles GET /api/git-repositories/{id}/commits
func (h *GitRepositoryHandler) Commits(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	commits, err := h.repos.Commits(r.Context(), id, r.URL.Query().Get("branch"), limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, commits)
}

// FileHistory handles GET /api/git-repositories/{id}/files/history
func (h *GitRepositoryHandler) FileHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	commits, err := h.repos.FileHistory(r.Context(), id, r.URL.Query().Get("path"), limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, commits)
}

// queryLimit parses the optional limit query parameter.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apierrors.NewValidationError("limit", "must be a non-negative integer")
	}
	return limit, nil
}

// SearchFiles handles GET /api/git-repositories/{id}/files/search
func (h *GitRepositoryHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}

	limit, err := queryLimit(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	matches, err := h.repos.SearchFiles(r.Context(), id, r.URL.Query().Get("query"), limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, matches)
}
