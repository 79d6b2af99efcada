package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devfolio/apiserver/internal/services"
	"github.com/devfolio/apiserver/internal/storage"
	"github.com/devfolio/apiserver/internal/store"
	"github.com/devfolio/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultPage        = 1
	defaultLimit       = 20
	maxLimit           = 100
	maxMultipartMemory = 32 << 20
	maxImageBytes      = 10 << 20

	formFieldTitle     = "title"
	formFieldDesc      = "description"
	formFieldTechStack = "tech_stack"
	formFieldLiveURL   = "live_url"
	formFieldRepoURL   = "repo_url"
)

// imageFormFields are the multipart file fields a project upload may carry,
// in display order. The original upload clients send image1..image5.
var imageFormFields = [types.MaxProjectImages]string{"image1", "image2", "image3", "image4", "image5"}

// ProjectHandler provides HTTP handlers for the project gallery.
type ProjectHandler struct {
	projectService *services.ProjectService
	storage        *storage.Storage
}

// NewProjectHandler constructs a handler with the provided dependencies.
// storage may be nil, in which case multipart image uploads are rejected
// and only pre-uploaded URL strings are accepted.
func NewProjectHandler(projectService *services.ProjectService, store *storage.Storage) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		storage:        store,
	}
}

// ProjectRouter registers project routes on the given router. Reads are
// public; writes require an authenticated session.
func ProjectRouter(
	r chi.Router,
	projectService *services.ProjectService,
	store *storage.Storage,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewProjectHandler(projectService, store)

	r.Get("/", handler.ListProjects)
	r.With(authMiddleware).Post("/", handler.CreateProject)
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", handler.GetProject)
		r.With(authMiddleware).Put("/", handler.UpdateProject)
		r.With(authMiddleware).Delete("/", handler.DeleteProject)
	})
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, KindValidationError, err.Error())
		return
	}

	items, total, err := h.projectService.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, KindInternalError, "failed to list projects")
		return
	}

	resp := ProjectListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")

	project, err := h.projectService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, KindNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, KindInternalError, "failed to fetch project")
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseProjectRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, KindValidationError, err.Error())
		return
	}

	created, err := h.projectService.Create(r.Context(), types.Project{
		Title:       req.Title,
		Description: req.Description,
		ImageURLs:   req.ImageURLs,
		TechStack:   req.TechStack,
		LiveURL:     req.LiveURL,
		RepoURL:     req.RepoURL,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, KindInternalError, "failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")

	req, err := h.parseProjectRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, KindValidationError, err.Error())
		return
	}

	updated, err := h.projectService.Update(r.Context(), types.Project{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		ImageURLs:   req.ImageURLs,
		TechStack:   req.TechStack,
		LiveURL:     req.LiveURL,
		RepoURL:     req.RepoURL,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, KindNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, KindInternalError, "failed to update project")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")

	if err := h.projectService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, KindNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, KindInternalError, "failed to delete project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ProjectUpsertRequest is the parsed create/update payload, from either a
// JSON body with pre-uploaded image URLs or a multipart form with image
// files that this handler uploads to object storage.
type ProjectUpsertRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURLs   []string `json:"image_urls"`
	TechStack   []string `json:"tech_stack"`
	LiveURL     string   `json:"live_url"`
	RepoURL     string   `json:"repo_url"`
}

// ProjectListResponse is the paginated list response payload.
type ProjectListResponse struct {
	Items []types.Project `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int             `json:"total"`
}

func (h *ProjectHandler) parseProjectRequest(r *http.Request) (ProjectUpsertRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return h.parseProjectForm(r)
	}

	var req ProjectUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ProjectUpsertRequest{}, errors.New("invalid request body")
	}
	return validateProjectRequest(req)
}

func (h *ProjectHandler) parseProjectForm(r *http.Request) (ProjectUpsertRequest, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return ProjectUpsertRequest{}, errors.New("invalid multipart form")
	}

	req := ProjectUpsertRequest{
		Title:       r.FormValue(formFieldTitle),
		Description: r.FormValue(formFieldDesc),
		TechStack:   parseTechStack(r.FormValue(formFieldTechStack)),
		LiveURL:     strings.TrimSpace(r.FormValue(formFieldLiveURL)),
		RepoURL:     strings.TrimSpace(r.FormValue(formFieldRepoURL)),
	}

	urls, err := h.uploadImages(r)
	if err != nil {
		return ProjectUpsertRequest{}, err
	}
	req.ImageURLs = urls

	return validateProjectRequest(req)
}

// uploadImages streams each provided image field to object storage and
// returns the resulting public URLs in field order. When a later file fails,
// objects already stored for this request are deleted so a rejected upload
// leaves nothing behind.
func (h *ProjectHandler) uploadImages(r *http.Request) ([]string, error) {
	form := r.MultipartForm
	if form == nil {
		return nil, nil
	}

	var urls []string
	var keys []string
	for _, field := range imageFormFields {
		files := form.File[field]
		if len(files) == 0 {
			continue
		}
		if h.storage == nil {
			return nil, errors.New("image uploads are not configured")
		}

		url, key, err := h.uploadImage(r, files[0])
		if err != nil {
			h.removeUploaded(r, keys)
			return nil, err
		}
		urls = append(urls, url)
		keys = append(keys, key)
	}
	return urls, nil
}

func (h *ProjectHandler) removeUploaded(r *http.Request, keys []string) {
	for _, key := range keys {
		if err := h.storage.Delete(r.Context(), key); err != nil {
			log.Printf("failed to remove uploaded image %s: %v", key, err)
		}
	}
}

func (h *ProjectHandler) uploadImage(r *http.Request, fileHeader *multipart.FileHeader) (url, key string, err error) {
	if fileHeader.Size > maxImageBytes {
		return "", "", errors.New("image too large")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", errors.New("only image uploads are allowed")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", "", errors.New("failed to read image upload")
	}
	defer file.Close()

	key = fmt.Sprintf("projects/%s%s", uuid.NewString(), strings.ToLower(filepath.Ext(fileHeader.Filename)))
	if err := h.storage.Put(r.Context(), key, file, fileHeader.Size, contentType); err != nil {
		return "", "", errors.New("failed to store image")
	}
	return h.storage.PublicURL(key), key, nil
}

func validateProjectRequest(req ProjectUpsertRequest) (ProjectUpsertRequest, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return ProjectUpsertRequest{}, errors.New("title is required")
	}

	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return ProjectUpsertRequest{}, errors.New("description is required")
	}

	if len(req.ImageURLs) > types.MaxProjectImages {
		return ProjectUpsertRequest{}, fmt.Errorf("at most %d images are allowed", types.MaxProjectImages)
	}
	for _, url := range req.ImageURLs {
		if strings.TrimSpace(url) == "" {
			return ProjectUpsertRequest{}, errors.New("image urls must not be empty")
		}
	}

	return req, nil
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseTechStack(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	// Upload clients send either a JSON array or a comma-separated list.
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err == nil {
			return tags
		}
	}

	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
