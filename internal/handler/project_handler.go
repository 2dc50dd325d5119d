package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/teamtrack/internal/model"
	"github.com/hitoshi/teamtrack/internal/project"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
// 全操作は呼び出し元のチームIDでスコープされる。
type ProjectServiceInterface interface {
	Create(ctx context.Context, companyID string, input project.CreateInput) (*model.Project, error)
	Update(ctx context.Context, companyID, projectID string, input project.UpdateInput) (*model.Project, error)
	Delete(ctx context.Context, companyID, projectID string) error
	List(ctx context.Context, companyID string) ([]*model.Project, error)
	Get(ctx context.Context, companyID, projectID string) (*model.Project, error)
}

// ProjectHandler はプロジェクト登録簿のHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{
		service: service,
	}
}

type createProjectRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	RepositoryURL string `json:"repository_url"`
}

// updateProjectRequest は部分更新リクエスト。省略したフィールドは変更しない。
type updateProjectRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	RepositoryURL *string `json:"repository_url"`
}

// ListProjects はチームのプロジェクト一覧を作成日時の昇順で返す。
// GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	companyID, ok := currentCompanyID(w, r)
	if !ok {
		return
	}

	projects, err := h.service.List(r.Context(), companyID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]*projectResponse, len(projects))
	for i, p := range projects {
		resp[i] = toProjectResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateProject はプロジェクトを登録する。
// POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	companyID, ok := currentCompanyID(w, r)
	if !ok {
		return
	}

	var req createProjectRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	p, err := h.service.Create(r.Context(), companyID, project.CreateInput{
		Name:          req.Name,
		Description:   req.Description,
		RepositoryURL: req.RepositoryURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProjectResponse(p))
}

// GetProject はプロジェクトを取得する。
// GET /api/projects/{id}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	companyID, ok := currentCompanyID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), companyID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// UpdateProject はプロジェクトを部分更新する。
// PATCH /api/projects/{id}
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	companyID, ok := currentCompanyID(w, r)
	if !ok {
		return
	}

	var req updateProjectRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	p, err := h.service.Update(r.Context(), companyID, chi.URLParam(r, "id"), project.UpdateInput{
		Name:          req.Name,
		Description:   req.Description,
		RepositoryURL: req.RepositoryURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// DeleteProject はプロジェクトを削除する。記録済みのセッションはそのまま残る。
// DELETE /api/projects/{id}
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	companyID, ok := currentCompanyID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), companyID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
