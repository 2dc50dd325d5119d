package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/teamtrack/internal/model"
)

// CompanyServiceInterface はチームハンドラーが必要とするサービスインターフェース。
type CompanyServiceInterface interface {
	CreateCompany(ctx context.Context, creatorID, name string) (*model.Company, error)
	LookupByInviteCode(ctx context.Context, code string) (*model.Company, error)
	GetCompany(ctx context.Context, companyID string) (*model.Company, error)
	JoinByInviteCode(ctx context.Context, userID, code string) (*model.Company, error)
	LeaveCompany(ctx context.Context, userID string) error
}

// CompanyHandler はチームの作成・参加・離脱のHTTPハンドラー。
type CompanyHandler struct {
	service CompanyServiceInterface
}

// NewCompanyHandler はCompanyHandlerを生成する。
func NewCompanyHandler(service CompanyServiceInterface) *CompanyHandler {
	return &CompanyHandler{
		service: service,
	}
}

type createCompanyRequest struct {
	Name string `json:"name"`
}

type joinCompanyRequest struct {
	InviteCode string `json:"invite_code"`
}

// CreateCompany はチームを作成し、作成者を所属させる。
// POST /api/companies
func (h *CompanyHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createCompanyRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	company, err := h.service.CreateCompany(r.Context(), u.ID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCompanyResponse(company))
}

// LookupByInviteCode は招待コードからチームを検索する。参加はしない。
// GET /api/companies/lookup?code=
func (h *CompanyHandler) LookupByInviteCode(w http.ResponseWriter, r *http.Request) {
	company, err := h.service.LookupByInviteCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCompanyResponse(company))
}

// JoinByInviteCode は招待コードでチームに参加する。
// POST /api/companies/join
func (h *CompanyHandler) JoinByInviteCode(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req joinCompanyRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	company, err := h.service.JoinByInviteCode(r.Context(), u.ID, req.InviteCode)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCompanyResponse(company))
}

// GetCompany はチームを取得する。
// GET /api/companies/{id}
func (h *CompanyHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.service.GetCompany(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCompanyResponse(company))
}

// LeaveCompany は現在のチームから離脱する。セッション履歴は残る。
// DELETE /api/me/company
func (h *CompanyHandler) LeaveCompany(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.LeaveCompany(r.Context(), u.ID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
