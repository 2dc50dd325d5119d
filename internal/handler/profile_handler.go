package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/teamtrack/internal/middleware"
	"github.com/hitoshi/teamtrack/internal/model"
	"github.com/hitoshi/teamtrack/internal/user"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// SubmitProfile は外部IDに対応するユーザーを作成または更新する。
	SubmitProfile(ctx context.Context, externalID string, input user.ProfileInput) (*model.User, error)
	// GetByExternalID は外部IDに対応するユーザーを返す。
	GetByExternalID(ctx context.Context, externalID string) (*model.User, error)
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
// ユーザー解決前のリクエストを扱うため、外部IdPの利用者情報のみを前提とする。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{
		service: service,
	}
}

// profileRequest はプロフィール登録リクエストのボディ。
type profileRequest struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	AvatarRef string `json:"avatar_ref"`
}

// GetProfile は現在の利用者のプロフィールを返す。未登録の場合は404。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	u, err := h.service.GetByExternalID(r.Context(), identity.ExternalID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// SubmitProfile はプロフィールを登録または更新する。
// PUT /api/profile
func (h *ProfileHandler) SubmitProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req profileRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	// 名前が空の場合はIdPの表示名を使う
	name := req.Name
	if name == "" {
		name = identity.Name
	}

	u, err := h.service.SubmitProfile(r.Context(), identity.ExternalID, user.ProfileInput{
		Name:      name,
		Role:      req.Role,
		AvatarRef: req.AvatarRef,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}
