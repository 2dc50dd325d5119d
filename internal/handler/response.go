package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/teamtrack/internal/middleware"
	"github.com/hitoshi/teamtrack/internal/model"
	"github.com/hitoshi/teamtrack/internal/stats"
)

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForKind(apiErr.Kind), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// decodeJSONBody はリクエストボディをJSONとして解析する。
// allowEmptyがtrueの場合、空のボディはエラーにしない。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
	return false
}

// queryInt はクエリパラメータを整数として取得する。
// 未指定の場合はdefaultValを返し、整数でない場合は400を書き込んでfalseを返す。
func queryInt(w http.ResponseWriter, r *http.Request, key string, defaultVal int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_QUERY",
			Message:  "クエリパラメータ " + key + " が整数ではありません。",
			Category: "validation",
			Action:   "正しい値を指定してください。",
		})
		return 0, false
	}
	return v, true
}

// currentUser はリクエストコンテキストから解決済みユーザーを取得する。
// 取得できない場合は401を書き込んでfalseを返す。
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return user, true
}

// currentCompanyID はリクエストユーザーの所属チームIDを取得する。
// 未所属の場合は403を書き込んでfalseを返す。
func currentCompanyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	companyID, ok := middleware.CompanyIDFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewNotCompanyMemberError())
		return "", false
	}
	return companyID, true
}

// --- レスポンス型 ---

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	AvatarRef string    `json:"avatar_ref"`
	CompanyID *string   `json:"company_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Role:      u.Role,
		AvatarRef: u.AvatarRef,
		CompanyID: u.CompanyID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toUserResponses(users []*model.User) []*userResponse {
	resp := make([]*userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	return resp
}

type companyResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	InviteCode string    `json:"invite_code"`
	CreatedAt  time.Time `json:"created_at"`
}

func toCompanyResponse(c *model.Company) *companyResponse {
	return &companyResponse{
		ID:         c.ID,
		Name:       c.Name,
		InviteCode: c.InviteCode,
		CreatedAt:  c.CreatedAt,
	}
}

type projectResponse struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description"`
	RepositoryURL *string   `json:"repository_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toProjectResponse(p *model.Project) *projectResponse {
	return &projectResponse{
		ID:            p.ID,
		CompanyID:     p.CompanyID,
		Name:          p.Name,
		Description:   p.Description,
		RepositoryURL: p.RepositoryURL,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// sessionResponse は作業セッションのAPIレスポンス。
// 日時はエポックミリ秒で表し、作業時間は終了済みの場合のみ含める。
type sessionResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	ProjectName     string  `json:"project_name"`
	StartTime       int64   `json:"start_time"`
	EndTime         *int64  `json:"end_time"`
	TokensInput     *int64  `json:"tokens_input"`
	TokensOutput    *int64  `json:"tokens_output"`
	Status          string  `json:"status"`
	DurationSeconds *int64  `json:"duration_seconds,omitempty"`
	Duration        *string `json:"duration,omitempty"`
}

func toSessionResponse(s *model.Session) *sessionResponse {
	resp := &sessionResponse{
		ID:           s.ID,
		UserID:       s.UserID,
		ProjectName:  s.ProjectName,
		StartTime:    s.StartTime.UnixMilli(),
		TokensInput:  s.TokensInput,
		TokensOutput: s.TokensOutput,
		Status:       string(s.Status),
	}
	if s.EndTime != nil {
		end := s.EndTime.UnixMilli()
		seconds := s.DurationSeconds()
		formatted := stats.FormatDuration(seconds)
		resp.EndTime = &end
		resp.DurationSeconds = &seconds
		resp.Duration = &formatted
	}
	return resp
}

func toSessionResponses(sessions []*model.Session) []*sessionResponse {
	resp := make([]*sessionResponse, len(sessions))
	for i, s := range sessions {
		resp[i] = toSessionResponse(s)
	}
	return resp
}

// rollupResponse は集計値のAPIレスポンス。表示用の文字列を併せて返す。
type rollupResponse struct {
	TotalSeconds       int64  `json:"total_seconds"`
	TotalDuration      string `json:"total_duration"`
	TotalInputTokens   int64  `json:"total_input_tokens"`
	TotalOutputTokens  int64  `json:"total_output_tokens"`
	TotalTokens        int64  `json:"total_tokens"`
	TotalTokensDisplay string `json:"total_tokens_display"`
	SessionCount       int    `json:"session_count"`
}

func toRollupResponse(r stats.Rollup) rollupResponse {
	return rollupResponse{
		TotalSeconds:       r.TotalSeconds,
		TotalDuration:      stats.FormatDuration(r.TotalSeconds),
		TotalInputTokens:   r.TotalInputTokens,
		TotalOutputTokens:  r.TotalOutputTokens,
		TotalTokens:        r.TotalTokens(),
		TotalTokensDisplay: stats.FormatTokens(r.TotalTokens()),
		SessionCount:       r.SessionCount,
	}
}
