package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/teamtrack/internal/model"
	"github.com/hitoshi/teamtrack/internal/session"
	"github.com/hitoshi/teamtrack/internal/stats"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	Start(ctx context.Context, userID, projectName string) (*model.Session, error)
	StopForUser(ctx context.Context, userID, sessionID string, input session.StopInput) (*model.Session, error)
	GetActiveForUser(ctx context.Context, userID string) ([]*model.Session, error)
	ListHistory(ctx context.Context, userID string, limit int, cursor string) (*session.HistoryPage, error)
	RecentProjectNames(ctx context.Context, userID string) ([]string, error)
}

// HistoryBuilder は個人の日別履歴を組み立てるインターフェース。
type HistoryBuilder interface {
	BuildHistory(ctx context.Context, userID string, limit int) (*stats.History, error)
}

// SessionHandler は作業セッションのHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
	history HistoryBuilder
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface, history HistoryBuilder) *SessionHandler {
	return &SessionHandler{
		service: service,
		history: history,
	}
}

type startSessionRequest struct {
	ProjectName string `json:"project_name"`
}

// stopSessionRequest はセッション終了リクエストのボディ。ボディ省略時はトークン数0で記録する。
type stopSessionRequest struct {
	TokensInput  *int64 `json:"tokens_input"`
	TokensOutput *int64 `json:"tokens_output"`
}

type historyPageResponse struct {
	Sessions   []*sessionResponse `json:"sessions"`
	NextCursor string             `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

type dayGroupResponse struct {
	Key      string             `json:"key"`
	Label    string             `json:"label"`
	Totals   rollupResponse     `json:"totals"`
	Sessions []*sessionResponse `json:"sessions"`
}

type dailyHistoryResponse struct {
	Totals rollupResponse     `json:"totals"`
	Days   []dayGroupResponse `json:"days"`
}

// StartSession は作業セッションを開始する。
// POST /api/sessions
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req startSessionRequest
	if !decodeJSONBody(w, r, &req, false) {
		return
	}

	sess, err := h.service.Start(r.Context(), u.ID, req.ProjectName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// StopSession は自分の計測中セッションを終了する。終了済みの場合は409。
// POST /api/sessions/{id}/stop
func (h *SessionHandler) StopSession(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req stopSessionRequest
	if !decodeJSONBody(w, r, &req, true) {
		return
	}

	sess, err := h.service.StopForUser(r.Context(), u.ID, chi.URLParam(r, "id"), session.StopInput{
		TokensInput:  req.TokensInput,
		TokensOutput: req.TokensOutput,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// ListActive は自分の計測中セッションを開始日時の昇順で返す。
// GET /api/sessions/active
func (h *SessionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	sessions, err := h.service.GetActiveForUser(r.Context(), u.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponses(sessions))
}

// ListHistory は自分のセッション履歴を新しい順にページ単位で返す。
// GET /api/sessions/history?limit=&cursor=
func (h *SessionHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit, ok := queryInt(w, r, "limit", session.DefaultHistoryLimit)
	if !ok {
		return
	}

	page, err := h.service.ListHistory(r.Context(), u.ID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, historyPageResponse{
		Sessions:   toSessionResponses(page.Sessions),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

// DailyHistory は直近の終了済みセッションを日別に集計して返す。
// GET /api/sessions/history/daily?limit=
func (h *SessionHandler) DailyHistory(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit, ok := queryInt(w, r, "limit", stats.DefaultHistoryDisplayLimit)
	if !ok {
		return
	}

	history, err := h.history.BuildHistory(r.Context(), u.ID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := dailyHistoryResponse{
		Totals: toRollupResponse(history.Totals),
		Days:   make([]dayGroupResponse, len(history.Days)),
	}
	for i, day := range history.Days {
		resp.Days[i] = dayGroupResponse{
			Key:      day.Key,
			Label:    day.Label,
			Totals:   toRollupResponse(day.Rollup),
			Sessions: toSessionResponses(day.Sessions),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// RecentProjects は最近使ったプロジェクト名を新しい順に重複なしで返す。
// GET /api/sessions/recent-projects
func (h *SessionHandler) RecentProjects(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	names, err := h.service.RecentProjectNames(r.Context(), u.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	writeJSON(w, http.StatusOK, names)
}
