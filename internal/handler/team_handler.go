package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/teamtrack/internal/model"
	"github.com/hitoshi/teamtrack/internal/stats"
)

// TeamMemberLister はチームメンバー一覧を取得するインターフェース。
type TeamMemberLister interface {
	TeamMembers(ctx context.Context, companyID string) ([]*model.User, error)
}

// TeamStatsService はチーム画面の集計を提供するインターフェース。
type TeamStatsService interface {
	Presence(ctx context.Context, companyID string) (stats.Presence, error)
	Ranking(ctx context.Context, companyID string, days int) ([]stats.MemberRanking, error)
	BuildSummary(ctx context.Context, companyID string, days int) (*stats.Summary, error)
}

// WindowSessionReader は集計期間内のセッションを取得するインターフェース。
type WindowSessionReader interface {
	SessionsInWindow(ctx context.Context, userIDs []string, days int) ([]*model.Session, error)
}

// TeamHandler はチーム画面（メンバー・在席状況・サマリー）のHTTPハンドラー。
type TeamHandler struct {
	members     TeamMemberLister
	stats       TeamStatsService
	sessions    WindowSessionReader
	defaultDays int
}

// NewTeamHandler はTeamHandlerを生成する。
// defaultDaysは?days=未指定時の集計期間。
func NewTeamHandler(members TeamMemberLister, statsService TeamStatsService, sessions WindowSessionReader, defaultDays int) *TeamHandler {
	return &TeamHandler{
		members:     members,
		stats:       statsService,
		sessions:    sessions,
		defaultDays: defaultDays,
	}
}

type memberPresenceResponse struct {
	User            *userResponse      `json:"user"`
	IsActive        bool               `json:"is_active"`
	CurrentProjects []string           `json:"current_projects"`
	ActiveSessions  []*sessionResponse `json:"active_sessions"`
}

type presenceResponse struct {
	Members     []memberPresenceResponse `json:"members"`
	ActiveCount int                      `json:"active_count"`
	TotalCount  int                      `json:"total_count"`
}

type memberRankingResponse struct {
	User   *userResponse  `json:"user"`
	Totals rollupResponse `json:"totals"`
}

type projectTotalsResponse struct {
	ProjectName string         `json:"project_name"`
	Totals      rollupResponse `json:"totals"`
}

type memberSummaryResponse struct {
	User     *userResponse           `json:"user"`
	Totals   rollupResponse          `json:"totals"`
	Projects []projectTotalsResponse `json:"projects"`
}

type projectSummaryResponse struct {
	ProjectName string                  `json:"project_name"`
	ProjectID   string                  `json:"project_id,omitempty"`
	Registered  bool                    `json:"registered"`
	Totals      rollupResponse          `json:"totals"`
	Members     []memberRankingResponse `json:"members"`
}

type summaryResponse struct {
	Days     int                      `json:"days"`
	Totals   rollupResponse           `json:"totals"`
	Members  []memberSummaryResponse  `json:"members"`
	Projects []projectSummaryResponse `json:"projects"`
}

// ListMembers はチームメンバー一覧を名前順で返す。
// GET /api/team/members
func (h *TeamHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	companyID, ok := currentCompanyID(w, r)
	if !ok {
		return
	}

	members, err := h.members.TeamMembers(r.Context(), companyID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponses(members))
}

// Presence はメンバーごとの在席状況を返す。計測中のメンバーが先に並ぶ。
// GET /api/team/presence
func (h *TeamHandler) Presence(w http.ResponseWriter, r *http.Request) {
	companyID, ok := currentCompanyID(w, r)
	if !ok {
		return
	}

	presence, err := h.stats.Presence(r.Context(), companyID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := presenceResponse{
		Members:     make([]memberPresenceResponse, len(presence.Members)),
		ActiveCount: presence.ActiveCount,
		TotalCount:  len(presence.Members),
	}
	for i, m := range presence.Members {
		resp.Members[i] = memberPresenceResponse{
			User:            toUserResponse(m.User),
			IsActive:        m.IsActive,
			CurrentProjects: m.CurrentProjects,
			ActiveSessions:  toSessionResponses(m.ActiveSessions),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ranking はメンバーの期間内作業時間ランキングを返す。
// GET /api/team/ranking?days=
func (h *TeamHandler) Ranking(w http.ResponseWriter, r *http.Request) {
	companyID, ok := currentCompanyID(w, r)
	if !ok {
		return
	}

	days, ok := queryInt(w, r, "days", h.defaultDays)
	if !ok {
		return
	}

	ranking, err := h.stats.Ranking(r.Context(), companyID, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRankingResponses(ranking))
}

// Summary はチームの期間内集計を返す。
// GET /api/team/summary?days=
func (h *TeamHandler) Summary(w http.ResponseWriter, r *http.Request) {
	companyID, ok := currentCompanyID(w, r)
	if !ok {
		return
	}

	days, ok := queryInt(w, r, "days", h.defaultDays)
	if !ok {
		return
	}

	summary, err := h.stats.BuildSummary(r.Context(), companyID, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := summaryResponse{
		Days:     summary.Days,
		Totals:   toRollupResponse(summary.Totals),
		Members:  make([]memberSummaryResponse, len(summary.Members)),
		Projects: make([]projectSummaryResponse, len(summary.Projects)),
	}
	for i, m := range summary.Members {
		projects := make([]projectTotalsResponse, len(m.Projects))
		for j, p := range m.Projects {
			projects[j] = projectTotalsResponse{
				ProjectName: p.ProjectName,
				Totals:      toRollupResponse(p.Rollup),
			}
		}
		resp.Members[i] = memberSummaryResponse{
			User:     toUserResponse(m.User),
			Totals:   toRollupResponse(m.Rollup),
			Projects: projects,
		}
	}
	for i, p := range summary.Projects {
		members := make([]memberRankingResponse, len(p.Members))
		for j, m := range p.Members {
			members[j] = memberRankingResponse{
				User:   toUserResponse(m.User),
				Totals: toRollupResponse(m.Rollup),
			}
		}
		resp.Projects[i] = projectSummaryResponse{
			ProjectName: p.ProjectName,
			ProjectID:   p.ProjectID,
			Registered:  p.Registered,
			Totals:      toRollupResponse(p.Rollup),
			Members:     members,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSessions はチームメンバーの期間内の終了済みセッションを新しい順に返す。
// GET /api/team/sessions?days=
func (h *TeamHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	companyID, ok := currentCompanyID(w, r)
	if !ok {
		return
	}

	days, ok := queryInt(w, r, "days", h.defaultDays)
	if !ok {
		return
	}

	members, err := h.members.TeamMembers(r.Context(), companyID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}

	sessions, err := h.sessions.SessionsInWindow(r.Context(), ids, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponses(sessions))
}

func toRankingResponses(ranking []stats.MemberRanking) []memberRankingResponse {
	resp := make([]memberRankingResponse, len(ranking))
	for i, r := range ranking {
		resp[i] = memberRankingResponse{
			User:   toUserResponse(r.User),
			Totals: toRollupResponse(r.Rollup),
		}
	}
	return resp
}
