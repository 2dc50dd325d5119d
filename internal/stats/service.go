package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/teamtrack/internal/model"
	"github.com/hitoshi/teamtrack/internal/session"
)

// DefaultHistoryDisplayLimit は個人履歴画面で集計するセッション数の既定値。
const DefaultHistoryDisplayLimit = 100

// MemberLister はチームメンバー一覧を取得するインターフェース。
type MemberLister interface {
	TeamMembers(ctx context.Context, companyID string) ([]*model.User, error)
}

// ProjectLister はチームのプロジェクト一覧を取得するインターフェース。
type ProjectLister interface {
	List(ctx context.Context, companyID string) ([]*model.Project, error)
}

// SessionReader は集計の入力となるセッションを取得するインターフェース。
type SessionReader interface {
	SessionsInWindow(ctx context.Context, userIDs []string, days int) ([]*model.Session, error)
	GetActiveForUsers(ctx context.Context, userIDs []string) ([]*model.Session, error)
	ListHistory(ctx context.Context, userID string, limit int, cursor string) (*session.HistoryPage, error)
}

// MemberSummary はメンバー1人の期間内集計とプロジェクト別内訳。
type MemberSummary struct {
	User     *model.User
	Rollup   Rollup
	Projects []ProjectGroup
}

// MemberBreakdown はプロジェクト内のメンバー別集計。
type MemberBreakdown struct {
	User   *model.User
	Rollup Rollup
}

// ProjectSummary はプロジェクト1件の期間内集計とメンバー別内訳。
// Registeredがfalseの場合、セッションのプロジェクト名に一致する登録済みプロジェクトがない
// （改名・削除された）ことを表す。
type ProjectSummary struct {
	ProjectName string
	ProjectID   string
	Registered  bool
	Rollup      Rollup
	Members     []MemberBreakdown
}

// Summary はチームの期間内集計。
type Summary struct {
	Days     int
	Totals   Rollup
	Members  []MemberSummary
	Projects []ProjectSummary
}

// History は個人の作業履歴（終了済みセッションの日別集計）。
type History struct {
	Totals Rollup
	Days   []DayGroup
}

// Service はチーム集計と個人履歴を組み立てるサービス層。
type Service struct {
	members  MemberLister
	projects ProjectLister
	sessions SessionReader
	loc      *time.Location
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(members MemberLister, projects ProjectLister, sessions SessionReader, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		members:  members,
		projects: projects,
		sessions: sessions,
		loc:      loc,
		now:      time.Now,
	}
}

// Presence はチームメンバーの在席状況を返す。
func (s *Service) Presence(ctx context.Context, companyID string) (Presence, error) {
	members, err := s.members.TeamMembers(ctx, companyID)
	if err != nil {
		return Presence{}, err
	}
	active, err := s.sessions.GetActiveForUsers(ctx, userIDs(members))
	if err != nil {
		return Presence{}, err
	}
	return TeamPresence(members, active), nil
}

// Ranking はチームメンバーの期間内の作業時間ランキングを返す。
func (s *Service) Ranking(ctx context.Context, companyID string, days int) ([]MemberRanking, error) {
	members, err := s.members.TeamMembers(ctx, companyID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.SessionsInWindow(ctx, userIDs(members), days)
	if err != nil {
		return nil, err
	}
	return TeamRanking(members, sessions), nil
}

// BuildSummary はチームの直近days日の集計を組み立てる。
// メンバー一覧とプロジェクト一覧は並行して取得する。
func (s *Service) BuildSummary(ctx context.Context, companyID string, days int) (*Summary, error) {
	var (
		members  []*model.User
		projects []*model.Project
		sessions []*model.Session
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = s.members.TeamMembers(gctx, companyID)
		if err != nil {
			return err
		}
		sessions, err = s.sessions.SessionsInWindow(gctx, userIDs(members), days)
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = s.projects.List(gctx, companyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("集計データの取得に失敗しました: %w", err)
	}

	summary := &Summary{
		Days:   days,
		Totals: Totals(sessions),
	}

	bySessionUser := make(map[string][]*model.Session, len(members))
	for _, sess := range sessions {
		bySessionUser[sess.UserID] = append(bySessionUser[sess.UserID], sess)
	}
	for _, r := range TeamRanking(members, sessions) {
		summary.Members = append(summary.Members, MemberSummary{
			User:     r.User,
			Rollup:   r.Rollup,
			Projects: GroupByProject(bySessionUser[r.User.ID]),
		})
	}

	summary.Projects = summarizeProjects(projects, members, sessions)
	return summary, nil
}

// summarizeProjects はプロジェクト名ごとの集計を組み立てる。
// セッションのないプロジェクトは含めず、合計秒数の降順で並べる。
func summarizeProjects(projects []*model.Project, members []*model.User, sessions []*model.Session) []ProjectSummary {
	registered := make(map[string]*model.Project, len(projects))
	for _, p := range projects {
		if _, ok := registered[p.Name]; !ok {
			registered[p.Name] = p
		}
	}
	memberByID := make(map[string]*model.User, len(members))
	for _, m := range members {
		memberByID[m.ID] = m
	}

	byProject := make(map[string][]*model.Session)
	for _, sess := range sessions {
		byProject[sess.ProjectName] = append(byProject[sess.ProjectName], sess)
	}

	result := make([]ProjectSummary, 0, len(byProject))
	for _, group := range GroupByProject(sessions) {
		ps := ProjectSummary{
			ProjectName: group.ProjectName,
			Rollup:      group.Rollup,
		}
		if p, ok := registered[group.ProjectName]; ok {
			ps.ProjectID = p.ID
			ps.Registered = true
		}
		for _, ug := range GroupByUser(byProject[group.ProjectName]) {
			ps.Members = append(ps.Members, MemberBreakdown{
				User:   memberByID[ug.UserID],
				Rollup: ug.Rollup,
			})
		}
		result = append(result, ps)
	}
	return result
}

// BuildHistory はユーザーの直近limit件のセッションのうち終了済みのものを日別に集計する。
// limitが0以下の場合はDefaultHistoryDisplayLimitを使用する。
func (s *Service) BuildHistory(ctx context.Context, userID string, limit int) (*History, error) {
	if limit <= 0 {
		limit = DefaultHistoryDisplayLimit
	}
	page, err := s.sessions.ListHistory(ctx, userID, limit, "")
	if err != nil {
		return nil, err
	}

	completed := make([]*model.Session, 0, len(page.Sessions))
	for _, sess := range page.Sessions {
		if !sess.IsActive() {
			completed = append(completed, sess)
		}
	}

	return &History{
		Totals: Totals(completed),
		Days:   GroupByDay(completed, s.now(), s.loc),
	}, nil
}

func userIDs(users []*model.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}
