// Package stats は作業セッションの集計（合計、日別、プロジェクト別、メンバー別）を提供する。
//
// 集計は保存せず、問い合わせごとに生のセッションから再計算する。
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hitoshi/teamtrack/internal/model"
)

// Rollup はセッション集合の集計値。
type Rollup struct {
	TotalSeconds      int64
	TotalInputTokens  int64
	TotalOutputTokens int64
	SessionCount      int
}

// TotalTokens は入力・出力トークンの合計を返す。
func (r Rollup) TotalTokens() int64 {
	return r.TotalInputTokens + r.TotalOutputTokens
}

func (r *Rollup) add(s *model.Session) {
	r.TotalSeconds += s.DurationSeconds()
	r.TotalInputTokens += s.InputTokens()
	r.TotalOutputTokens += s.OutputTokens()
	r.SessionCount++
}

// Totals はセッション集合の合計を返す。
// 秒数は終了日時のあるセッションのみ加算し、未設定のトークン数は0として扱う。
func Totals(sessions []*model.Session) Rollup {
	var r Rollup
	for _, s := range sessions {
		r.add(s)
	}
	return r
}

// DayGroup は1日分のセッションと集計値。
type DayGroup struct {
	Key      string // YYYY-MM-DD（ローカル日付）
	Label    string
	Sessions []*model.Session
	Rollup   Rollup
}

// ProjectGroup はプロジェクト名ごとの集計値。
type ProjectGroup struct {
	ProjectName string
	Rollup      Rollup
}

// UserGroup はユーザーごとの集計値。
type UserGroup struct {
	UserID string
	Rollup Rollup
}

// dayKeyLayout は日別グループのキー形式。
const dayKeyLayout = "2006-01-02"

var weekdayLabels = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// GroupByDay はセッションを開始日時のローカル日付でまとめ、新しい日付から順に返す。
// 各日内のセッションは入力の順序を保つ。
func GroupByDay(sessions []*model.Session, now time.Time, loc *time.Location) []DayGroup {
	index := make(map[string]int)
	var groups []DayGroup
	for _, s := range sessions {
		key := s.StartTime.In(loc).Format(dayKeyLayout)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{
				Key:   key,
				Label: DayLabel(s.StartTime, now, loc),
			})
		}
		groups[i].Sessions = append(groups[i].Sessions, s)
		groups[i].Rollup.add(s)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Key > groups[j].Key
	})
	return groups
}

// DayLabel は日付の表示名を返す。今日・昨日は特別扱いし、それ以外は「1月2日 (月)」形式とする。
func DayLabel(t, now time.Time, loc *time.Location) string {
	local := t.In(loc)
	today := now.In(loc)
	switch {
	case sameDay(local, today):
		return "今日"
	case sameDay(local, today.AddDate(0, 0, -1)):
		return "昨日"
	}
	return fmt.Sprintf("%d月%d日 (%s)", local.Month(), local.Day(), weekdayLabels[local.Weekday()])
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// GroupByProject はセッションをプロジェクト名ごとに集計し、合計秒数の降順で返す。
// 同じ秒数の場合はプロジェクト名の昇順とする。
func GroupByProject(sessions []*model.Session) []ProjectGroup {
	index := make(map[string]int)
	var groups []ProjectGroup
	for _, s := range sessions {
		i, ok := index[s.ProjectName]
		if !ok {
			i = len(groups)
			index[s.ProjectName] = i
			groups = append(groups, ProjectGroup{ProjectName: s.ProjectName})
		}
		groups[i].Rollup.add(s)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Rollup.TotalSeconds != groups[j].Rollup.TotalSeconds {
			return groups[i].Rollup.TotalSeconds > groups[j].Rollup.TotalSeconds
		}
		return groups[i].ProjectName < groups[j].ProjectName
	})
	return groups
}

// GroupByUser はセッションをユーザーごとに集計し、合計秒数の降順で返す。
// 同じ秒数の場合はユーザーIDの昇順とする。
func GroupByUser(sessions []*model.Session) []UserGroup {
	index := make(map[string]int)
	var groups []UserGroup
	for _, s := range sessions {
		i, ok := index[s.UserID]
		if !ok {
			i = len(groups)
			index[s.UserID] = i
			groups = append(groups, UserGroup{UserID: s.UserID})
		}
		groups[i].Rollup.add(s)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Rollup.TotalSeconds != groups[j].Rollup.TotalSeconds {
			return groups[i].Rollup.TotalSeconds > groups[j].Rollup.TotalSeconds
		}
		return groups[i].UserID < groups[j].UserID
	})
	return groups
}

// MemberPresence はメンバー1人の在席状況。
type MemberPresence struct {
	User            *model.User
	IsActive        bool
	CurrentProjects []string // 計測中セッションのプロジェクト名（重複なし、開始順）
	ActiveSessions  []*model.Session
}

// Presence はチーム全体の在席状況。
type Presence struct {
	Members     []MemberPresence
	ActiveCount int
}

// TeamPresence はメンバーごとの計測中セッションをまとめる。
// 計測中のメンバーを先に、同じ状態内では名前の昇順で並べる。
// メンバー以外のユーザーのセッションは無視する。
func TeamPresence(members []*model.User, active []*model.Session) Presence {
	byUser := make(map[string][]*model.Session, len(members))
	for _, s := range active {
		if s.IsActive() {
			byUser[s.UserID] = append(byUser[s.UserID], s)
		}
	}

	presence := Presence{Members: make([]MemberPresence, 0, len(members))}
	for _, m := range members {
		sessions := byUser[m.ID]
		mp := MemberPresence{
			User:            m,
			IsActive:        len(sessions) > 0,
			CurrentProjects: []string{},
			ActiveSessions:  sessions,
		}
		seen := make(map[string]bool, len(sessions))
		for _, s := range sessions {
			if !seen[s.ProjectName] {
				seen[s.ProjectName] = true
				mp.CurrentProjects = append(mp.CurrentProjects, s.ProjectName)
			}
		}
		if mp.IsActive {
			presence.ActiveCount++
		}
		presence.Members = append(presence.Members, mp)
	}

	sort.SliceStable(presence.Members, func(i, j int) bool {
		a, b := presence.Members[i], presence.Members[j]
		if a.IsActive != b.IsActive {
			return a.IsActive
		}
		return a.User.Name < b.User.Name
	})
	return presence
}

// MemberRanking はメンバー1人の期間内集計。
type MemberRanking struct {
	User   *model.User
	Rollup Rollup
}

// TeamRanking はメンバーごとの集計を合計秒数の降順で返す。
// セッションのないメンバーも0件の集計で含める。同じ秒数の場合は名前の昇順とする。
func TeamRanking(members []*model.User, sessions []*model.Session) []MemberRanking {
	byUser := make(map[string]*Rollup, len(members))
	ranking := make([]MemberRanking, len(members))
	for i, m := range members {
		ranking[i].User = m
		byUser[m.ID] = &ranking[i].Rollup
	}
	for _, s := range sessions {
		if r, ok := byUser[s.UserID]; ok {
			r.add(s)
		}
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Rollup.TotalSeconds != ranking[j].Rollup.TotalSeconds {
			return ranking[i].Rollup.TotalSeconds > ranking[j].Rollup.TotalSeconds
		}
		return ranking[i].User.Name < ranking[j].User.Name
	})
	return ranking
}

// FormatDuration は秒数を「1h 1m」「5m」「42s」の形式で返す。
// 1時間以上は時間と分、1分以上は分のみ、それ未満は秒で表す。
func FormatDuration(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", seconds)
}

// FormatTokens はトークン数を3桁区切りで返す。
func FormatTokens(n int64) string {
	return humanize.Comma(n)
}
