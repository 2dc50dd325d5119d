package model

import "time"

// SessionStatus は作業セッションの状態を表す。
type SessionStatus string

const (
	// SessionStatusActive は計測中のセッション。EndTimeはnil。
	SessionStatusActive SessionStatus = "active"
	// SessionStatusCompleted は終了済みのセッション。EndTimeは必ず設定される。
	SessionStatusCompleted SessionStatus = "completed"
)

// Session はプロジェクトに対する1回分の作業記録を表す。
//
// ProjectNameは開始時点のプロジェクト名のスナップショットであり、
// プロジェクトへの外部キーではない。
// Startで作成され、Stopで1度だけ更新される。通常のフローでは削除されない。
type Session struct {
	ID           string
	UserID       string
	ProjectName  string
	StartTime    time.Time
	EndTime      *time.Time
	TokensInput  *int64
	TokensOutput *int64
	Status       SessionStatus
}

// IsActive はセッションが計測中かどうかを返す。
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// DurationSeconds は終了済みセッションの作業秒数を返す。
// floor((end - start) / 1000ms) で算出し、保存はしない。
// 未終了の場合は0を返す。end < start のデータ不整合も0として扱う。
func (s *Session) DurationSeconds() int64 {
	if s.EndTime == nil {
		return 0
	}
	ms := s.EndTime.UnixMilli() - s.StartTime.UnixMilli()
	if ms < 0 {
		return 0
	}
	return ms / 1000
}

// ElapsedSeconds は計測中セッションのnow時点での経過秒数を返す。
// 終了済みの場合はDurationSecondsと同じ値を返す。
func (s *Session) ElapsedSeconds(now time.Time) int64 {
	if s.EndTime != nil {
		return s.DurationSeconds()
	}
	ms := now.UnixMilli() - s.StartTime.UnixMilli()
	if ms < 0 {
		return 0
	}
	return ms / 1000
}

// InputTokens は入力トークン数を返す。未設定の場合は0。
func (s *Session) InputTokens() int64 {
	if s.TokensInput == nil {
		return 0
	}
	return *s.TokensInput
}

// OutputTokens は出力トークン数を返す。未設定の場合は0。
func (s *Session) OutputTokens() int64 {
	if s.TokensOutput == nil {
		return 0
	}
	return *s.TokensOutput
}
