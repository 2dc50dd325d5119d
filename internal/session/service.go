// Package session は作業セッションの記録（開始・終了・参照）のドメインロジックを提供する。
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/teamtrack/internal/metrics"
	"github.com/hitoshi/teamtrack/internal/model"
	"github.com/hitoshi/teamtrack/internal/repository"
)

const (
	// DefaultHistoryLimit は履歴取得件数の既定値。
	DefaultHistoryLimit = 10
	// MaxHistoryLimit は履歴取得件数の上限。
	MaxHistoryLimit = 100
	// RecentProjectScanSize は最近のプロジェクト名を抽出する際に走査するセッション数。
	RecentProjectScanSize = 50
	// MaxWindowDays は集計期間の上限日数。
	MaxWindowDays = 365
	// MaxProjectNameLength はセッションに記録するプロジェクト名の最大文字数。
	MaxProjectNameLength = 255
)

// StopInput はセッション終了時に報告されるトークン数。nilは0として記録する。
type StopInput struct {
	TokensInput  *int64
	TokensOutput *int64
}

// HistoryPage はセッション履歴の1ページ分を表す。
type HistoryPage struct {
	Sessions   []*model.Session
	NextCursor string
	HasMore    bool
}

// Service は作業セッションのサービス層。
type Service struct {
	sessionRepo repository.SessionRepository
	metrics     metrics.MetricsCollector
	loc         *time.Location
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// locは集計期間の日付境界（ローカル時刻の0時）の基準となるタイムゾーン。
func NewService(
	sessionRepo repository.SessionRepository,
	collector metrics.MetricsCollector,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		sessionRepo: sessionRepo,
		metrics:     collector,
		loc:         loc,
		now:         time.Now,
	}
}

// Start は計測中のセッションを作成する。
// 同じユーザー・同じプロジェクトで計測中のセッションがあっても別のセッションとして作成する。
func (s *Service) Start(ctx context.Context, userID, projectName string) (*model.Session, error) {
	name := strings.TrimSpace(projectName)
	if name == "" || utf8.RuneCountInString(name) > MaxProjectNameLength {
		return nil, model.NewInvalidProjectNameError()
	}

	session := &model.Session{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProjectName: name,
		// PostgreSQLのtimestamptzの精度に揃える
		StartTime: s.now().Truncate(time.Microsecond),
		Status:    model.SessionStatusActive,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの開始に失敗しました: %w", err)
	}

	s.metrics.RecordSessionStarted()
	slog.Info("セッションを開始しました",
		slog.String("session_id", session.ID),
		slog.String("user_id", userID),
		slog.String("project_name", name),
	)
	return session, nil
}

// Stop は計測中のセッションを終了する。
// 終了済みのセッションに対してはSessionAlreadyStoppedエラーを返し、記録を上書きしない。
func (s *Service) Stop(ctx context.Context, sessionID string, input StopInput) (*model.Session, error) {
	tokensInput, err := tokenCount(input.TokensInput)
	if err != nil {
		return nil, err
	}
	tokensOutput, err := tokenCount(input.TokensOutput)
	if err != nil {
		return nil, err
	}

	if uuid.Validate(sessionID) != nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}

	endTime := s.now().Truncate(time.Microsecond)
	session, err := s.sessionRepo.Complete(ctx, sessionID, endTime, tokensInput, tokensOutput)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, model.NewSessionNotFoundError(sessionID)
	case errors.Is(err, repository.ErrAlreadyCompleted):
		s.metrics.RecordStopConflict()
		slog.Warn("終了済みのセッションに終了要求がありました",
			slog.String("session_id", sessionID),
		)
		return nil, model.NewSessionAlreadyStoppedError(sessionID)
	case err != nil:
		return nil, fmt.Errorf("セッションの終了に失敗しました: %w", err)
	}

	if session.EndTime.Before(session.StartTime) {
		// 時刻の巻き戻りによるデータ不整合。エラーにはせず記録のみ行う
		slog.Warn("終了日時が開始日時より前です",
			slog.String("session_id", session.ID),
			slog.Time("start_time", session.StartTime),
			slog.Time("end_time", *session.EndTime),
		)
	}

	duration := session.DurationSeconds()
	s.metrics.RecordSessionStopped(duration)
	slog.Info("セッションを終了しました",
		slog.String("session_id", session.ID),
		slog.String("user_id", session.UserID),
		slog.Int64("duration_seconds", duration),
	)
	return session, nil
}

// StopForUser はユーザー本人のセッションのみを終了する。
// 他ユーザーのセッションは存在しないものとして扱う。
func (s *Service) StopForUser(ctx context.Context, userID, sessionID string, input StopInput) (*model.Session, error) {
	if uuid.Validate(sessionID) != nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil || session.UserID != userID {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return s.Stop(ctx, sessionID, input)
}

// GetActiveForUser はユーザーの計測中セッションを返す。
func (s *Service) GetActiveForUser(ctx context.Context, userID string) ([]*model.Session, error) {
	sessions, err := s.sessionRepo.ListActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("計測中セッションの取得に失敗しました: %w", err)
	}
	return sessions, nil
}

// GetAllActive は全ユーザーの計測中セッションを返す。
func (s *Service) GetAllActive(ctx context.Context) ([]*model.Session, error) {
	sessions, err := s.sessionRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("計測中セッションの取得に失敗しました: %w", err)
	}
	return sessions, nil
}

// GetActiveForUsers は指定ユーザー群（通常はチームメンバー）の計測中セッションを返す。
func (s *Service) GetActiveForUsers(ctx context.Context, userIDs []string) ([]*model.Session, error) {
	sessions, err := s.sessionRepo.ListActiveByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("計測中セッションの取得に失敗しました: %w", err)
	}
	return sessions, nil
}

// ListHistory はユーザーのセッションを開始日時の新しい順にページ単位で返す。
// limitが0以下の場合はDefaultHistoryLimit、MaxHistoryLimitを超える場合はMaxHistoryLimitを使用する。
// limit+1件を取得してHasMoreを判定する。
func (s *Service) ListHistory(ctx context.Context, userID string, limit int, cursorStr string) (*HistoryPage, error) {
	limit = ClampHistoryLimit(limit)

	var cursor *repository.HistoryCursor
	if cursorStr != "" {
		c, err := DecodeCursor(cursorStr)
		if err != nil {
			return nil, model.NewInvalidCursorError(cursorStr)
		}
		cursor = c
	}

	sessions, err := s.sessionRepo.ListByUserID(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("セッション履歴の取得に失敗しました: %w", err)
	}

	hasMore := len(sessions) > limit
	if hasMore {
		sessions = sessions[:limit]
	}

	var nextCursor string
	if hasMore && len(sessions) > 0 {
		last := sessions[len(sessions)-1]
		nextCursor = EncodeCursor(repository.HistoryCursor{StartTime: last.StartTime, ID: last.ID})
	}

	return &HistoryPage{
		Sessions:   sessions,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// RecentProjectNames は直近RecentProjectScanSize件のセッションから、
// 新しい順に重複を除いたプロジェクト名を返す。
func (s *Service) RecentProjectNames(ctx context.Context, userID string) ([]string, error) {
	sessions, err := s.sessionRepo.ListByUserID(ctx, userID, nil, RecentProjectScanSize)
	if err != nil {
		return nil, fmt.Errorf("最近のプロジェクトの取得に失敗しました: %w", err)
	}

	seen := make(map[string]bool, len(sessions))
	names := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		if seen[sess.ProjectName] {
			continue
		}
		seen[sess.ProjectName] = true
		names = append(names, sess.ProjectName)
	}
	return names, nil
}

// SessionsInWindow は指定ユーザー群の終了済みセッションのうち、
// 開始日時が直近days日の期間内にあるものを返す。
// 期間の起点は現在時刻からdays日前の日付のローカル0時とする。
func (s *Service) SessionsInWindow(ctx context.Context, userIDs []string, days int) ([]*model.Session, error) {
	if days < 1 || days > MaxWindowDays {
		return nil, model.NewInvalidWindowError(days)
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	since := WindowStart(s.now(), days, s.loc)
	sessions, err := s.sessionRepo.ListCompletedSince(ctx, userIDs, since)
	if err != nil {
		return nil, fmt.Errorf("期間内セッションの取得に失敗しました: %w", err)
	}
	return sessions, nil
}

// WindowStart はnowからdays日前の日付の、loc上の0時を返す。
func WindowStart(now time.Time, days int, loc *time.Location) time.Time {
	t := now.In(loc).AddDate(0, 0, -days)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ClampHistoryLimit は履歴取得件数を[1, MaxHistoryLimit]に収める。0以下は既定値とする。
func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// cursorSeparator はカーソル内の開始日時とIDの区切り文字。
const cursorSeparator = "|"

// EncodeCursor はページネーション位置を不透明な文字列に変換する。
func EncodeCursor(c repository.HistoryCursor) string {
	raw := c.StartTime.UTC().Format(time.RFC3339Nano) + cursorSeparator + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor はEncodeCursorで生成した文字列をページネーション位置に戻す。
func DecodeCursor(s string) (*repository.HistoryCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("カーソルのデコードに失敗しました: %w", err)
	}
	ts, id, ok := strings.Cut(string(raw), cursorSeparator)
	if !ok || id == "" {
		return nil, errors.New("カーソルの形式が不正です")
	}
	startTime, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("カーソルの日時が不正です: %w", err)
	}
	return &repository.HistoryCursor{StartTime: startTime, ID: id}, nil
}

func tokenCount(v *int64) (int64, error) {
	if v == nil {
		return 0, nil
	}
	if *v < 0 {
		return 0, model.NewInvalidTokenCountError(*v)
	}
	return *v, nil
}
