// Package repository はデータ永続化のインターフェースを定義する。
// PostgreSQL実装（本番）とインメモリ実装（テスト・開発モード）を提供する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/teamtrack/internal/model"
)

var (
	// ErrNotFound は更新・削除対象のレコードが存在しないことを表す。
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyCompleted はセッションが既に終了済みで状態遷移できないことを表す。
	ErrAlreadyCompleted = errors.New("session already completed")

	// ErrDuplicateInviteCode は招待コードが既存の企業と衝突したことを表す。
	ErrDuplicateInviteCode = errors.New("duplicate invite code")

	// ErrDuplicateExternalIdentity は外部IdPの識別子が既存ユーザーと重複したことを表す。
	ErrDuplicateExternalIdentity = errors.New("duplicate external identity")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByExternalIdentityID は外部IdPの識別子でユーザーを取得する。見つからない場合はnilを返す。
	FindByExternalIdentityID(ctx context.Context, externalID string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はname、role、avatar_ref、updated_atを更新する。
	// 対象が存在しない場合はErrNotFoundを返す。
	UpdateProfile(ctx context.Context, user *model.User) error

	// SetCompany はユーザーの所属企業を設定する。companyIDがnilの場合は未所属に戻す。
	// 対象が存在しない場合はErrNotFoundを返す。
	SetCompany(ctx context.Context, userID string, companyID *string) error

	// ListByCompanyID は指定企業に所属する全ユーザーを返す。
	ListByCompanyID(ctx context.Context, companyID string) ([]*model.User, error)
}

// CompanyRepository は企業データの永続化インターフェース。
type CompanyRepository interface {
	// FindByID は指定IDの企業を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Company, error)

	// FindByInviteCode は正規化済み（大文字）の招待コードで企業を取得する。見つからない場合はnilを返す。
	FindByInviteCode(ctx context.Context, inviteCode string) (*model.Company, error)

	// CreateWithOwner は企業を作成し、作成者の所属を同一トランザクションで設定する。
	// 招待コードが既存企業と衝突した場合はErrDuplicateInviteCodeを返す。
	// 作成者が存在しない場合はErrNotFoundを返し、企業も作成しない。
	CreateWithOwner(ctx context.Context, company *model.Company, ownerUserID string) error
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// ListByCompanyID は企業のプロジェクト一覧を作成日時の昇順で返す。
	ListByCompanyID(ctx context.Context, companyID string) ([]*model.Project, error)

	// Create はプロジェクトを作成する。
	Create(ctx context.Context, project *model.Project) error

	// Update はname、description、repository_url、updated_atを更新する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, project *model.Project) error

	// Delete はプロジェクトを削除する。セッションは名前で参照しているため影響を受けない。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// HistoryCursor はセッション履歴のキーセットページネーション位置。
// (start_time, id) の降順で、この位置より後ろの行を返す。
type HistoryCursor struct {
	StartTime time.Time
	ID        string
}

// SessionRepository は作業セッションの永続化インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// Complete はstatus='active'のセッションのみを終了済みに更新する。
	// end_time、tokens_input、tokens_output、statusを単一の書き込みで設定し、更新後のセッションを返す。
	// 存在しない場合はErrNotFound、既に終了済みの場合はErrAlreadyCompletedを返す。
	Complete(ctx context.Context, id string, endTime time.Time, tokensInput, tokensOutput int64) (*model.Session, error)

	// ListActiveByUserID はユーザーの計測中セッションを開始日時の昇順で返す。
	ListActiveByUserID(ctx context.Context, userID string) ([]*model.Session, error)

	// ListActiveByUserIDs は指定ユーザー群の計測中セッションを開始日時の昇順で返す。
	ListActiveByUserIDs(ctx context.Context, userIDs []string) ([]*model.Session, error)

	// ListActive は全ユーザーの計測中セッションを開始日時の昇順で返す。
	ListActive(ctx context.Context) ([]*model.Session, error)

	// ListByUserID はユーザーのセッションを(start_time, id)の降順で最大limit件返す。
	// cursorがnilの場合は先頭から取得する。
	ListByUserID(ctx context.Context, userID string, cursor *HistoryCursor, limit int) ([]*model.Session, error)

	// ListCompletedSince は指定ユーザー群の終了済みセッションのうち、start_time >= since のものを返す。
	ListCompletedSince(ctx context.Context, userIDs []string, since time.Time) ([]*model.Session, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
