// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はエラーの分類を表す。HTTPステータスへの変換に使用する。
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindValidation        ErrorKind = "validation"
	KindResourceExhausted ErrorKind = "resource_exhausted"
	KindConflict          ErrorKind = "conflict"
	KindForbidden         ErrorKind = "forbidden"
	KindUnauthorized      ErrorKind = "unauthorized"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string    // エラーコード
	Kind     ErrorKind // エラー分類
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: auth, validation, session, company, project, system
	Action   string    // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeProfileRequired       = "PROFILE_REQUIRED"
	ErrCodeCompanyNotFound       = "COMPANY_NOT_FOUND"
	ErrCodeProjectNotFound       = "PROJECT_NOT_FOUND"
	ErrCodeSessionNotFound       = "SESSION_NOT_FOUND"
	ErrCodeInvalidProjectName    = "INVALID_PROJECT_NAME"
	ErrCodeInvalidRepositoryURL  = "INVALID_REPOSITORY_URL"
	ErrCodeInvalidInviteCode     = "INVALID_INVITE_CODE"
	ErrCodeInvalidCompanyName    = "INVALID_COMPANY_NAME"
	ErrCodeInvalidProfile        = "INVALID_PROFILE"
	ErrCodeInvalidTokenCount     = "INVALID_TOKEN_COUNT"
	ErrCodeInvalidWindow         = "INVALID_WINDOW"
	ErrCodeInvalidCursor         = "INVALID_CURSOR"
	ErrCodeInviteCodeExhausted   = "INVITE_CODE_EXHAUSTED"
	ErrCodeSessionAlreadyStopped = "SESSION_ALREADY_STOPPED"
	ErrCodeNotCompanyMember      = "NOT_COMPANY_MEMBER"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
)

// KindOf はエラーチェーン中のAPIErrorの分類を返す。
// APIErrorを含まない場合は空文字列を返す。
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsNotFound はエラーがNotFound分類かどうかを判定する。
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Kind:     KindNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewProfileRequiredError はプロフィール未登録のユーザーがAPIを利用した場合のエラーを生成する。
func NewProfileRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileRequired,
		Kind:     KindForbidden,
		Message:  "プロフィールが登録されていません。",
		Category: "auth",
		Action:   "プロフィールを登録してから再度お試しください。",
	}
}

// NewCompanyNotFoundError は企業が見つからない場合のエラーを生成する。
func NewCompanyNotFoundError(ref string) *APIError {
	return &APIError{
		Code:     ErrCodeCompanyNotFound,
		Kind:     KindNotFound,
		Message:  fmt.Sprintf("指定されたチームが見つかりません: %s", ref),
		Category: "company",
		Action:   "招待コードを確認してください。",
	}
}

// NewProjectNotFoundError はプロジェクトが見つからない場合のエラーを生成する。
func NewProjectNotFoundError(projectID string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Kind:     KindNotFound,
		Message:  fmt.Sprintf("指定されたプロジェクトが見つかりません: %s", projectID),
		Category: "project",
		Action:   "プロジェクト一覧を再読み込みしてください。",
	}
}

// NewSessionNotFoundError はセッションが見つからない場合のエラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Kind:     KindNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %s", sessionID),
		Category: "session",
		Action:   "セッション一覧を再読み込みしてください。",
	}
}

// NewInvalidProjectNameError はプロジェクト名が不正な場合のエラーを生成する。
func NewInvalidProjectNameError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProjectName,
		Kind:     KindValidation,
		Message:  "プロジェクト名が入力されていません。",
		Category: "validation",
		Action:   "プロジェクト名を入力してください。",
	}
}

// NewInvalidRepositoryURLError はリポジトリURLの形式が不正な場合のエラーを生成する。
func NewInvalidRepositoryURLError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRepositoryURL,
		Kind:     KindValidation,
		Message:  fmt.Sprintf("無効なリポジトリURLです: %s", url),
		Category: "validation",
		Action:   "https://github.com/owner/repo の形式で入力してください。",
	}
}

// NewInvalidInviteCodeError は招待コードの形式が不正な場合のエラーを生成する。
func NewInvalidInviteCodeError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInviteCode,
		Kind:     KindValidation,
		Message:  fmt.Sprintf("無効な招待コードです: %s", code),
		Category: "validation",
		Action:   "6文字の英数字の招待コードを入力してください。",
	}
}

// NewInvalidCompanyNameError はチーム名が不正な場合のエラーを生成する。
func NewInvalidCompanyNameError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCompanyName,
		Kind:     KindValidation,
		Message:  "チーム名が入力されていません。",
		Category: "validation",
		Action:   "チーム名を入力してください。",
	}
}

// NewInvalidProfileError はプロフィール入力が不正な場合のエラーを生成する。
func NewInvalidProfileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfile,
		Kind:     KindValidation,
		Message:  fmt.Sprintf("プロフィールの入力が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidTokenCountError はトークン数が不正な場合のエラーを生成する。
func NewInvalidTokenCountError(value int64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTokenCount,
		Kind:     KindValidation,
		Message:  fmt.Sprintf("無効なトークン数です: %d", value),
		Category: "validation",
		Action:   "0以上の整数を入力してください。",
	}
}

// NewInvalidWindowError は集計期間が不正な場合のエラーを生成する。
func NewInvalidWindowError(days int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWindow,
		Kind:     KindValidation,
		Message:  fmt.Sprintf("無効な集計期間です: %d日", days),
		Category: "validation",
		Action:   "集計期間は1日から365日の範囲で指定してください。",
	}
}

// NewInvalidCursorError はページネーションカーソルが不正な場合のエラーを生成する。
func NewInvalidCursorError(cursor string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCursor,
		Kind:     KindValidation,
		Message:  fmt.Sprintf("無効なカーソル値です: %s", cursor),
		Category: "validation",
		Action:   "一覧を先頭から再読み込みしてください。",
	}
}

// NewInviteCodeExhaustedError は招待コードの生成が上限回数内に一意にならなかった場合のエラーを生成する。
func NewInviteCodeExhaustedError(attempts int) *APIError {
	return &APIError{
		Code:     ErrCodeInviteCodeExhausted,
		Kind:     KindResourceExhausted,
		Message:  fmt.Sprintf("招待コードの生成に失敗しました（%d回試行）。", attempts),
		Category: "system",
		Action:   "しばらく待ってから再度チームを作成してください。",
	}
}

// NewSessionAlreadyStoppedError は終了済みセッションを再度終了しようとした場合のエラーを生成する。
func NewSessionAlreadyStoppedError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionAlreadyStopped,
		Kind:     KindConflict,
		Message:  fmt.Sprintf("セッションは既に終了しています: %s", sessionID),
		Category: "session",
		Action:   "画面を再読み込みして最新の状態を確認してください。",
	}
}

// NewNotCompanyMemberError はチームに所属していないユーザーがチーム機能を利用した場合のエラーを生成する。
func NewNotCompanyMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeNotCompanyMember,
		Kind:     KindForbidden,
		Message:  "チームに所属していません。",
		Category: "company",
		Action:   "チームを作成するか、招待コードでチームに参加してください。",
	}
}

// NewUnauthorizedError は認証情報が無い・不正な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Kind:     KindUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
