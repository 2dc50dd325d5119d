// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/teamtrack/internal/auth"
	"github.com/hitoshi/teamtrack/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// identityContextKey はリクエストコンテキストに外部IdPの利用者情報を格納するためのキー。
	identityContextKey = contextKey("identity")
	// userContextKey はリクエストコンテキストに解決済みユーザーを格納するためのキー。
	userContextKey = contextKey("user")
)

// TokenVerifier はIDトークンの検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(tokenString string) (*auth.Identity, error)
}

// UserResolver は外部IDから内部ユーザーを解決するインターフェース。
// user.Serviceの部分集合として定義する。
type UserResolver interface {
	Resolve(ctx context.Context, externalID string) (*model.User, error)
}

// NewIdentityMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 外部IdPの利用者情報をリクエストコンテキストに注入するミドルウェアを返す。
// トークンが無い・不正な場合は401 Unauthorizedを返す。
func NewIdentityMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				slog.Debug("identity token rejected",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewUserMiddleware は外部IDを内部ユーザーに解決し、リクエストコンテキストに注入するミドルウェアを返す。
// NewIdentityMiddlewareの後に配置する。プロフィール未登録の場合は403を返す。
func NewUserMiddleware(resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user, err := resolver.Resolve(r.Context(), identity.ExternalID)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteErrorResponse(w, StatusForKind(apiErr.Kind), apiErr)
					return
				}
				slog.Error("failed to resolve user",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			recordLoggedUserID(r.Context(), user.ID)
			ctx := ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewCompanyMemberMiddleware はチームに所属しているユーザーのみを通すミドルウェアを返す。
// NewUserMiddlewareの後に配置する。未所属の場合は403を返す。
func NewCompanyMemberMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if user.CompanyID == nil {
				WriteErrorResponse(w, http.StatusForbidden, model.NewNotCompanyMemberError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// IdentityFromContext はリクエストコンテキストから外部IdPの利用者情報を取得する。
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*auth.Identity)
	return identity, ok && identity != nil && identity.ExternalID != ""
}

// ContextWithIdentity はコンテキストに外部IdPの利用者情報を注入する。
func ContextWithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// UserFromContext はリクエストコンテキストから解決済みユーザーを取得する。
// NewUserMiddlewareを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// ContextWithUser はコンテキストに解決済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserIDFromContext はリクエストコンテキストから内部ユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, ok := UserFromContext(ctx)
	if !ok || user.ID == "" {
		return "", errors.New("user ID not found in context")
	}
	return user.ID, nil
}

// CompanyIDFromContext はリクエストコンテキストのユーザーの所属チームIDを取得する。
func CompanyIDFromContext(ctx context.Context) (string, bool) {
	user, ok := UserFromContext(ctx)
	if !ok || user.CompanyID == nil {
		return "", false
	}
	return *user.CompanyID, true
}
