package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/teamtrack/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	TokenVerifier     middleware.TokenVerifier
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           middleware.HTTPMetricsRecorder

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// プロフィール
	ProfileService ProfileServiceInterface

	// チーム
	CompanyService CompanyServiceInterface
	MemberLister   TeamMemberLister
	TeamStats      TeamStatsService
	SummaryDays    int

	// プロジェクト
	ProjectService ProjectServiceInterface

	// セッション
	SessionService SessionServiceInterface
	WindowSessions WindowSessionReader
	HistoryBuilder HistoryBuilder
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  /api: Identity → RateLimit(General) → User → CompanyMember
//
// /health と /metrics は認証の外に配置する。
// プロフィールのルートはユーザー解決前に利用できる。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	profileHandler := NewProfileHandler(deps.ProfileService)
	companyHandler := NewCompanyHandler(deps.CompanyService)
	teamHandler := NewTeamHandler(deps.MemberLister, deps.TeamStats, deps.WindowSessions, deps.SummaryDays)
	projectHandler := NewProjectHandler(deps.ProjectService)
	sessionHandler := NewSessionHandler(deps.SessionService, deps.HistoryBuilder)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// プロフィール（未登録でも利用可）
		r.Get("/profile", profileHandler.GetProfile)
		r.Put("/profile", profileHandler.SubmitProfile)

		// プロフィール登録済みのユーザーのみ
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewUserMiddleware(deps.UserResolver))

			// チームの作成・参加
			r.Route("/companies", func(r chi.Router) {
				// POST /api/companies - チーム作成（作成専用レート制限を追加）
				r.With(deps.RateLimiter.CompanyCreationMiddleware()).Post("/", companyHandler.CreateCompany)
				r.Get("/lookup", companyHandler.LookupByInviteCode)
				r.Post("/join", companyHandler.JoinByInviteCode)
				r.Get("/{id}", companyHandler.GetCompany)
			})
			r.Delete("/me/company", companyHandler.LeaveCompany)

			// 作業セッション
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", sessionHandler.StartSession)
				r.Get("/active", sessionHandler.ListActive)
				r.Get("/history", sessionHandler.ListHistory)
				r.Get("/history/daily", sessionHandler.DailyHistory)
				r.Get("/recent-projects", sessionHandler.RecentProjects)
				r.Post("/{id}/stop", sessionHandler.StopSession)
			})

			// チーム所属ユーザーのみ
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewCompanyMemberMiddleware())

				r.Route("/team", func(r chi.Router) {
					r.Get("/members", teamHandler.ListMembers)
					r.Get("/presence", teamHandler.Presence)
					r.Get("/ranking", teamHandler.Ranking)
					r.Get("/summary", teamHandler.Summary)
					r.Get("/sessions", teamHandler.ListSessions)
				})

				r.Route("/projects", func(r chi.Router) {
					r.Get("/", projectHandler.ListProjects)
					r.Post("/", projectHandler.CreateProject)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", projectHandler.GetProject)
						r.Patch("/", projectHandler.UpdateProject)
						r.Delete("/", projectHandler.DeleteProject)
					})
				})
			})
		})
	})

	return r
}
