// Package app はプロセスの起動、依存関係のワイヤリング、サブコマンドの実行を担う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/teamtrack/internal/auth"
	"github.com/hitoshi/teamtrack/internal/company"
	"github.com/hitoshi/teamtrack/internal/config"
	"github.com/hitoshi/teamtrack/internal/database"
	"github.com/hitoshi/teamtrack/internal/handler"
	"github.com/hitoshi/teamtrack/internal/logger"
	"github.com/hitoshi/teamtrack/internal/metrics"
	"github.com/hitoshi/teamtrack/internal/middleware"
	"github.com/hitoshi/teamtrack/internal/project"
	"github.com/hitoshi/teamtrack/internal/repository"
	"github.com/hitoshi/teamtrack/internal/security"
	"github.com/hitoshi/teamtrack/internal/session"
	"github.com/hitoshi/teamtrack/internal/stats"
	"github.com/hitoshi/teamtrack/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store_backend", string(cfg.StoreBackend)),
		slog.String("timezone", cfg.Location.String()),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// repositories は選択されたバックエンドのリポジトリ群。
type repositories struct {
	users     repository.UserRepository
	companies repository.CompanyRepository
	projects  repository.ProjectRepository
	sessions  repository.SessionRepository
	// checker はヘルスチェック用の疎通確認先。インメモリストアではnil。
	checker handler.HealthChecker
	close   func() error
}

// openRepositories は設定に従ってPostgreSQLまたはインメモリのリポジトリを用意する。
func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		store := repository.NewMemoryStore()
		return &repositories{
			users:     store.Users(),
			companies: store.Companies(),
			projects:  store.Projects(),
			sessions:  store.Sessions(),
			close:     func() error { return nil },
		}, nil
	}

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	slog.Info("database connection established")

	return &repositories{
		users:     repository.NewPostgresUserRepo(db),
		companies: repository.NewPostgresCompanyRepo(db),
		projects:  repository.NewPostgresProjectRepo(db),
		sessions:  repository.NewPostgresSessionRepo(db),
		checker:   db,
		close:     db.Close,
	}, nil
}

// buildRouter はドメインサービスを初期化し、ルーターを構築する。
// 戻り値の関数はレートリミッターのクリーンアップを停止する。
func buildRouter(cfg *config.Config, repos *repositories, reg *prometheus.Registry) (http.Handler, func()) {
	collector := metrics.NewCollector(reg)

	// ドメインサービスの初期化
	userService := user.NewService(repos.users)
	companyService := company.NewService(repos.users, repos.companies, collector)
	projectService := project.NewService(repos.projects, security.NewDescriptionSanitizer())
	sessionService := session.NewService(repos.sessions, collector, cfg.Location)
	statsService := stats.NewService(companyService, projectService, sessionService, cfg.Location)

	verifier := auth.NewTokenVerifier(auth.TokenVerifierConfig{
		Secret: cfg.IdentityTokenSecret,
		Issuer: cfg.IdentityTokenIssuer,
		Leeway: cfg.IdentityTokenLeeway,
	})

	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitCompanyCreate),
	)

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		TokenVerifier:     verifier,
		UserResolver:      userService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,

		HealthChecker:  repos.checker,
		MetricsHandler: metrics.Handler(reg),

		ProfileService: userService,

		CompanyService: companyService,
		MemberLister:   companyService,
		TeamStats:      statsService,
		SummaryDays:    cfg.SummaryDefaultDays,

		ProjectService: projectService,

		SessionService: sessionService,
		WindowSessions: sessionService,
		HistoryBuilder: statsService,
	}

	return handler.NewRouter(deps), rateLimiter.Stop
}

// newRegistry はプロセス・Goランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.close()

	router, stopLimiter := buildRouter(cfg, repos, newRegistry())
	defer stopLimiter()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreBackend != config.StoreBackendPostgres {
		return fmt.Errorf("migrate requires STORE_BACKEND=postgres, got %q", cfg.StoreBackend)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
