package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreBackend は永続化バックエンドの種類を表す。
type StoreBackend string

const (
	// StoreBackendPostgres はPostgreSQLを使用する本番用バックエンド。
	StoreBackendPostgres StoreBackend = "postgres"
	// StoreBackendMemory はプロセス内に保持する開発用バックエンド。再起動でデータは失われる。
	StoreBackendMemory StoreBackend = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StoreBackend StoreBackend
	DatabaseURL  string

	// Identity token
	IdentityTokenSecret string
	IdentityTokenIssuer string
	IdentityTokenLeeway time.Duration

	// Rate Limit (req/min/user)
	RateLimitGeneral       int
	RateLimitCompanyCreate int

	// Aggregation
	Location           *time.Location
	SummaryDefaultDays int

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort      string
	ShutdownTimeout time.Duration

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値が解釈できない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	backend, err := parseStoreBackend(getEnvString("STORE_BACKEND", string(StoreBackendPostgres)))
	if err != nil {
		return nil, err
	}
	cfg.StoreBackend = backend

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StoreBackend == StoreBackendPostgres {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.IdentityTokenSecret = os.Getenv("IDENTITY_TOKEN_SECRET")
	if cfg.IdentityTokenSecret == "" {
		missing = append(missing, "IDENTITY_TOKEN_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	loc, err := time.LoadLocation(getEnvString("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	level, err := parseLogLevel(getEnvString("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	// Optional fields with defaults
	cfg.IdentityTokenIssuer = getEnvString("IDENTITY_TOKEN_ISSUER", "")
	cfg.IdentityTokenLeeway = getEnvDuration("IDENTITY_TOKEN_LEEWAY", 30*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCompanyCreate = getEnvInt("RATE_LIMIT_COMPANY_CREATE", 5)
	cfg.SummaryDefaultDays = getEnvInt("SUMMARY_DEFAULT_DAYS", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:8081")

	return cfg, nil
}

func parseStoreBackend(v string) (StoreBackend, error) {
	switch StoreBackend(strings.ToLower(v)) {
	case StoreBackendPostgres:
		return StoreBackendPostgres, nil
	case StoreBackendMemory:
		return StoreBackendMemory, nil
	default:
		return "", fmt.Errorf("invalid STORE_BACKEND: %q (want postgres or memory)", v)
	}
}

func parseLogLevel(v string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL: %q", v)
	}
	return level, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
