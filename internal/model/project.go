package model

import (
	"regexp"
	"time"
)

var repositoryURLPattern = regexp.MustCompile(`^https?://(www\.)?github\.com/[\w\-._]+/[\w\-._]+/?$`)

// Project は企業に属する名前付きプロジェクトを表す。
// セッションはプロジェクトをIDではなく名前で参照するため、
// プロジェクトの改名・削除は既存セッションに影響しない。
type Project struct {
	ID            string
	CompanyID     string
	Name          string
	Description   *string // サニタイズ済み
	RepositoryURL *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsValidRepositoryURL はリポジトリURLがGitHubリポジトリの形式かを判定する。
func IsValidRepositoryURL(url string) bool {
	return repositoryURLPattern.MatchString(url)
}
