package model

import (
	"regexp"
	"strings"
	"time"
)

// InviteCodeLength は招待コードの文字数。
const InviteCodeLength = 6

// InviteCodeAlphabet は招待コードに使用する文字集合。
const InviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var inviteCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

// Company はチーム（組織）を表す。
// 作成後に変更されることはない。
type Company struct {
	ID         string
	Name       string
	InviteCode string // 大文字で保存する
	CreatedAt  time.Time
}

// NormalizeInviteCode は招待コードを比較用に正規化する（前後空白除去・大文字化）。
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidInviteCode は招待コードが6文字の英数字であるかを判定する。
// 大文字小文字は区別しない。
func IsValidInviteCode(code string) bool {
	return inviteCodePattern.MatchString(strings.TrimSpace(code))
}
