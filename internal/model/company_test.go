package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsValidInviteCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABC123", true},
		{"abc123", true},
		{" ABC123 ", true},
		{"ABC12", false},
		{"ABC1234", false},
		{"ABC-12", false},
		{"", false},
		{"あいうえおか", false},
	}

	for _, tt := range tests {
		if got := IsValidInviteCode(tt.code); got != tt.want {
			t.Errorf("IsValidInviteCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNormalizeInviteCode(t *testing.T) {
	if got := NormalizeInviteCode(" abc123\n"); got != "ABC123" {
		t.Errorf("NormalizeInviteCode() = %q, want %q", got, "ABC123")
	}
}

func TestIsValidRepositoryURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://github.com/owner/repo", true},
		{"http://www.github.com/owner/repo/", true},
		{"https://github.com/my.org/my-repo_2", true},
		{"https://gitlab.com/owner/repo", false},
		{"https://github.com/owner", false},
		{"https://github.com/owner/repo/tree/main", false},
		{"github.com/owner/repo", false},
	}

	for _, tt := range tests {
		if got := IsValidRepositoryURL(tt.url); got != tt.want {
			t.Errorf("IsValidRepositoryURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

// TestKindOf_WrappedError はラップされたAPIErrorからも分類を取得できることを検証する。
func TestKindOf_WrappedError(t *testing.T) {
	err := fmt.Errorf("stop failed: %w", NewSessionNotFoundError("s-1"))

	if KindOf(err) != KindNotFound {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindNotFound)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false, want true")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf(plain error) should be empty")
	}
}
