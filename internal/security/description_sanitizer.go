// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizer はプロジェクト説明文に含まれるHTMLを
// 許可リストベースのbluemondayポリシーで無害化する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
type Sanitizer interface {
	// Sanitize は入力を無害化して返す。前後の空白は除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// descriptionSanitizer はSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はプロジェクト説明文用のSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, code, strong, em, a
//   - aタグ: hrefはhttp/httpsの絶対URLのみ、rel="nofollow noreferrer"を付与
//   - その他のタグと全てのon*属性は除去
func NewDescriptionSanitizer() *descriptionSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "ul", "ol", "li", "code", "strong", "em")

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &descriptionSanitizer{policy: p}
}

// Sanitize は説明文を無害化して返す。
func (s *descriptionSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
