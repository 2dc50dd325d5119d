// Package auth は外部IdPが発行するIDトークンの検証を提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンが不正または期限切れであることを表す。
var ErrInvalidToken = errors.New("invalid identity token")

// Identity はIDトークンから取り出した外部IdP上の利用者情報。
type Identity struct {
	// ExternalID はIdP上の安定した利用者識別子（subクレーム）。
	ExternalID string
	// Name はIdPが提示する表示名。プロフィール未登録時の初期値にのみ使う。
	Name string
}

// identityClaims はIDトークンのクレーム。
type identityClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifierConfig はトークン検証の設定。
type TokenVerifierConfig struct {
	Secret string
	Issuer string // 空の場合はissを検証しない
	Leeway time.Duration
}

// TokenVerifier はHS256で署名されたIDトークンを検証する。
type TokenVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewTokenVerifier はTokenVerifierを生成する。
func NewTokenVerifier(cfg TokenVerifierConfig) *TokenVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &TokenVerifier{
		secret: []byte(cfg.Secret),
		opts:   opts,
	}
}

// Verify はトークンを検証し、利用者情報を返す。
// 署名・有効期限・発行者のいずれかが不正な場合はErrInvalidTokenをラップして返す。
func (v *TokenVerifier) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &identityClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*identityClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Identity{
		ExternalID: claims.Subject,
		Name:       claims.Name,
	}, nil
}
