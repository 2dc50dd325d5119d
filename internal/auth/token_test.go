package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func validClaims(sub string) identityClaims {
	now := time.Now()
	return identityClaims{
		Name: "Alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://idp.example.com",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestVerify_ValidToken(t *testing.T) {
	v := NewTokenVerifier(TokenVerifierConfig{Secret: testSecret})
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("ext-123"))

	identity, err := v.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.ExternalID != "ext-123" {
		t.Errorf("ExternalID = %q, want %q", identity.ExternalID, "ext-123")
	}
	if identity.Name != "Alice" {
		t.Errorf("Name = %q, want %q", identity.Name, "Alice")
	}
}

func TestVerify_Rejects(t *testing.T) {
	expired := validClaims("ext-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExpiry := validClaims("ext-1")
	noExpiry.ExpiresAt = nil

	noSubject := validClaims("")

	tests := []struct {
		name  string
		cfg   TokenVerifierConfig
		token func(t *testing.T) string
	}{
		{
			name: "wrong secret",
			cfg:  TokenVerifierConfig{Secret: testSecret},
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("ext-1"))
			},
		},
		{
			name: "expired",
			cfg:  TokenVerifierConfig{Secret: testSecret},
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired)
			},
		},
		{
			name: "missing exp",
			cfg:  TokenVerifierConfig{Secret: testSecret},
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry)
			},
		},
		{
			name: "missing subject",
			cfg:  TokenVerifierConfig{Secret: testSecret},
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject)
			},
		},
		{
			name: "issuer mismatch",
			cfg:  TokenVerifierConfig{Secret: testSecret, Issuer: "https://other.example.com"},
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("ext-1"))
			},
		},
		{
			name: "other hmac algorithm",
			cfg:  TokenVerifierConfig{Secret: testSecret},
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims("ext-1"))
			},
		},
		{
			name: "garbage",
			cfg:  TokenVerifierConfig{Secret: testSecret},
			token: func(t *testing.T) string {
				return "not-a-token"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewTokenVerifier(tt.cfg)
			_, err := v.Verify(tt.token(t))
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerify_IssuerMatch(t *testing.T) {
	v := NewTokenVerifier(TokenVerifierConfig{Secret: testSecret, Issuer: "https://idp.example.com"})
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("ext-9"))

	if _, err := v.Verify(token); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
