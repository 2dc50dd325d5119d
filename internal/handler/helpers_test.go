package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/teamtrack/internal/auth"
	"github.com/hitoshi/teamtrack/internal/middleware"
	"github.com/hitoshi/teamtrack/internal/model"
)

func strPtr(s string) *string { return &s }

// testMember はチーム所属済みのテスト用ユーザーを返す。
func testMember() *model.User {
	return &model.User{ID: "user-123", Name: "Alice", Role: "engineer", CompanyID: strPtr("company-1")}
}

// newJSONRequest はJSONボディ付きのリクエストを生成する。
func newJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withUser はリクエストコンテキストに解決済みユーザーを注入する。
func withUser(req *http.Request, u *model.User) *http.Request {
	return req.WithContext(middleware.ContextWithUser(req.Context(), u))
}

// withIdentity はリクエストコンテキストに外部IdPの利用者情報を注入する。
func withIdentity(req *http.Request, externalID, name string) *http.Request {
	return req.WithContext(middleware.ContextWithIdentity(req.Context(), &auth.Identity{ExternalID: externalID, Name: name}))
}

// withURLParam はchiのURLパラメータを注入する。
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d", w.Code, wantStatus)
	}
	var body middleware.ErrorResponseBody
	decodeJSON(t, w, &body)
	if body.Code != wantCode {
		t.Errorf("code = %q, want %q", body.Code, wantCode)
	}
}
