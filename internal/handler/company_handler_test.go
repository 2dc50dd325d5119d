package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/teamtrack/internal/model"
)

// mockCompanyService はCompanyServiceInterfaceのモック実装。
type mockCompanyService struct {
	createCompanyFn      func(ctx context.Context, creatorID, name string) (*model.Company, error)
	lookupByInviteCodeFn func(ctx context.Context, code string) (*model.Company, error)
	getCompanyFn         func(ctx context.Context, companyID string) (*model.Company, error)
	joinByInviteCodeFn   func(ctx context.Context, userID, code string) (*model.Company, error)
	leaveCompanyFn       func(ctx context.Context, userID string) error
}

func (m *mockCompanyService) CreateCompany(ctx context.Context, creatorID, name string) (*model.Company, error) {
	if m.createCompanyFn != nil {
		return m.createCompanyFn(ctx, creatorID, name)
	}
	return nil, nil
}

func (m *mockCompanyService) LookupByInviteCode(ctx context.Context, code string) (*model.Company, error) {
	if m.lookupByInviteCodeFn != nil {
		return m.lookupByInviteCodeFn(ctx, code)
	}
	return nil, nil
}

func (m *mockCompanyService) GetCompany(ctx context.Context, companyID string) (*model.Company, error) {
	if m.getCompanyFn != nil {
		return m.getCompanyFn(ctx, companyID)
	}
	return nil, nil
}

func (m *mockCompanyService) JoinByInviteCode(ctx context.Context, userID, code string) (*model.Company, error) {
	if m.joinByInviteCodeFn != nil {
		return m.joinByInviteCodeFn(ctx, userID, code)
	}
	return nil, nil
}

func (m *mockCompanyService) LeaveCompany(ctx context.Context, userID string) error {
	if m.leaveCompanyFn != nil {
		return m.leaveCompanyFn(ctx, userID)
	}
	return nil
}

func testCompany() *model.Company {
	return &model.Company{ID: "company-1", Name: "Acme", InviteCode: "ABC123", CreatedAt: time.Now().UTC()}
}

func TestCompanyHandler_CreateCompany_Success(t *testing.T) {
	svc := &mockCompanyService{
		createCompanyFn: func(ctx context.Context, creatorID, name string) (*model.Company, error) {
			if creatorID != "user-123" || name != "Acme" {
				t.Errorf("creatorID = %q, name = %q", creatorID, name)
			}
			return testCompany(), nil
		},
	}
	h := NewCompanyHandler(svc)

	req := withUser(newJSONRequest(t, http.MethodPost, "/api/companies", map[string]string{"name": "Acme"}), &model.User{ID: "user-123"})
	w := httptest.NewRecorder()
	h.CreateCompany(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var body companyResponse
	decodeJSON(t, w, &body)
	if body.InviteCode != "ABC123" {
		t.Errorf("invite_code = %q, want ABC123", body.InviteCode)
	}
}

func TestCompanyHandler_CreateCompany_Exhausted(t *testing.T) {
	svc := &mockCompanyService{
		createCompanyFn: func(ctx context.Context, creatorID, name string) (*model.Company, error) {
			return nil, model.NewInviteCodeExhaustedError(10)
		},
	}
	h := NewCompanyHandler(svc)

	req := withUser(newJSONRequest(t, http.MethodPost, "/api/companies", map[string]string{"name": "Acme"}), &model.User{ID: "user-123"})
	w := httptest.NewRecorder()
	h.CreateCompany(w, req)

	assertErrorCode(t, w, http.StatusServiceUnavailable, model.ErrCodeInviteCodeExhausted)
}

func TestCompanyHandler_CreateCompany_Unauthorized(t *testing.T) {
	h := NewCompanyHandler(&mockCompanyService{})

	w := httptest.NewRecorder()
	h.CreateCompany(w, newJSONRequest(t, http.MethodPost, "/api/companies", map[string]string{"name": "Acme"}))

	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

func TestCompanyHandler_LookupByInviteCode(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
	}{
		{name: "found", query: "abc123", wantStatus: http.StatusOK},
		{name: "invalid", query: "abc", err: model.NewInvalidInviteCodeError("abc"), wantStatus: http.StatusBadRequest},
		{name: "not found", query: "ZZZ999", err: model.NewCompanyNotFoundError("ZZZ999"), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCompanyService{
				lookupByInviteCodeFn: func(ctx context.Context, code string) (*model.Company, error) {
					if code != tt.query {
						t.Errorf("code = %q, want %q", code, tt.query)
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return testCompany(), nil
				},
			}
			h := NewCompanyHandler(svc)

			req := withUser(httptest.NewRequest(http.MethodGet, "/api/companies/lookup?code="+tt.query, nil), &model.User{ID: "user-123"})
			w := httptest.NewRecorder()
			h.LookupByInviteCode(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestCompanyHandler_JoinByInviteCode(t *testing.T) {
	var gotCode string
	svc := &mockCompanyService{
		joinByInviteCodeFn: func(ctx context.Context, userID, code string) (*model.Company, error) {
			gotCode = code
			return testCompany(), nil
		},
	}
	h := NewCompanyHandler(svc)

	req := withUser(newJSONRequest(t, http.MethodPost, "/api/companies/join", map[string]string{"invite_code": "abc123"}), &model.User{ID: "user-123"})
	w := httptest.NewRecorder()
	h.JoinByInviteCode(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotCode != "abc123" {
		t.Errorf("code = %q, want abc123", gotCode)
	}
}

func TestCompanyHandler_GetCompany(t *testing.T) {
	svc := &mockCompanyService{
		getCompanyFn: func(ctx context.Context, companyID string) (*model.Company, error) {
			if companyID != "company-1" {
				return nil, model.NewCompanyNotFoundError(companyID)
			}
			return testCompany(), nil
		},
	}
	h := NewCompanyHandler(svc)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/companies/company-1", nil), "id", "company-1")
	w := httptest.NewRecorder()
	h.GetCompany(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/api/companies/other", nil), "id", "other")
	w = httptest.NewRecorder()
	h.GetCompany(w, req)
	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeCompanyNotFound)
}

func TestCompanyHandler_LeaveCompany(t *testing.T) {
	called := false
	svc := &mockCompanyService{
		leaveCompanyFn: func(ctx context.Context, userID string) error {
			called = userID == "user-123"
			return nil
		},
	}
	h := NewCompanyHandler(svc)

	req := withUser(httptest.NewRequest(http.MethodDelete, "/api/me/company", nil), testMember())
	w := httptest.NewRecorder()
	h.LeaveCompany(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if !called {
		t.Error("LeaveCompany was not called with the current user")
	}
}
