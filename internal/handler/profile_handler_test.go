package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/teamtrack/internal/model"
	"github.com/hitoshi/teamtrack/internal/user"
)

// mockProfileService はProfileServiceInterfaceのモック実装。
type mockProfileService struct {
	submitProfileFn   func(ctx context.Context, externalID string, input user.ProfileInput) (*model.User, error)
	getByExternalIDFn func(ctx context.Context, externalID string) (*model.User, error)
}

func (m *mockProfileService) SubmitProfile(ctx context.Context, externalID string, input user.ProfileInput) (*model.User, error) {
	if m.submitProfileFn != nil {
		return m.submitProfileFn(ctx, externalID, input)
	}
	return nil, nil
}

func (m *mockProfileService) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	if m.getByExternalIDFn != nil {
		return m.getByExternalIDFn(ctx, externalID)
	}
	return nil, nil
}

func TestProfileHandler_GetProfile_Success(t *testing.T) {
	svc := &mockProfileService{
		getByExternalIDFn: func(ctx context.Context, externalID string) (*model.User, error) {
			if externalID != "idp|1" {
				t.Errorf("externalID = %q, want idp|1", externalID)
			}
			return &model.User{ID: "user-1", Name: "Alice", Role: "engineer", AvatarRef: model.DefaultAvatarRef}, nil
		},
	}
	h := NewProfileHandler(svc)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/profile", nil), "idp|1", "Alice")
	w := httptest.NewRecorder()
	h.GetProfile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body userResponse
	decodeJSON(t, w, &body)
	if body.ID != "user-1" || body.AvatarRef != model.DefaultAvatarRef || body.CompanyID != nil {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestProfileHandler_GetProfile_NotRegistered(t *testing.T) {
	svc := &mockProfileService{
		getByExternalIDFn: func(ctx context.Context, externalID string) (*model.User, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	h := NewProfileHandler(svc)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/profile", nil), "idp|1", "Alice")
	w := httptest.NewRecorder()
	h.GetProfile(w, req)

	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeUserNotFound)
}

func TestProfileHandler_GetProfile_NoIdentity(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	w := httptest.NewRecorder()
	h.GetProfile(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	assertErrorCode(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

func TestProfileHandler_SubmitProfile_FallsBackToIdentityName(t *testing.T) {
	var got user.ProfileInput
	svc := &mockProfileService{
		submitProfileFn: func(ctx context.Context, externalID string, input user.ProfileInput) (*model.User, error) {
			got = input
			return &model.User{ID: "user-1", Name: input.Name, Role: input.Role}, nil
		},
	}
	h := NewProfileHandler(svc)

	req := newJSONRequest(t, http.MethodPut, "/api/profile", map[string]string{"role": "designer"})
	req = withIdentity(req, "idp|1", "Alice from IdP")
	w := httptest.NewRecorder()
	h.SubmitProfile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.Name != "Alice from IdP" || got.Role != "designer" {
		t.Errorf("input = %+v", got)
	}
}

func TestProfileHandler_SubmitProfile_ValidationError(t *testing.T) {
	svc := &mockProfileService{
		submitProfileFn: func(ctx context.Context, externalID string, input user.ProfileInput) (*model.User, error) {
			return nil, model.NewInvalidProfileError("名前は必須です。")
		},
	}
	h := NewProfileHandler(svc)

	req := withIdentity(newJSONRequest(t, http.MethodPut, "/api/profile", map[string]string{}), "idp|1", "")
	w := httptest.NewRecorder()
	h.SubmitProfile(w, req)

	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidProfile)
}

func TestProfileHandler_SubmitProfile_InvalidJSON(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{})

	req := httptest.NewRequest(http.MethodPut, "/api/profile", strings.NewReader("{"))
	req = withIdentity(req, "idp|1", "Alice")
	w := httptest.NewRecorder()
	h.SubmitProfile(w, req)

	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_REQUEST")
}

func TestProfileHandler_SubmitProfile_InternalError(t *testing.T) {
	svc := &mockProfileService{
		submitProfileFn: func(ctx context.Context, externalID string, input user.ProfileInput) (*model.User, error) {
			return nil, errors.New("db down")
		},
	}
	h := NewProfileHandler(svc)

	req := withIdentity(newJSONRequest(t, http.MethodPut, "/api/profile", map[string]string{"name": "A"}), "idp|1", "")
	w := httptest.NewRecorder()
	h.SubmitProfile(w, req)

	assertErrorCode(t, w, http.StatusInternalServerError, "INTERNAL_ERROR")
}
