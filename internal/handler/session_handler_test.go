package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/teamtrack/internal/model"
	"github.com/hitoshi/teamtrack/internal/session"
	"github.com/hitoshi/teamtrack/internal/stats"
)

// mockSessionService はSessionServiceInterfaceのモック実装。
type mockSessionService struct {
	startFn              func(ctx context.Context, userID, projectName string) (*model.Session, error)
	stopForUserFn        func(ctx context.Context, userID, sessionID string, input session.StopInput) (*model.Session, error)
	getActiveForUserFn   func(ctx context.Context, userID string) ([]*model.Session, error)
	listHistoryFn        func(ctx context.Context, userID string, limit int, cursor string) (*session.HistoryPage, error)
	recentProjectNamesFn func(ctx context.Context, userID string) ([]string, error)
}

func (m *mockSessionService) Start(ctx context.Context, userID, projectName string) (*model.Session, error) {
	if m.startFn != nil {
		return m.startFn(ctx, userID, projectName)
	}
	return nil, nil
}

func (m *mockSessionService) StopForUser(ctx context.Context, userID, sessionID string, input session.StopInput) (*model.Session, error) {
	if m.stopForUserFn != nil {
		return m.stopForUserFn(ctx, userID, sessionID, input)
	}
	return nil, nil
}

func (m *mockSessionService) GetActiveForUser(ctx context.Context, userID string) ([]*model.Session, error) {
	if m.getActiveForUserFn != nil {
		return m.getActiveForUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockSessionService) ListHistory(ctx context.Context, userID string, limit int, cursor string) (*session.HistoryPage, error) {
	if m.listHistoryFn != nil {
		return m.listHistoryFn(ctx, userID, limit, cursor)
	}
	return &session.HistoryPage{}, nil
}

func (m *mockSessionService) RecentProjectNames(ctx context.Context, userID string) ([]string, error) {
	if m.recentProjectNamesFn != nil {
		return m.recentProjectNamesFn(ctx, userID)
	}
	return nil, nil
}

// mockHistoryBuilder はHistoryBuilderのモック実装。
type mockHistoryBuilder struct {
	buildHistoryFn func(ctx context.Context, userID string, limit int) (*stats.History, error)
}

func (m *mockHistoryBuilder) BuildHistory(ctx context.Context, userID string, limit int) (*stats.History, error) {
	if m.buildHistoryFn != nil {
		return m.buildHistoryFn(ctx, userID, limit)
	}
	return &stats.History{}, nil
}

func completedSession(id string, start time.Time, seconds int64, in, out int64) *model.Session {
	end := start.Add(time.Duration(seconds) * time.Second)
	return &model.Session{
		ID:           id,
		UserID:       "user-123",
		ProjectName:  "alpha",
		StartTime:    start,
		EndTime:      &end,
		TokensInput:  &in,
		TokensOutput: &out,
		Status:       model.SessionStatusCompleted,
	}
}

func TestSessionHandler_StartSession(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	svc := &mockSessionService{
		startFn: func(ctx context.Context, userID, projectName string) (*model.Session, error) {
			if userID != "user-123" || projectName != "alpha" {
				t.Errorf("userID = %q, projectName = %q", userID, projectName)
			}
			return &model.Session{
				ID:          "s1",
				UserID:      userID,
				ProjectName: projectName,
				StartTime:   start,
				Status:      model.SessionStatusActive,
			}, nil
		},
	}
	h := NewSessionHandler(svc, &mockHistoryBuilder{})

	req := withUser(newJSONRequest(t, http.MethodPost, "/api/sessions", map[string]string{"project_name": "alpha"}), testMember())
	w := httptest.NewRecorder()
	h.StartSession(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var body map[string]any
	decodeJSON(t, w, &body)
	if body["start_time"] != float64(1_700_000_000_000) {
		t.Errorf("start_time = %v, want epoch millis", body["start_time"])
	}
	if body["end_time"] != nil {
		t.Errorf("end_time = %v, want null", body["end_time"])
	}
	if _, ok := body["duration_seconds"]; ok {
		t.Error("active session should not carry duration_seconds")
	}
}

func TestSessionHandler_StartSession_EmptyProjectName(t *testing.T) {
	svc := &mockSessionService{
		startFn: func(ctx context.Context, userID, projectName string) (*model.Session, error) {
			return nil, model.NewInvalidProjectNameError()
		},
	}
	h := NewSessionHandler(svc, &mockHistoryBuilder{})

	req := withUser(newJSONRequest(t, http.MethodPost, "/api/sessions", map[string]string{"project_name": "  "}), testMember())
	w := httptest.NewRecorder()
	h.StartSession(w, req)

	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidProjectName)
}

func TestSessionHandler_StopSession_Scenario(t *testing.T) {
	start := time.UnixMilli(0)
	var gotInput session.StopInput
	svc := &mockSessionService{
		stopForUserFn: func(ctx context.Context, userID, sessionID string, input session.StopInput) (*model.Session, error) {
			if sessionID != "s1" {
				t.Errorf("sessionID = %q, want s1", sessionID)
			}
			gotInput = input
			return completedSession("s1", start, 3661, 1000, 500), nil
		},
	}
	h := NewSessionHandler(svc, &mockHistoryBuilder{})

	req := newJSONRequest(t, http.MethodPost, "/api/sessions/s1/stop", map[string]int64{"tokens_input": 1000, "tokens_output": 500})
	req = withURLParam(withUser(req, testMember()), "id", "s1")
	w := httptest.NewRecorder()
	h.StopSession(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotInput.TokensInput == nil || *gotInput.TokensInput != 1000 {
		t.Errorf("tokens_input = %v", gotInput.TokensInput)
	}
	var body sessionResponse
	decodeJSON(t, w, &body)
	if body.DurationSeconds == nil || *body.DurationSeconds != 3661 {
		t.Errorf("duration_seconds = %v, want 3661", body.DurationSeconds)
	}
	if body.Duration == nil || *body.Duration != "1h 1m" {
		t.Errorf("duration = %v, want 1h 1m", body.Duration)
	}
	if body.Status != "completed" || body.EndTime == nil || *body.EndTime != 3661000 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestSessionHandler_StopSession_EmptyBody(t *testing.T) {
	var gotInput session.StopInput
	svc := &mockSessionService{
		stopForUserFn: func(ctx context.Context, userID, sessionID string, input session.StopInput) (*model.Session, error) {
			gotInput = input
			return completedSession(sessionID, time.UnixMilli(0), 60, 0, 0), nil
		},
	}
	h := NewSessionHandler(svc, &mockHistoryBuilder{})

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/stop", nil)
	req = withURLParam(withUser(req, testMember()), "id", "s1")
	w := httptest.NewRecorder()
	h.StopSession(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotInput.TokensInput != nil || gotInput.TokensOutput != nil {
		t.Errorf("expected absent tokens, got %+v", gotInput)
	}
}

func TestSessionHandler_StopSession_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "already stopped", err: model.NewSessionAlreadyStoppedError("s1"), wantStatus: http.StatusConflict, wantCode: model.ErrCodeSessionAlreadyStopped},
		{name: "not found", err: model.NewSessionNotFoundError("s1"), wantStatus: http.StatusNotFound, wantCode: model.ErrCodeSessionNotFound},
		{name: "negative tokens", err: model.NewInvalidTokenCountError(-1), wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidTokenCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{
				stopForUserFn: func(ctx context.Context, userID, sessionID string, input session.StopInput) (*model.Session, error) {
					return nil, tt.err
				},
			}
			h := NewSessionHandler(svc, &mockHistoryBuilder{})

			req := newJSONRequest(t, http.MethodPost, "/api/sessions/s1/stop", map[string]int64{"tokens_input": 1})
			req = withURLParam(withUser(req, testMember()), "id", "s1")
			w := httptest.NewRecorder()
			h.StopSession(w, req)

			assertErrorCode(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestSessionHandler_StopSession_MalformedBody(t *testing.T) {
	h := NewSessionHandler(&mockSessionService{}, &mockHistoryBuilder{})

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/stop", strings.NewReader(`{"tokens_input": "many"}`))
	req = withURLParam(withUser(req, testMember()), "id", "s1")
	w := httptest.NewRecorder()
	h.StopSession(w, req)

	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_REQUEST")
}

func TestSessionHandler_ListHistory_Pagination(t *testing.T) {
	var gotLimit int
	var gotCursor string
	svc := &mockSessionService{
		listHistoryFn: func(ctx context.Context, userID string, limit int, cursor string) (*session.HistoryPage, error) {
			gotLimit, gotCursor = limit, cursor
			return &session.HistoryPage{
				Sessions:   []*model.Session{completedSession("s2", time.UnixMilli(0), 60, 1, 1)},
				NextCursor: "next",
				HasMore:    true,
			}, nil
		},
	}
	h := NewSessionHandler(svc, &mockHistoryBuilder{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/sessions/history?limit=1&cursor=abc", nil), testMember())
	w := httptest.NewRecorder()
	h.ListHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotLimit != 1 || gotCursor != "abc" {
		t.Errorf("limit = %d, cursor = %q", gotLimit, gotCursor)
	}
	var body historyPageResponse
	decodeJSON(t, w, &body)
	if !body.HasMore || body.NextCursor != "next" || len(body.Sessions) != 1 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestSessionHandler_ListHistory_DefaultLimit(t *testing.T) {
	var gotLimit int
	svc := &mockSessionService{
		listHistoryFn: func(ctx context.Context, userID string, limit int, cursor string) (*session.HistoryPage, error) {
			gotLimit = limit
			return &session.HistoryPage{}, nil
		},
	}
	h := NewSessionHandler(svc, &mockHistoryBuilder{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/sessions/history", nil), testMember())
	w := httptest.NewRecorder()
	h.ListHistory(w, req)

	if gotLimit != session.DefaultHistoryLimit {
		t.Errorf("limit = %d, want %d", gotLimit, session.DefaultHistoryLimit)
	}
}

func TestSessionHandler_ListHistory_BadLimit(t *testing.T) {
	h := NewSessionHandler(&mockSessionService{}, &mockHistoryBuilder{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/sessions/history?limit=ten", nil), testMember())
	w := httptest.NewRecorder()
	h.ListHistory(w, req)

	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_QUERY")
}

func TestSessionHandler_DailyHistory(t *testing.T) {
	sess := completedSession("s1", time.UnixMilli(0), 120, 1500, 0)
	history := &stats.History{
		Totals: stats.Totals([]*model.Session{sess}),
		Days: []stats.DayGroup{
			{Key: "1970-01-01", Label: "今日", Sessions: []*model.Session{sess}, Rollup: stats.Totals([]*model.Session{sess})},
		},
	}
	builder := &mockHistoryBuilder{
		buildHistoryFn: func(ctx context.Context, userID string, limit int) (*stats.History, error) {
			if limit != stats.DefaultHistoryDisplayLimit {
				t.Errorf("limit = %d, want %d", limit, stats.DefaultHistoryDisplayLimit)
			}
			return history, nil
		},
	}
	h := NewSessionHandler(&mockSessionService{}, builder)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/sessions/history/daily", nil), testMember())
	w := httptest.NewRecorder()
	h.DailyHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body dailyHistoryResponse
	decodeJSON(t, w, &body)
	if body.Totals.TotalDuration != "2m" || body.Totals.TotalTokensDisplay != "1,500" {
		t.Errorf("totals = %+v", body.Totals)
	}
	if len(body.Days) != 1 || body.Days[0].Label != "今日" || len(body.Days[0].Sessions) != 1 {
		t.Errorf("days = %+v", body.Days)
	}
}

func TestSessionHandler_RecentProjects_EmptyIsArray(t *testing.T) {
	h := NewSessionHandler(&mockSessionService{}, &mockHistoryBuilder{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/sessions/recent-projects", nil), testMember())
	w := httptest.NewRecorder()
	h.RecentProjects(w, req)

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestSessionHandler_ListActive(t *testing.T) {
	svc := &mockSessionService{
		getActiveForUserFn: func(ctx context.Context, userID string) ([]*model.Session, error) {
			return []*model.Session{
				{ID: "a1", UserID: userID, ProjectName: "alpha", StartTime: time.UnixMilli(1000), Status: model.SessionStatusActive},
				{ID: "a2", UserID: userID, ProjectName: "alpha", StartTime: time.UnixMilli(2000), Status: model.SessionStatusActive},
			}, nil
		},
	}
	h := NewSessionHandler(svc, &mockHistoryBuilder{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/sessions/active", nil), testMember())
	w := httptest.NewRecorder()
	h.ListActive(w, req)

	var body []sessionResponse
	decodeJSON(t, w, &body)
	if len(body) != 2 || body[0].ID != "a1" || body[1].ID != "a2" {
		t.Errorf("unexpected body: %+v", body)
	}
}
