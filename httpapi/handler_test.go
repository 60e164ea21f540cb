package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-approvals/core"
)

type stubService struct {
	handoffs  []core.HandoffRequest
	details   []core.DetailsRequest
	actions   []core.ActionRequest
	pending   []core.PendingFilter
	activity  []core.ActivityFilter
	logouts   int
	removed   int
	actionErr error
	panicOn   string
}

func (s *stubService) StoreHandoff(_ context.Context, req core.HandoffRequest) error {
	s.handoffs = append(s.handoffs, req)
	return nil
}

func (s *stubService) FetchDetails(_ context.Context, req core.DetailsRequest) (core.Details, error) {
	if s.panicOn == "details" {
		panic("boom")
	}
	s.details = append(s.details, req)
	return core.Details{Data: map[string]any{"ejLogId": req.RecordID}}, nil
}

func (s *stubService) ExecuteAction(_ context.Context, req core.ActionRequest) (core.ActionResult, error) {
	s.actions = append(s.actions, req)
	if s.actionErr != nil {
		return core.ActionResult{}, s.actionErr
	}
	return core.ActionResult{Backend: core.BackendPrimary, Kind: req.Kind, Data: map[string]any{"status": "approved"}}, nil
}

func (s *stubService) ListPending(_ context.Context, filter core.PendingFilter) ([]core.PendingApproval, error) {
	s.pending = append(s.pending, filter)
	return []core.PendingApproval{{SourceSystem: "FCUBS", TxnID: "T1"}}, nil
}

func (s *stubService) ListActivity(_ context.Context, filter core.ActivityFilter) (core.ActivityPage, error) {
	s.activity = append(s.activity, filter)
	return core.ActivityPage{
		Items: []core.ActivityEntry{{
			ID:        "act_1",
			Backend:   core.BackendGateway,
			Action:    "APPROVE",
			Actor:     "SUP1",
			Status:    core.ActivityStatusOK,
			CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		}},
		Page:    1,
		PerPage: 50,
		Total:   1,
	}, nil
}

func (s *stubService) Logout(context.Context) error {
	s.logouts++
	return nil
}

func (s *stubService) InvalidateSessions(context.Context) (int, error) {
	return s.removed, nil
}

func (s *stubService) Tokens() []core.TokenInfo {
	return []core.TokenInfo{{SubjectID: "app-view", Class: core.CredentialClassHandoff, ExpiresInMinutes: 30}}
}

func newTestRouter(t *testing.T, service *stubService) http.Handler {
	t.Helper()
	handler, err := NewHandler(service, WithClock(func() time.Time {
		return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return NewRouter(handler)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestNewHandler_RequiresService(t *testing.T) {
	if _, err := NewHandler(nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestLogin_JSONSetsCookieAndHandsOffToken(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(t, service)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"SUP1","token":"jwt-1","appIds":["app-view"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true || body["user"] != "SUP1" {
		t.Fatalf("unexpected login body %#v", body)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != UserCookieName || cookies[0].Value != "SUP1" || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies %#v", cookies)
	}
	if cookies[0].MaxAge != userCookieMaxAge {
		t.Fatalf("expected seven day cookie, got %d", cookies[0].MaxAge)
	}
	if len(service.handoffs) != 1 || service.handoffs[0].Token != "jwt-1" || service.handoffs[0].AppIDs[0] != "app-view" {
		t.Fatalf("unexpected handoffs %#v", service.handoffs)
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestLogin_FormRedirectsBrowsers(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(t, service)

	form := url.Values{"UserId": {"SUP2"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Host = "approvals.local"
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("X-Forwarded-Proto", "http")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if location := rec.Header().Get("Location"); location != "http://approvals.local/test" {
		t.Fatalf("unexpected redirect %q", location)
	}
	if len(service.handoffs) != 0 {
		t.Fatalf("expected no handoff without token")
	}
}

func TestLogin_RequiresUserAndRejectsGet(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Method not allowed. Use POST to login." {
		t.Fatalf("unexpected 405 body %#v", body)
	}
}

func TestListPending_PassesFilters(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/approvals?system=FCUBS&branch=000&status=(Pending)", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []core.PendingApproval
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if len(items) != 1 || items[0].TxnID != "T1" {
		t.Fatalf("unexpected pending items %#v", items)
	}
	filter := service.pending[0]
	if filter.System != "FCUBS" || filter.Branch != "000" || filter.Status != "(Pending)" {
		t.Fatalf("unexpected filter %#v", filter)
	}
}

func TestFetchDetails_UsesCookieUserFallback(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(t, service)

	req := httptest.NewRequest(http.MethodPost, "/api/approvals/details", strings.NewReader(`{"system":"OBBRN","ejLogId":12345}`))
	req.AddCookie(&http.Cookie{Name: UserCookieName, Value: "SUP1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	data, _ := body["data"].(map[string]any)
	if body["success"] != true || data["ejLogId"] != "12345" {
		t.Fatalf("unexpected details body %#v", body)
	}
	got := service.details[0]
	if got.System != "OBBRN" || got.RecordID != "12345" || got.UserID != "SUP1" {
		t.Fatalf("unexpected details request %#v", got)
	}
}

func TestFetchDetails_RejectsMissingIdentifiers(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/approvals/details", strings.NewReader(`{"system":"FCUBS"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["success"] != false || body["text_code"] == "" {
		t.Fatalf("unexpected error body %#v", body)
	}
	if len(service.details) != 0 {
		t.Fatalf("expected service not to be called")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/approvals/details", strings.NewReader(`[1,2]`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-object body, got %d", rec.Code)
	}
}

func TestExecuteAction_DefaultsToApprove(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/approvals/approve", strings.NewReader(`{"system":"FCUBS","brn":"000","acc":"123","userId":"SUP1"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	data, _ := body["data"].(map[string]any)
	if data["status"] != "approved" {
		t.Fatalf("unexpected action body %#v", body)
	}
	action := service.actions[0]
	if action.Kind != core.ActionApprove || action.Payload.Branch != "000" || action.Payload.Account != "123" {
		t.Fatalf("unexpected action request %#v", action)
	}
}

func TestExecuteAction_MapsServiceErrors(t *testing.T) {
	service := &stubService{actionErr: core.NewAuthenticationError("app-approve", "no credential")}
	router := newTestRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/approvals/approve", strings.NewReader(`{"system":"OBBRN","ejLogId":"EJ1","actionType":"approve"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
	if service.actions[0].Kind != core.ActionApprove {
		t.Fatalf("expected action type to be upper cased, got %q", service.actions[0].Kind)
	}

	service.actionErr = errors.New("socket closed")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/approvals/approve", strings.NewReader(`{"ejLogId":"EJ1"}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unmapped error, got %d", rec.Code)
	}
}

func TestListActivity_ParsesFilter(t *testing.T) {
	service := &stubService{}
	router := newTestRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/activity?backend=gateway&status=ok&from=2026-03-01T00:00:00Z&page=2&per_page=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	filter := service.activity[0]
	if filter.Backend != "gateway" || filter.Status != core.ActivityStatusOK || filter.Page != 2 || filter.PerPage != 10 || filter.From == nil {
		t.Fatalf("unexpected activity filter %#v", filter)
	}
	body := decodeBody(t, rec)
	data, _ := body["data"].(map[string]any)
	items, _ := data["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("unexpected activity body %#v", body)
	}
	item, _ := items[0].(map[string]any)
	if item["created_at"] != "2026-03-02T09:00:00Z" {
		t.Fatalf("unexpected created_at %#v", item["created_at"])
	}

	for _, target := range []string{"/api/activity?from=yesterday", "/api/activity?page=x", "/api/activity?page=-1"} {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", target, rec.Code)
		}
	}
}

func TestSessionRoutes(t *testing.T) {
	service := &stubService{removed: 3}
	router := newTestRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if rec.Code != http.StatusOK || service.logouts != 1 {
		t.Fatalf("expected logout to succeed, got %d logouts=%d", rec.Code, service.logouts)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %#v", cookies)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/sessions/invalidate", nil))
	data, _ := decodeBody(t, rec)["data"].(map[string]any)
	if data["removed"] != float64(3) {
		t.Fatalf("unexpected invalidate body %#v", data)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/tokens", nil))
	tokens, _ := decodeBody(t, rec)["data"].([]any)
	if len(tokens) != 1 {
		t.Fatalf("unexpected tokens body %s", rec.Body.String())
	}
}

func TestRouter_HealthNotFoundAndRecovery(t *testing.T) {
	router := newTestRouter(t, &stubService{panicOn: "details"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if body := decodeBody(t, rec); body["status"] != "ok" || body["time"] != "2026-03-02T12:00:00Z" {
		t.Fatalf("unexpected health body %#v", body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/approvals/details", strings.NewReader(`{"ejLogId":"EJ1"}`))
	req.Header.Set(HeaderRequestID, "req-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected recovered 500, got %d", rec.Code)
	}
	if rec.Header().Get(HeaderRequestID) != "req-1" {
		t.Fatalf("expected inbound request id to be echoed")
	}
}
