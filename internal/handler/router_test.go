package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/teamcal/internal/auth"
	"github.com/hitoshi/teamcal/internal/calendar"
	"github.com/hitoshi/teamcal/internal/metrics"
	"github.com/hitoshi/teamcal/internal/middleware"
	"github.com/hitoshi/teamcal/internal/org"
	"github.com/hitoshi/teamcal/internal/repository/memory"
	"github.com/hitoshi/teamcal/internal/security"
	"github.com/hitoshi/teamcal/internal/team"
	"github.com/hitoshi/teamcal/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

const testBaseURL = "https://cal.example.com"

// newTestRouter はインメモリストアと実サービスでルーターを組み立てる。
func newTestRouter(t *testing.T, health HealthChecker) http.Handler {
	t.Helper()

	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	reconciler := calendar.NewReconciler(store, security.NewTextSanitizer(), collector)

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	authService := auth.NewService(store, hasher, collector, auth.ServiceConfig{})
	return NewRouter(&RouterDeps{
		SessionVerifier:   authService,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     health,
		BaseURL:           testBaseURL,

		AuthService:     authService,
		UserService:     user.NewService(store, hasher, nil),
		OrgService:      org.NewService(store, reconciler, nil),
		TeamService:     team.NewService(store, reconciler, collector, team.ServiceConfig{}),
		CalendarService: calendar.NewService(store, reconciler, collector, nil),
	})
}

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func (c apiClient) do(method, path, token string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		reader = jsonBody(c.t, body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func (c apiClient) expect(w *httptest.ResponseRecorder, status int, out any) {
	c.t.Helper()
	if w.Code != status {
		c.t.Fatalf("status = %d, want %d, body %s", w.Code, status, w.Body.String())
	}
	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			c.t.Fatalf("failed to decode response: %v", err)
		}
	}
}

func (c apiClient) signup(username string) string {
	c.t.Helper()
	var resp tokenResponse
	c.expect(c.do(http.MethodPost, "/auth/signup", "", credentialsRequest{Username: username, Password: "password-" + username}), http.StatusCreated, &resp)
	return resp.Token
}

func TestRouter_TeamCalendarFlow(t *testing.T) {
	c := apiClient{t: t, router: newTestRouter(t, nil)}

	alice := c.signup("alice")
	bob := c.signup("bob")

	var me user.Profile
	c.expect(c.do(http.MethodGet, "/auth/me", alice, nil), http.StatusOK, &me)
	if me.Username != "alice" {
		t.Errorf("me = %+v", me)
	}

	// 組織とチームの作成
	var orgResp, teamResp idResponse
	c.expect(c.do(http.MethodPost, "/api/orgs", alice, nameRequest{Name: "Acme"}), http.StatusCreated, &orgResp)
	c.expect(c.do(http.MethodPost, "/api/orgs/"+orgResp.ID+"/members", bob, nil), http.StatusNoContent, nil)
	c.expect(c.do(http.MethodPost, "/api/orgs/"+orgResp.ID+"/teams", alice, nameRequest{Name: "Core"}), http.StatusCreated, &teamResp)
	teamPath := "/api/teams/" + teamResp.ID

	var orgs []orgResponse
	c.expect(c.do(http.MethodGet, "/api/orgs", bob, nil), http.StatusOK, &orgs)
	if len(orgs) != 1 || orgs[0].Name != "Acme" {
		t.Errorf("orgs = %+v", orgs)
	}

	// 招待の発行と償還
	var invite inviteResponse
	c.expect(c.do(http.MethodPost, teamPath+"/invites", alice, nil), http.StatusCreated, &invite)
	if invite.URL != testBaseURL+"/invites/"+invite.InviteID {
		t.Errorf("invite url = %q", invite.URL)
	}

	var redeemed redeemResponse
	c.expect(c.do(http.MethodPost, "/api/invites/"+invite.InviteID+"/redeem", bob, nil), http.StatusOK, &redeemed)
	if redeemed.OrgID != orgResp.ID || redeemed.TeamID != teamResp.ID {
		t.Errorf("redeemed = %+v", redeemed)
	}
	c.expect(c.do(http.MethodPost, "/api/invites/"+invite.InviteID+"/redeem", bob, nil), http.StatusGone, nil)

	var members []teamMemberResponse
	c.expect(c.do(http.MethodGet, teamPath+"/members", bob, nil), http.StatusOK, &members)
	roles := map[string]string{}
	for _, m := range members {
		roles[m.Username] = m.Role
	}
	if roles["alice"] != "owner" || roles["bob"] != "member" {
		t.Errorf("roles = %v", roles)
	}

	// カレンダー更新
	submit := map[string]any{
		"user_events": []map[string]string{{
			"title": "Dentist", "start_time": "2024-05-01T09:00:00Z", "end_time": "2024-05-01T10:00:00Z", "priority": "certain",
		}},
		"team_events": map[string]any{
			teamResp.ID: []map[string]string{{
				"title": "Planning", "memo": "<b>bring notes</b>", "start_time": "2024-05-02T09:00:00Z", "end_time": "2024-05-02T11:00:00Z", "priority": "standard",
			}},
		},
	}
	var submitted submitCalendarRequest
	c.expect(c.do(http.MethodPut, "/api/calendar", alice, submit), http.StatusOK, &submitted)
	if len(submitted.UserEvents) != 1 || submitted.UserEvents[0].ID == "" {
		t.Fatalf("user events = %+v, want minted id", submitted.UserEvents)
	}
	if events := submitted.TeamEvents[teamResp.ID]; len(events) != 1 || events[0].ID == "" {
		t.Fatalf("team events = %+v, want minted id", submitted.TeamEvents)
	}

	var teamEvents []eventResponse
	c.expect(c.do(http.MethodGet, teamPath+"/events", bob, nil), http.StatusOK, &teamEvents)
	if len(teamEvents) != 1 || teamEvents[0].Memo != "bring notes" || teamEvents[0].Priority != "standard" {
		t.Errorf("team events = %+v", teamEvents)
	}

	// 一般メンバーはチームカレンダーを変更できない
	denied := map[string]any{"team_events": map[string]any{teamResp.ID: []any{}}}
	c.expect(c.do(http.MethodPut, "/api/calendar", bob, denied), http.StatusForbidden, nil)

	// iCalendarエクスポート
	w := c.do(http.MethodGet, "/api/users/me/calendar.ics", alice, nil)
	c.expect(w, http.StatusOK, nil)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "SUMMARY:Dentist") {
		t.Errorf("ics body missing event: %s", w.Body.String())
	}

	// チーム削除は所有者のみ
	c.expect(c.do(http.MethodDelete, teamPath, bob, nil), http.StatusForbidden, nil)
	c.expect(c.do(http.MethodDelete, teamPath, alice, nil), http.StatusNoContent, nil)
	c.expect(c.do(http.MethodGet, teamPath+"/events", alice, nil), http.StatusNotFound, nil)
}

func TestRouter_Authentication(t *testing.T) {
	c := apiClient{t: t, router: newTestRouter(t, nil)}
	token := c.signup("carol")

	c.expect(c.do(http.MethodGet, "/api/orgs", "", nil), http.StatusUnauthorized, nil)
	c.expect(c.do(http.MethodGet, "/api/orgs", "unknown-token", nil), http.StatusForbidden, nil)

	var login tokenResponse
	c.expect(c.do(http.MethodPost, "/auth/login", "", credentialsRequest{Username: "carol", Password: "password-carol"}), http.StatusOK, &login)
	if login.Token != token {
		t.Errorf("login token = %q, want the renewed session %q", login.Token, token)
	}
	c.expect(c.do(http.MethodPost, "/auth/login", "", credentialsRequest{Username: "carol", Password: "nope-nope"}), http.StatusUnauthorized, nil)

	c.expect(c.do(http.MethodPost, "/auth/logout", token, nil), http.StatusNoContent, nil)
	c.expect(c.do(http.MethodGet, "/auth/me", token, nil), http.StatusForbidden, nil)
	c.expect(c.do(http.MethodPost, "/auth/logout", token, nil), http.StatusNoContent, nil)
}

func TestRouter_PrioritiesAndValidation(t *testing.T) {
	c := apiClient{t: t, router: newTestRouter(t, nil)}
	token := c.signup("dave")

	var priorities []priorityResponse
	c.expect(c.do(http.MethodGet, "/api/priorities", token, nil), http.StatusOK, &priorities)
	if len(priorities) != 4 {
		t.Errorf("priorities = %+v, want 4 entries", priorities)
	}

	c.expect(c.do(http.MethodPost, "/api/orgs", token, nameRequest{Name: "   "}), http.StatusBadRequest, nil)
	c.expect(c.do(http.MethodGet, "/api/orgs/missing", token, nil), http.StatusNotFound, nil)

	reversed := map[string]any{"user_events": []map[string]string{{
		"title": "Backwards", "start_time": "2024-05-01T10:00:00Z", "end_time": "2024-05-01T09:00:00Z", "priority": "standard",
	}}}
	c.expect(c.do(http.MethodPut, "/api/calendar", token, reversed), http.StatusBadRequest, nil)
}

type fakeHealth struct{ err error }

func (f fakeHealth) PingContext(context.Context) error { return f.err }

func TestRouter_HealthAndMetrics(t *testing.T) {
	c := apiClient{t: t, router: newTestRouter(t, fakeHealth{})}

	c.expect(c.do(http.MethodGet, "/health", "", nil), http.StatusOK, nil)
	c.do(http.MethodGet, "/api/orgs", "", nil)

	w := c.do(http.MethodGet, "/metrics", "", nil)
	c.expect(w, http.StatusOK, nil)
	if !strings.Contains(w.Body.String(), `teamcal_http_status_total{status_code="401"} 1`) {
		t.Errorf("metrics missing 401 count:\n%s", w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should apply to every route")
	}

	down := apiClient{t: t, router: newTestRouter(t, fakeHealth{err: errors.New("down")})}
	down.expect(down.do(http.MethodGet, "/health", "", nil), http.StatusServiceUnavailable, nil)
}
