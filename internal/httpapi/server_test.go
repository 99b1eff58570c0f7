package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/teamlens/teamlens/internal/library"
	"github.com/teamlens/teamlens/internal/scheduler"
	"github.com/teamlens/teamlens/internal/session"
	"github.com/teamlens/teamlens/internal/store"
	"github.com/teamlens/teamlens/internal/synthesis"
)

type testEnv struct {
	store   *store.Store
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	contentDir := t.TempDir()
	for _, name := range []string{"river.jpg", "bridge.jpg", "maze.jpg"} {
		if err := os.WriteFile(filepath.Join(contentDir, name), []byte("img"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	lib := library.New(library.Config{Dir: contentDir, URLPrefix: "/content"})

	svc := session.NewService(st, scheduler.Synchronous{}, synthesis.New(st, nil))
	srv := New(st, svc, lib, contentDir, 20, NewDemoHandler(nil))

	return &testEnv{store: st, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestTeamAndJoinFlow(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/api/teams", map[string]string{
		"company_name": "Acme", "team_name": "Platform", "strategy_statement": "Ship it",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create team: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	team := decodeBody[map[string]any](t, rec)
	teamID := int64(team["id"].(float64))
	code := team["code"].(string)

	rec = e.do(t, "POST", fmt.Sprintf("/api/teams/%d/members", teamID), map[string]string{"name": "Alice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add member: expected 201, got %d", rec.Code)
	}

	rec = e.do(t, "POST", fmt.Sprintf("/api/teams/%d/sessions", teamID), map[string]string{"month": "2026-09"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	sess := decodeBody[map[string]any](t, rec)
	sessionID := int64(sess["id"].(float64))

	// Join finds nothing while the session is still draft.
	rec = e.do(t, "POST", "/api/join", map[string]string{"code": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", rec.Code)
	}
	joined := decodeBody[struct {
		Sessions []map[string]any `json:"sessions"`
	}](t, rec)
	if len(joined.Sessions) != 0 {
		t.Errorf("expected no capturing sessions before start, got %d", len(joined.Sessions))
	}

	rec = e.do(t, "POST", fmt.Sprintf("/api/sessions/%d/start", sessionID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, "POST", "/api/join", map[string]string{"code": code})
	joined = decodeBody[struct {
		Sessions []map[string]any `json:"sessions"`
	}](t, rec)
	if len(joined.Sessions) != 1 {
		t.Errorf("expected 1 capturing session after start, got %d", len(joined.Sessions))
	}

	// Unknown code is a 404.
	rec = e.do(t, "POST", "/api/join", map[string]string{"code": "ZZZZZZ"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown code, got %d", rec.Code)
	}
}

func TestSubmitResponseGuardsState(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	team, _ := e.store.CreateTeam(ctx, "Acme", "Platform", "", "")
	member, _ := e.store.AddMember(ctx, team.ID, "Alice")
	sess, _ := e.store.CreateSession(ctx, team.ID, "2026-09")

	body := map[string]any{"member_id": member.ID, "image_id": "abc123", "bullets": []string{"A note"}}

	// Draft session: responses are rejected.
	rec := e.do(t, "POST", fmt.Sprintf("/api/sessions/%d/responses", sess.ID), body)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while draft, got %d", rec.Code)
	}

	e.do(t, "POST", fmt.Sprintf("/api/sessions/%d/start", sess.ID), nil)
	rec = e.do(t, "POST", fmt.Sprintf("/api/sessions/%d/responses", sess.ID), body)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 while capturing, got %d: %s", rec.Code, rec.Body.String())
	}

	// Validation failures are 400s.
	bad := map[string]any{"member_id": member.ID, "image_id": "", "bullets": []string{"A note"}}
	rec = e.do(t, "POST", fmt.Sprintf("/api/sessions/%d/responses", sess.ID), bad)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing image id, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	team, _ := e.store.CreateTeam(ctx, "Acme", "Platform", "", "")
	e.store.AddMember(ctx, team.ID, "Alice")
	sess, _ := e.store.CreateSession(ctx, team.ID, "2026-09")

	rec := e.do(t, "GET", fmt.Sprintf("/api/sessions/%d/status", sess.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	status := decodeBody[map[string]any](t, rec)
	if status["state"] != "draft" {
		t.Errorf("expected draft state, got %v", status["state"])
	}
	if int(status["total_members"].(float64)) != 1 {
		t.Errorf("expected 1 member, got %v", status["total_members"])
	}

	rec = e.do(t, "GET", "/api/sessions/9999/status", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", rec.Code)
	}
}

func TestInvalidTransitionIs400(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	team, _ := e.store.CreateTeam(ctx, "Acme", "Platform", "", "")
	sess, _ := e.store.CreateSession(ctx, team.ID, "2026-09")

	rec := e.do(t, "POST", fmt.Sprintf("/api/sessions/%d/reveal", sess.ID), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for reveal from draft, got %d", rec.Code)
	}
}

func TestImagesEndpoint(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "GET", "/api/images?seed=42&page=1&per_page=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	page := decodeBody[library.Page](t, rec)
	if page.Total != 3 || len(page.Items) != 2 || page.TotalPages != 2 {
		t.Errorf("unexpected page: %+v", page)
	}

	// Same seed, same order.
	again := decodeBody[library.Page](t, e.do(t, "GET", "/api/images?seed=42&page=1&per_page=2", nil))
	if page.Items[0].ID != again.Items[0].ID {
		t.Errorf("same seed must give the same first item")
	}

	rec = e.do(t, "GET", "/api/images?seed=nope", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad seed, got %d", rec.Code)
	}

	count := decodeBody[map[string]int](t, e.do(t, "GET", "/api/images/count", nil))
	if count["count"] != 3 {
		t.Errorf("expected count 3, got %d", count["count"])
	}
}

func TestContentServedByOpaqueID(t *testing.T) {
	e := newTestEnv(t)

	page := decodeBody[library.Page](t, e.do(t, "GET", "/api/images?seed=1", nil))
	if len(page.Items) == 0 {
		t.Fatalf("expected discovered content")
	}

	rec := e.do(t, "GET", page.Items[0].URL, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 serving %s, got %d", page.Items[0].URL, rec.Code)
	}

	rec = e.do(t, "GET", "/content/doesnotexist", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown content id, got %d", rec.Code)
	}
}

func TestDemoEndpoints(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "GET", "/api/demo?seed=7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	demoResp := decodeBody[struct {
		Seed int64            `json:"seed"`
		Team []map[string]any `json:"team"`
	}](t, rec)
	if demoResp.Seed != 7 || len(demoResp.Team) != 4 {
		t.Errorf("unexpected demo payload: seed=%d team=%d", demoResp.Seed, len(demoResp.Team))
	}

	// No synthesis client configured.
	rec = e.do(t, "POST", "/api/demo/synthesis", map[string]any{"name": "Visitor", "bullets": []string{"note"}})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a client, got %d", rec.Code)
	}
}

func TestTeamUpdateAndDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	team, _ := e.store.CreateTeam(ctx, "Acme", "Platform", "", "Old strategy")

	rec := e.do(t, "PUT", fmt.Sprintf("/api/teams/%d", team.ID), map[string]string{
		"strategy_statement": "New strategy",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update team: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[map[string]any](t, rec)
	if updated["strategy_statement"] != "New strategy" {
		t.Errorf("expected updated strategy, got %v", updated["strategy_statement"])
	}
	if updated["team_name"] != "Platform" {
		t.Errorf("omitted fields must be preserved, got %v", updated["team_name"])
	}

	rec = e.do(t, "DELETE", fmt.Sprintf("/api/teams/%d", team.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete team: expected 200, got %d", rec.Code)
	}
	if got, _ := e.store.GetTeam(ctx, team.ID); got != nil {
		t.Errorf("expected team to be gone")
	}

	rec = e.do(t, "PUT", "/api/teams/9999", map[string]string{"team_name": "X"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 updating unknown team, got %d", rec.Code)
	}
}

func TestRecalibrationEndpoint(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	team, _ := e.store.CreateTeam(ctx, "Acme", "Platform", "", "")
	sess, _ := e.store.CreateSession(ctx, team.ID, "2026-09")

	body := map[string]string{"action": "Publish a single roadmap"}

	// Draft session: no synthesis exists to act on.
	rec := e.do(t, "PUT", fmt.Sprintf("/api/sessions/%d/recalibration", sess.ID), body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 while draft, got %d", rec.Code)
	}

	e.do(t, "POST", fmt.Sprintf("/api/sessions/%d/start", sess.ID), nil)
	e.do(t, "POST", fmt.Sprintf("/api/sessions/%d/close", sess.ID), nil)

	rec = e.do(t, "PUT", fmt.Sprintf("/api/sessions/%d/recalibration", sess.ID), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 once closed, got %d: %s", rec.Code, rec.Body.String())
	}

	got := decodeBody[map[string]any](t, e.do(t, "GET", fmt.Sprintf("/api/sessions/%d", sess.ID), nil))
	if got["recalibration_action"] != "Publish a single roadmap" {
		t.Errorf("expected action in session payload, got %v", got["recalibration_action"])
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/api/events", map[string]string{"event_type": "page_view"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown event type, got %d", rec.Code)
	}

	for _, typ := range []string{"demo_click", "demo_click", "demo_completion", "email_click"} {
		rec = e.do(t, "POST", "/api/events", map[string]string{"event_type": typ})
		if rec.Code != http.StatusCreated {
			t.Fatalf("record %s: expected 201, got %d", typ, rec.Code)
		}
	}

	funnel := decodeBody[struct {
		PeriodDays int                `json:"period_days"`
		Funnel     map[string]int     `json:"funnel"`
		Rates      map[string]float64 `json:"rates"`
	}](t, e.do(t, "GET", "/api/analytics/funnel?days=7", nil))
	if funnel.PeriodDays != 7 {
		t.Errorf("expected period 7, got %d", funnel.PeriodDays)
	}
	if funnel.Funnel["demo_click"] != 2 || funnel.Funnel["demo_completion"] != 1 || funnel.Funnel["email_click"] != 1 {
		t.Errorf("unexpected funnel counts: %v", funnel.Funnel)
	}
	if funnel.Rates["demo_to_completion_pct"] != 50.0 || funnel.Rates["overall_conversion_pct"] != 50.0 {
		t.Errorf("unexpected rates: %v", funnel.Rates)
	}

	recent := decodeBody[struct {
		Count  int              `json:"count"`
		Events []map[string]any `json:"events"`
	}](t, e.do(t, "GET", "/api/analytics/events/recent?limit=2", nil))
	if recent.Count != 2 {
		t.Fatalf("expected 2 recent events, got %d", recent.Count)
	}
	if recent.Events[0]["event_type"] != "email_click" {
		t.Errorf("expected newest first, got %v", recent.Events[0]["event_type"])
	}
}
