// Package httpapi exposes the session lifecycle, content browsing and
// participant flow as a small JSON API. Rendering, auth cookies, QR codes
// and exports live elsewhere; this layer only translates HTTP to service
// calls.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/teamlens/teamlens/internal/library"
	"github.com/teamlens/teamlens/internal/session"
	"github.com/teamlens/teamlens/internal/store"
)

// Server holds the handlers' dependencies.
type Server struct {
	store      *store.Store
	sessions   *session.Service
	library    *library.Library
	contentDir string
	perPage    int
	demo       *DemoHandler
}

// New creates the API server. demo may be nil to disable the demo routes.
func New(st *store.Store, sessions *session.Service, lib *library.Library, contentDir string, perPage int, demo *DemoHandler) *Server {
	return &Server{
		store:      st,
		sessions:   sessions,
		library:    lib,
		contentDir: contentDir,
		perPage:    perPage,
		demo:       demo,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/images", s.listImages)
	mux.HandleFunc("GET /api/images/count", s.imageCount)
	mux.HandleFunc("GET /content/{id}", s.serveContent)

	mux.HandleFunc("POST /api/teams", s.createTeam)
	mux.HandleFunc("GET /api/teams", s.listTeams)
	mux.HandleFunc("PUT /api/teams/{id}", s.updateTeam)
	mux.HandleFunc("DELETE /api/teams/{id}", s.deleteTeam)
	mux.HandleFunc("POST /api/teams/{id}/members", s.addMember)
	mux.HandleFunc("DELETE /api/teams/{id}/members/{memberID}", s.removeMember)
	mux.HandleFunc("GET /api/teams/{id}/sessions", s.listSessions)
	mux.HandleFunc("POST /api/teams/{id}/sessions", s.createSession)

	mux.HandleFunc("POST /api/join", s.join)

	mux.HandleFunc("POST /api/sessions/{id}/start", s.transition(s.sessions.StartCapturing))
	mux.HandleFunc("POST /api/sessions/{id}/close", s.transition(s.sessions.CloseCapturing))
	mux.HandleFunc("POST /api/sessions/{id}/reveal", s.transition(s.sessions.RevealSynthesis))
	mux.HandleFunc("POST /api/sessions/{id}/reopen", s.transition(s.sessions.ReopenCapturing))
	mux.HandleFunc("POST /api/sessions/{id}/retry", s.transition(s.sessions.RetrySynthesis))
	mux.HandleFunc("GET /api/sessions/{id}/status", s.status)
	mux.HandleFunc("GET /api/sessions/{id}", s.getSession)
	mux.HandleFunc("PUT /api/sessions/{id}/notes", s.updateNotes)
	mux.HandleFunc("PUT /api/sessions/{id}/recalibration", s.updateRecalibration)
	mux.HandleFunc("POST /api/sessions/{id}/responses", s.submitResponse)

	mux.HandleFunc("POST /api/events", s.recordEvent)
	mux.HandleFunc("GET /api/analytics/funnel", s.funnel)
	mux.HandleFunc("GET /api/analytics/events/recent", s.recentEvents)

	if s.demo != nil {
		s.demo.Register(mux)
	}

	return mux
}

func (s *Server) listImages(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", s.perPage)
	if perPage > 100 {
		perPage = 100
	}

	seedParam := r.URL.Query().Get("seed")
	if seedParam == "" {
		// No seed: discovery order.
		items := s.library.Items()
		writeJSON(w, http.StatusOK, paginateItems(items, page, perPage))
		return
	}

	seed, err := strconv.ParseInt(seedParam, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid seed")
		return
	}
	writeJSON(w, http.StatusOK, s.library.Paginate(seed, page, perPage))
}

func paginateItems(items []library.Item, page, perPage int) library.Page {
	total := len(items)
	totalPages := (total + perPage - 1) / perPage
	if totalPages > 0 {
		if page < 1 {
			page = 1
		} else if page > totalPages {
			page = totalPages
		}
	} else {
		page = 1
	}
	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return library.Page{Items: items[start:end], Total: total, Page: page, PerPage: perPage, TotalPages: totalPages}
}

func (s *Server) imageCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": s.library.Count()})
}

func (s *Server) serveContent(w http.ResponseWriter, r *http.Request) {
	name, ok := s.library.Resolve(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	http.ServeFile(w, r, filepath.Join(s.contentDir, name))
}

func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyName       string `json:"company_name"`
		TeamName          string `json:"team_name"`
		Code              string `json:"code"`
		StrategyStatement string `json:"strategy_statement"`
	}
	if !decode(w, r, &req) {
		return
	}
	team, err := s.store.CreateTeam(r.Context(), req.CompanyName, req.TeamName, req.Code, req.StrategyStatement)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, teamJSON(team))
}

func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.ListTeams(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(teams))
	for i := range teams {
		out = append(out, teamJSON(&teams[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) updateTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathID(w, r)
	if !ok {
		return
	}
	team, err := s.store.GetTeam(r.Context(), teamID)
	if err != nil {
		internalError(w, err)
		return
	}
	if team == nil {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}

	var req struct {
		CompanyName       *string `json:"company_name"`
		TeamName          *string `json:"team_name"`
		StrategyStatement *string `json:"strategy_statement"`
		ImagePrompt       *string `json:"image_prompt"`
		BulletPrompt      *string `json:"bullet_prompt"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.CompanyName != nil {
		team.CompanyName = *req.CompanyName
	}
	if req.TeamName != nil {
		team.TeamName = *req.TeamName
	}
	if req.StrategyStatement != nil {
		team.StrategyStatement = *req.StrategyStatement
	}
	if req.ImagePrompt != nil {
		team.ImagePrompt = *req.ImagePrompt
	}
	if req.BulletPrompt != nil {
		team.BulletPrompt = *req.BulletPrompt
	}

	if err := s.store.UpdateTeam(r.Context(), team); err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teamJSON(team))
}

func (s *Server) deleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteTeam(r.Context(), teamID); err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathID(w, r)
	if !ok {
		return
	}
	memberID, err := strconv.ParseInt(r.PathValue("memberID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}
	if err := s.store.RemoveMember(r.Context(), teamID, memberID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	member, err := s.store.AddMember(r.Context(), teamID, req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id": member.ID, "team_id": member.TeamID, "name": member.Name,
	})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathID(w, r)
	if !ok {
		return
	}
	sessions, err := s.store.ListTeamSessions(r.Context(), teamID)
	if err != nil {
		internalError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(sessions))
	for i := range sessions {
		out = append(out, sessionJSON(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Month string `json:"month"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Month == "" {
		req.Month = store.CurrentMonth()
	}
	sess, err := s.store.CreateSession(r.Context(), teamID, req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionJSON(sess))
}

func (s *Server) join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}
	team, err := s.store.GetTeamByCode(r.Context(), req.Code)
	if err != nil {
		internalError(w, err)
		return
	}
	if team == nil {
		writeError(w, http.StatusNotFound, "team code not found")
		return
	}
	active, err := s.store.ListCapturingSessions(r.Context(), team.ID)
	if err != nil {
		internalError(w, err)
		return
	}
	sessions := make([]map[string]any, 0, len(active))
	for i := range active {
		sessions = append(sessions, sessionJSON(&active[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"team":     teamJSON(team),
		"sessions": sessions,
	})
}

func (s *Server) transition(fn func(ctx context.Context, id int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := fn(r.Context(), id); err != nil {
			writeTransitionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	summary, err := s.sessions.Status(r.Context(), id)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		internalError(w, err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionJSON(sess))
}

func (s *Server) updateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.sessions.UpdateFacilitatorNotes(r.Context(), id, req.Notes); err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) updateRecalibration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.sessions.UpdateRecalibrationAction(r.Context(), id, req.Action); err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) recordEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"event_type"`
		Data string `json:"event_data"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.store.RecordEvent(r.Context(), req.Type, req.Data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// funnel reports demo_click -> demo_completion -> email_click counts and the
// conversion rates between the stages for the last N days.
func (s *Server) funnel(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	if days > 365 {
		days = 365
	}
	since := time.Now().AddDate(0, 0, -days)

	counts, err := s.store.EventCounts(r.Context(), since)
	if err != nil {
		internalError(w, err)
		return
	}

	clicks := counts[store.EventDemoClick]
	completions := counts[store.EventDemoCompletion]
	inquiries := counts[store.EventEmailClick]

	writeJSON(w, http.StatusOK, map[string]any{
		"period_days": days,
		"funnel": map[string]int{
			store.EventDemoClick:      clicks,
			store.EventDemoCompletion: completions,
			store.EventEmailClick:     inquiries,
		},
		"rates": map[string]float64{
			"demo_to_completion_pct":    rate(completions, clicks),
			"completion_to_inquiry_pct": rate(inquiries, completions),
			"overall_conversion_pct":    rate(inquiries, clicks),
		},
	})
}

func rate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return math.Round(float64(numerator)/float64(denominator)*1000) / 10
}

func (s *Server) recentEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	events, err := s.store.RecentEvents(r.Context(), limit)
	if err != nil {
		internalError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, map[string]any{
			"id": e.ID, "event_type": e.Type, "event_data": e.Data, "created_at": e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "events": out})
}

func (s *Server) submitResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		MemberID int64    `json:"member_id"`
		ImageID  string   `json:"image_id"`
		Bullets  []string `json:"bullets"`
	}
	if !decode(w, r, &req) {
		return
	}

	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		internalError(w, err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if sess.State != store.StateCapturing {
		writeError(w, http.StatusConflict, "session is not accepting responses")
		return
	}

	resp, err := s.store.UpsertResponse(r.Context(), id, req.MemberID, req.ImageID, req.Bullets)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id": resp.ID, "session_id": resp.SessionID, "member_id": resp.MemberID,
		"image_id": resp.ImageID, "bullets": resp.Bullets,
	})
}

func teamJSON(t *store.Team) map[string]any {
	return map[string]any{
		"id":                 t.ID,
		"company_name":       t.CompanyName,
		"team_name":          t.TeamName,
		"code":               t.Code,
		"strategy_statement": t.StrategyStatement,
	}
}

func sessionJSON(sess *store.Session) map[string]any {
	out := map[string]any{
		"id":      sess.ID,
		"team_id": sess.TeamID,
		"month":   sess.Month,
		"state":   sess.State,
	}
	if sess.SynthesisThemes != nil {
		out["synthesis_themes"] = *sess.SynthesisThemes
	}
	if sess.SynthesisStatements != nil {
		out["synthesis_statements"] = json.RawMessage(*sess.SynthesisStatements)
	}
	if sess.SynthesisGapType != nil {
		out["synthesis_gap_type"] = *sess.SynthesisGapType
	}
	if sess.SynthesisGapReasoning != nil {
		out["synthesis_gap_reasoning"] = *sess.SynthesisGapReasoning
	}
	if sess.SuggestedRecalibrations != nil {
		out["suggested_recalibrations"] = json.RawMessage(*sess.SuggestedRecalibrations)
	}
	if sess.RecalibrationAction != nil {
		out["recalibration_action"] = *sess.RecalibrationAction
	}
	if sess.ClosedAt != nil {
		out["closed_at"] = *sess.ClosedAt
	}
	if sess.RevealedAt != nil {
		out["revealed_at"] = *sess.RevealedAt
	}
	return out
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		internalError(w, err)
	}
}

func internalError(w http.ResponseWriter, err error) {
	log.Printf("httpapi: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: failed to encode response: %v", err)
	}
}
