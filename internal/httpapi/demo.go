package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/teamlens/teamlens/internal/demo"
	"github.com/teamlens/teamlens/internal/synthesis"
)

// DemoHandler serves the guided walkthrough built around a fictional
// company. A live synthesis client is optional; without one the
// synthesis endpoint reports the feature as unavailable.
type DemoHandler struct {
	client synthesis.Client
}

// NewDemoHandler creates the demo handler. client may be nil.
func NewDemoHandler(client synthesis.Client) *DemoHandler {
	return &DemoHandler{client: client}
}

// Register mounts the demo routes on mux.
func (d *DemoHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/demo", d.getDemo)
	mux.HandleFunc("POST /api/demo/synthesis", d.synthesize)
}

func (d *DemoHandler) getDemo(w http.ResponseWriter, r *http.Request) {
	seed := demoSeed(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"seed":    seed,
		"company": demo.ClearBrief,
		"team":    demo.Team(seed),
	})
}

func (d *DemoHandler) synthesize(w http.ResponseWriter, r *http.Request) {
	if d.client == nil {
		writeError(w, http.StatusServiceUnavailable, "synthesis is not configured")
		return
	}
	var req struct {
		Seed    int64    `json:"seed"`
		Name    string   `json:"name"`
		ImageID string   `json:"image_id"`
		Bullets []string `json:"bullets"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" || len(req.Bullets) == 0 {
		writeError(w, http.StatusBadRequest, "name and bullets are required")
		return
	}
	if req.Seed == 0 {
		req.Seed = demo.DefaultSeed(time.Now())
	}

	self := synthesis.Observation{Name: req.Name, ImageID: req.ImageID, Bullets: req.Bullets}
	result, err := demo.Synthesize(r.Context(), d.client, req.Seed, self)
	if err != nil {
		writeError(w, http.StatusBadGateway, "synthesis failed, please try again")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func demoSeed(r *http.Request) int64 {
	if v := r.URL.Query().Get("seed"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return demo.DefaultSeed(time.Now())
}
