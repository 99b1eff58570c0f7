package demo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teamlens/teamlens/internal/synthesis"
)

func TestTeamDeterministic(t *testing.T) {
	first := Team(7)
	second := Team(7)

	if len(first) != 4 {
		t.Fatalf("expected 4 demo members, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("same seed must give the same team, diverged at %d: %v vs %v", i, first[i], second[i])
		}
	}

	roles := map[string]bool{}
	for _, m := range first {
		roles[m.Role] = true
		if m.FirstName == "" || strings.Contains(m.FirstName, " ") {
			t.Errorf("bad first name %q for %q", m.FirstName, m.Name)
		}
	}
	for _, want := range []string{"CTO", "CFO", "VP Sales", "COO"} {
		if !roles[want] {
			t.Errorf("missing role %s", want)
		}
	}
}

func TestDefaultSeedStableWithinHour(t *testing.T) {
	base := time.Date(2026, 9, 1, 14, 5, 0, 0, time.UTC)
	if DefaultSeed(base) != DefaultSeed(base.Add(30*time.Minute)) {
		t.Errorf("seed must be stable within the hour")
	}
	if DefaultSeed(base) == DefaultSeed(base.Add(2*time.Hour)) {
		t.Errorf("seed must change across hours")
	}
}

func TestObservationsUseSeededNames(t *testing.T) {
	team := Team(7)
	byName := map[string]bool{}
	for _, m := range team {
		byName[m.Name] = true
	}

	obs := Observations(7)
	if len(obs) != 4 {
		t.Fatalf("expected 4 observations, got %d", len(obs))
	}
	for _, o := range obs {
		if !byName[o.Name] {
			t.Errorf("observation name %q is not a seeded team member", o.Name)
		}
		if len(o.ImageID) != 12 {
			t.Errorf("expected opaque image id, got %q", o.ImageID)
		}
		if len(o.Bullets) == 0 {
			t.Errorf("observation for %q has no bullets", o.Name)
		}
	}
}

type scriptedClient struct {
	response string
	err      error
	prompt   string
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompt = prompt
	return c.response, c.err
}

func TestSynthesizeInjectsVisitor(t *testing.T) {
	// A valid result that never mentions the visitor.
	client := &scriptedClient{response: "```json\n" + `{
		"themes": "Effort without coordination.",
		"statements": [
			{"label": "Sync gap", "statement": "Functions run independently.", "participants": ["Sarah Chen"]},
			{"label": "Handoff stalls", "statement": "Work stalls between teams.", "participants": ["James Park"]},
			{"label": "Promise gap", "statement": "Sales and engineering diverge.", "participants": ["Michael Lee", "Rachel Kim"]}
		],
		"gap_type": "Alignment",
		"gap_reasoning": "Hard work, disconnected pieces.",
		"suggested_recalibrations": ["Joint roadmap", "Weekly sync", "Shared definitions of done"]
	}` + "\n```"}

	self := synthesis.Observation{Name: "Visitor", ImageID: "abc123def456", Bullets: []string{"My own take"}}
	result, err := Synthesize(context.Background(), client, 7, self)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if !strings.Contains(client.prompt, "Visitor") || !strings.Contains(client.prompt, "My own take") {
		t.Errorf("visitor's observation must be part of the prompt")
	}
	if !strings.Contains(client.prompt, ClearBrief.Strategy) {
		t.Errorf("demo strategy must be part of the prompt")
	}

	found := false
	for _, st := range result.Statements {
		for _, p := range st.Participants {
			if p == "Visitor" {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("visitor must appear in at least one statement")
	}
}

func TestSynthesizeErrors(t *testing.T) {
	self := synthesis.Observation{Name: "Visitor", Bullets: []string{"note"}}

	if _, err := Synthesize(context.Background(), nil, 7, self); err == nil {
		t.Errorf("expected an error without a client")
	}

	client := &scriptedClient{err: errors.New("service down")}
	if _, err := Synthesize(context.Background(), client, 7, self); err == nil {
		t.Errorf("expected the service error to surface")
	}

	client = &scriptedClient{response: "not json at all"}
	if _, err := Synthesize(context.Background(), client, 7, self); err == nil {
		t.Errorf("expected unparseable output to error")
	}
}
