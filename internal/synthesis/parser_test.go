package synthesis

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExtractJSONFenced(t *testing.T) {
	content := "Here is the analysis:\n```json\n{\"themes\": \"focus\"}\n```\nDone."

	data, err := ExtractJSON(content)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("extracted content is not valid JSON: %v", err)
	}
	if out["themes"] != "focus" {
		t.Errorf("expected themes=focus, got %q", out["themes"])
	}
}

func TestExtractJSONBareFence(t *testing.T) {
	content := "```\n{\"themes\": \"focus\"}\n```"

	data, err := ExtractJSON(content)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	if !strings.Contains(string(data), "focus") {
		t.Errorf("unexpected extraction: %s", data)
	}
}

func TestExtractJSONUnfenced(t *testing.T) {
	content := "Some preamble text. {\"themes\": \"focus\", \"nested\": {\"a\": 1}} Trailing words."

	data, err := ExtractJSON(content)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("extracted content is not valid JSON: %v", err)
	}
	if _, ok := out["nested"]; !ok {
		t.Errorf("expected nested object to survive extraction, got %s", data)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	if _, err := ExtractJSON("no structured content here"); err == nil {
		t.Errorf("expected an error for content without JSON")
	}
}

const validResult = `{
	"themes": "The team shares a focus on delivery but splits on priorities.",
	"statements": [
		{"label": "Shared delivery focus", "statement": "Most responses center on shipping.", "participants": ["Alice", "Bob"]},
		{"label": "Priority split", "statement": "Half the team pulls toward platform work.", "participants": ["Carol"]},
		{"label": "Quiet friction", "statement": "Several notes hint at unspoken disagreement.", "participants": ["Alice", "Carol"]}
	],
	"gap_type": "Alignment",
	"gap_reasoning": "Work streams are disconnected despite shared goals.",
	"suggested_recalibrations": ["Run a priorities workshop", "Pair across streams", "Publish a single roadmap"]
}`

func TestValidateResult(t *testing.T) {
	result, err := ValidateResult([]byte(validResult))
	if err != nil {
		t.Fatalf("ValidateResult failed: %v", err)
	}
	if result.GapType != GapAlignment {
		t.Errorf("expected Alignment gap, got %s", result.GapType)
	}
	if len(result.Statements) != 3 {
		t.Errorf("expected 3 statements, got %d", len(result.Statements))
	}
	if len(result.SuggestedRecalibrations) != 3 {
		t.Errorf("expected 3 recalibrations, got %d", len(result.SuggestedRecalibrations))
	}
}

func TestValidateResultRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"missing themes", func(m map[string]any) { delete(m, "themes") }},
		{"unknown gap type", func(m map[string]any) { m["gap_type"] = "Velocity" }},
		{"too few statements", func(m map[string]any) { m["statements"] = m["statements"].([]any)[:1] }},
		{"wrong recalibration count", func(m map[string]any) { m["suggested_recalibrations"] = []any{"only one"} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m map[string]any
			if err := json.Unmarshal([]byte(validResult), &m); err != nil {
				t.Fatalf("bad fixture: %v", err)
			}
			tc.mutate(m)
			data, _ := json.Marshal(m)
			if _, err := ValidateResult(data); err == nil {
				t.Errorf("expected validation to reject %s", tc.name)
			}
		})
	}
}

func TestEnsureParticipant(t *testing.T) {
	result, err := ValidateResult([]byte(validResult))
	if err != nil {
		t.Fatalf("ValidateResult failed: %v", err)
	}

	// Already present: no change.
	EnsureParticipant(result, "Alice")
	if len(result.Statements[0].Participants) != 2 {
		t.Errorf("expected no duplicate attribution for Alice")
	}

	// Absent everywhere: appended to the first statement.
	EnsureParticipant(result, "Dave")
	found := false
	for _, p := range result.Statements[0].Participants {
		if p == "Dave" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Dave to be attributed to the first statement")
	}
}

func TestBuildPromptIncludesInputs(t *testing.T) {
	obs := []Observation{
		{Name: "Alice", ImageID: "a1b2c3", Bullets: []string{"Everyone rowing together"}},
		{Name: "Bob", ImageID: "d4e5f6", Bullets: []string{"Feels like separate boats"}},
	}
	prompt := BuildPrompt("Ship the new billing system by Q4", obs)

	for _, want := range []string{"Alice", "Bob", "Everyone rowing together", "Ship the new billing system by Q4"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.Contains(prompt, "Direction") || !strings.Contains(prompt, "Commitment") {
		t.Errorf("prompt should name the gap categories")
	}
}
