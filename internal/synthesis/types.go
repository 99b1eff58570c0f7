// Package synthesis turns a closed session's observations into attributed
// insights and a gap diagnosis by calling an external language-model service.
package synthesis

// GapType is the diagnosed category of team dysfunction. Exactly one is
// produced per synthesis.
type GapType string

const (
	GapDirection  GapType = "Direction"  // Team lacks shared understanding of goals or priorities
	GapAlignment  GapType = "Alignment"  // Team's work is disconnected or uncoordinated
	GapCommitment GapType = "Commitment" // Individual interests override collective success
)

// Valid reports whether g is one of the three recognized gap types.
func (g GapType) Valid() bool {
	switch g {
	case GapDirection, GapAlignment, GapCommitment:
		return true
	}
	return false
}

// Statement is one attributed insight: a short label, the full statement
// text, and the participants whose responses support it.
type Statement struct {
	Label        string   `json:"label"`
	Statement    string   `json:"statement"`
	Participants []string `json:"participants"`
}

// Result is the validated output of one synthesis run.
type Result struct {
	Themes                  string      `json:"themes"`
	Statements              []Statement `json:"statements"`
	GapType                 GapType     `json:"gap_type"`
	GapReasoning            string      `json:"gap_reasoning"`
	SuggestedRecalibrations []string    `json:"suggested_recalibrations"`
}

// Observation is one participant's input to the synthesis: display name,
// selected content identifier and bullet notes.
type Observation struct {
	Name    string
	ImageID string
	Bullets []string
}

// Sentinel markers stored in the themes field while no valid result exists.
// The status reporter derives the synthesis sub-status from these by
// substring, so each marker must keep its keyword.
const (
	MarkerGenerating   = "Generating synthesis from team responses..."
	MarkerInsufficient = "Insufficient responses for synthesis (minimum 3 required)."
	MarkerFailed       = "Synthesis generation failed. Please try again."
)

// MinObservations is the minimum number of responses required for a
// meaningful synthesis.
const MinObservations = 3

// EnsureParticipant guarantees that name appears in at least one attributed
// statement. If the service's output omitted it, the name is appended to the
// first statement's participant list. Used by the demo pipeline, where the
// visitor's own response must always be reflected in the reveal.
func EnsureParticipant(r *Result, name string) {
	if len(r.Statements) == 0 {
		return
	}
	for _, st := range r.Statements {
		for _, p := range st.Participants {
			if p == name {
				return
			}
		}
	}
	r.Statements[0].Participants = append(r.Statements[0].Participants, name)
}
