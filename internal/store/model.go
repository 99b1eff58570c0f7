package store

import "time"

// State represents the lifecycle state of a session.
type State string

const (
	StateDraft     State = "draft"     // Created, not yet open for responses
	StateCapturing State = "capturing" // Accepting participant responses
	StateClosed    State = "closed"    // Capture window closed, synthesis pending or failed
	StateRevealed  State = "revealed"  // Synthesis revealed to the team
)

// Team is a team participating in the diagnostic.
type Team struct {
	ID                int64
	CompanyName       string
	TeamName          string
	Code              string // Join code participants use to enter a session
	StrategyStatement string
	ImagePrompt       string // Shown when selecting an image
	BulletPrompt      string // Shown when entering bullet points
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Member is a team member who participates in sessions.
type Member struct {
	ID        int64
	TeamID    int64
	Name      string
	CreatedAt time.Time
}

// Session is one monthly diagnostic session for a team.
// The synthesis fields are nil until the orchestrator has written a result
// (or one of the sentinel markers).
type Session struct {
	ID     int64
	TeamID int64
	Month  string // "YYYY-MM", unique per team, lexically sortable
	State  State

	SynthesisThemes         *string
	SynthesisStatements     *string // JSON array of attributed statements
	SynthesisGapType        *string
	SynthesisGapReasoning   *string
	SuggestedRecalibrations *string // JSON array of exactly 3 actions

	FacilitatorNotes          *string
	FacilitatorNotesUpdatedAt *time.Time

	// The recalibration action the facilitator committed the team to after
	// the reveal, picked from (or inspired by) the suggested list.
	RecalibrationAction          *string
	RecalibrationActionUpdatedAt *time.Time

	CreatedAt  time.Time
	ClosedAt   *time.Time
	RevealedAt *time.Time
}

// Response is a participant's single submission within a session.
// At most one response exists per (session, member); resubmission overwrites.
type Response struct {
	ID          int64
	SessionID   int64
	MemberID    int64
	ImageID     string // Opaque content identifier, never a raw filename
	Bullets     []string
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// Event is one anonymous conversion-funnel event. No PII is stored, only
// the event type, an optional free-form data blob and a timestamp.
type Event struct {
	ID        int64
	Type      string
	Data      string
	CreatedAt time.Time
}

// Observation is a response joined with the member's display name, as
// consumed by the synthesis orchestrator.
type Observation struct {
	MemberID int64
	Name     string
	ImageID  string
	Bullets  []string
}
