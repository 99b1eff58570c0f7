package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/teamlens/teamlens/internal/store"
)

// Client is the external synthesis service: one request, one response, no
// retry or backoff built in. Retrying is a human action.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Orchestrator runs the asynchronous synthesis pipeline for closed sessions.
// Run never returns an error to its caller: every failure mode is converted
// into persisted session state (insufficient, failed, or complete) so a
// polling client always sees something it can make sense of.
type Orchestrator struct {
	store  *store.Store
	client Client
	now    func() time.Time
}

// New creates an orchestrator. client may be nil when no provider is
// configured; runs then settle into the failed state immediately.
func New(st *store.Store, client Client) *Orchestrator {
	return &Orchestrator{store: st, client: client, now: time.Now}
}

// Run synthesizes a session's observations and persists the outcome.
func (o *Orchestrator) Run(ctx context.Context, sessionID int64) {
	obs, err := o.store.ListObservations(ctx, sessionID)
	if err != nil {
		o.fail(ctx, sessionID, fmt.Errorf("failed to load observations: %w", err))
		return
	}

	// Below the minimum there is nothing meaningful to synthesize. This is a
	// terminal outcome, not a failure to retry, and the service is never
	// called.
	if len(obs) < MinObservations {
		log.Printf("synthesis: session %d has %d responses, below minimum %d",
			sessionID, len(obs), MinObservations)
		if err := o.store.MarkSynthesis(ctx, sessionID, MarkerInsufficient); err != nil {
			log.Printf("synthesis: failed to mark session %d insufficient: %v", sessionID, err)
		}
		return
	}

	if o.client == nil {
		o.fail(ctx, sessionID, fmt.Errorf("no synthesis provider configured"))
		return
	}

	strategy, err := o.strategyStatement(ctx, sessionID)
	if err != nil {
		o.fail(ctx, sessionID, err)
		return
	}

	observations := make([]Observation, len(obs))
	for i, row := range obs {
		observations[i] = Observation{Name: row.Name, ImageID: row.ImageID, Bullets: row.Bullets}
	}

	prompt := BuildPrompt(strategy, observations)

	raw, err := o.client.Complete(ctx, prompt)
	if err != nil {
		o.fail(ctx, sessionID, fmt.Errorf("synthesis service call failed: %w", err))
		return
	}

	data, err := ExtractJSON(raw)
	if err != nil {
		o.fail(ctx, sessionID, err)
		return
	}

	result, err := ValidateResult(data)
	if err != nil {
		o.fail(ctx, sessionID, err)
		return
	}

	if err := checkCoverage(observations, result); err != nil {
		o.fail(ctx, sessionID, err)
		return
	}

	statementsJSON, err := json.Marshal(result.Statements)
	if err != nil {
		o.fail(ctx, sessionID, fmt.Errorf("failed to marshal statements: %w", err))
		return
	}
	recalibrationsJSON, err := json.Marshal(result.SuggestedRecalibrations)
	if err != nil {
		o.fail(ctx, sessionID, fmt.Errorf("failed to marshal recalibrations: %w", err))
		return
	}

	// Persisting the result and the closed->revealed auto-reveal happen in
	// one atomic update.
	err = o.store.SaveSynthesisResult(ctx, sessionID,
		result.Themes, string(statementsJSON), string(result.GapType),
		result.GapReasoning, string(recalibrationsJSON), o.now())
	if err != nil {
		o.fail(ctx, sessionID, err)
		return
	}

	log.Printf("synthesis: session %d complete, gap=%s, %d statements",
		sessionID, result.GapType, len(result.Statements))
}

func (o *Orchestrator) strategyStatement(ctx context.Context, sessionID int64) (string, error) {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return "", fmt.Errorf("session %d not found", sessionID)
	}
	team, err := o.store.GetTeam(ctx, sess.TeamID)
	if err != nil {
		return "", fmt.Errorf("failed to load team: %w", err)
	}
	if team == nil {
		return "", fmt.Errorf("team %d not found", sess.TeamID)
	}
	return team.StrategyStatement, nil
}

// checkCoverage enforces the contract rule that every participant appears in
// at least one attributed statement.
func checkCoverage(obs []Observation, result *Result) error {
	attributed := make(map[string]bool)
	for _, st := range result.Statements {
		for _, p := range st.Participants {
			attributed[strings.TrimSpace(p)] = true
		}
	}

	var missing []string
	for _, o := range obs {
		if !attributed[o.Name] {
			missing = append(missing, o.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("synthesis output omits participants: %s", strings.Join(missing, ", "))
	}
	return nil
}

// fail records the terminal failed marker. The session stays closed so a
// facilitator can retry explicitly; the error itself is only logged.
func (o *Orchestrator) fail(ctx context.Context, sessionID int64, cause error) {
	log.Printf("synthesis: session %d failed: %v", sessionID, cause)
	if err := o.store.MarkSynthesis(ctx, sessionID, MarkerFailed); err != nil {
		log.Printf("synthesis: failed to persist failure for session %d: %v", sessionID, err)
	}
}
