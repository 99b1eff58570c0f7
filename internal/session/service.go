// Package session implements the authoritative lifecycle state machine for
// diagnostic sessions and the poll-friendly status summary derived from it.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teamlens/teamlens/internal/scheduler"
	"github.com/teamlens/teamlens/internal/store"
	"github.com/teamlens/teamlens/internal/synthesis"
)

var (
	// ErrNotFound is returned when the referenced session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidTransition is returned when a state change is not permitted
	// from the session's current state.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Synthesizer runs the asynchronous synthesis pipeline for one session.
type Synthesizer interface {
	Run(ctx context.Context, sessionID int64)
}

// Service owns session state transitions. Transitions are compare-and-set
// updates at the storage layer, so concurrent callers cannot observe or
// create intermediate states; in particular only one of two simultaneous
// close calls can win, which is what bounds synthesis scheduling to one run.
type Service struct {
	store *store.Store
	tasks scheduler.Tasks
	synth Synthesizer
	now   func() time.Time
}

// NewService wires the state machine to its storage, task runner and
// synthesizer.
func NewService(st *store.Store, tasks scheduler.Tasks, synth Synthesizer) *Service {
	return &Service{store: st, tasks: tasks, synth: synth, now: time.Now}
}

// StartCapturing transitions draft -> capturing.
func (s *Service) StartCapturing(ctx context.Context, sessionID int64) error {
	ok, err := s.store.BeginCapture(ctx, sessionID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.transitionError(ctx, sessionID, "start capturing")
}

// CloseCapturing transitions capturing -> closed: stamps the close time,
// writes the in-progress marker and schedules the synthesis run. The caller
// returns immediately; synthesis happens in the background. Calling close
// again while synthesis is already in progress is a no-op.
func (s *Service) CloseCapturing(ctx context.Context, sessionID int64) error {
	ok, err := s.store.CloseCapture(ctx, sessionID, s.now(), synthesis.MarkerGenerating)
	if err != nil {
		return err
	}
	if ok {
		// The marker write above happens-before the task starts, so a client
		// polling right after close observes "generating", never "pending".
		s.scheduleSynthesis(sessionID)
		return nil
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNotFound
	}
	// Idempotent double-close guard: already closed with synthesis underway.
	if sess.State == store.StateClosed && StatusForThemes(sess.SynthesisThemes) == SynthesisGenerating {
		return nil
	}
	return fmt.Errorf("%w: cannot close capture in state %q", ErrInvalidTransition, sess.State)
}

// RevealSynthesis transitions closed -> revealed. Normally the orchestrator
// auto-reveals on success, but a facilitator may also invoke it directly.
func (s *Service) RevealSynthesis(ctx context.Context, sessionID int64) error {
	ok, err := s.store.Reveal(ctx, sessionID, s.now())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.transitionError(ctx, sessionID, "reveal synthesis")
}

// ReopenCapturing transitions closed|revealed -> capturing, clearing the
// synthesis fields and close timestamp so latecomers can still submit.
func (s *Service) ReopenCapturing(ctx context.Context, sessionID int64) error {
	ok, err := s.store.Reopen(ctx, sessionID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.transitionError(ctx, sessionID, "reopen capturing")
}

// RetrySynthesis clears the synthesis fields and reschedules the orchestrator
// without changing state. Allowed from closed or revealed; a no-op while a
// run is already in progress.
func (s *Service) RetrySynthesis(ctx context.Context, sessionID int64) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNotFound
	}
	if sess.State != store.StateClosed && sess.State != store.StateRevealed {
		return fmt.Errorf("%w: cannot retry synthesis in state %q", ErrInvalidTransition, sess.State)
	}
	if StatusForThemes(sess.SynthesisThemes) == SynthesisGenerating {
		return nil
	}

	ok, err := s.store.ResetSynthesis(ctx, sessionID, synthesis.MarkerGenerating)
	if err != nil {
		return err
	}
	if !ok {
		// State changed between the read and the compare-and-set.
		return s.transitionError(ctx, sessionID, "retry synthesis")
	}

	s.scheduleSynthesis(sessionID)
	return nil
}

// UpdateFacilitatorNotes stores the facilitator's notes with a timestamp.
func (s *Service) UpdateFacilitatorNotes(ctx context.Context, sessionID int64, notes string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNotFound
	}
	return s.store.UpdateFacilitatorNotes(ctx, sessionID, notes, s.now())
}

// UpdateRecalibrationAction records the action the team committed to after
// the reveal. Only meaningful once a synthesis exists, so it is limited to
// closed and revealed sessions.
func (s *Service) UpdateRecalibrationAction(ctx context.Context, sessionID int64, action string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNotFound
	}
	if sess.State != store.StateClosed && sess.State != store.StateRevealed {
		return fmt.Errorf("%w: cannot set recalibration action in state %q", ErrInvalidTransition, sess.State)
	}
	return s.store.UpdateRecalibrationAction(ctx, sessionID, action, s.now())
}

func (s *Service) scheduleSynthesis(sessionID int64) {
	s.tasks.Submit("synthesis", func(ctx context.Context) {
		s.synth.Run(ctx, sessionID)
	})
}

func (s *Service) transitionError(ctx context.Context, sessionID int64, op string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNotFound
	}
	return fmt.Errorf("%w: cannot %s in state %q", ErrInvalidTransition, op, sess.State)
}
