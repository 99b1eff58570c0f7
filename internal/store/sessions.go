package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CurrentMonth returns the current month in "YYYY-MM" form.
func CurrentMonth() string {
	return time.Now().UTC().Format("2006-01")
}

// ValidMonth reports whether month is a well-formed "YYYY-MM" label.
func ValidMonth(month string) bool {
	_, err := time.Parse("2006-01", month)
	return err == nil
}

// CreateSession creates a session in the draft state. At most one session may
// exist per (team, month); the unique constraint enforces this.
func (s *Store) CreateSession(ctx context.Context, teamID int64, month string) (*Session, error) {
	if !ValidMonth(month) {
		return nil, fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (team_id, month, state, created_at) VALUES (?, ?, ?, ?)`,
		teamID, month, string(StateDraft), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get session id: %w", err)
	}
	return s.GetSession(ctx, id)
}

const sessionColumns = `session_id, team_id, month, state,
	synthesis_themes, synthesis_statements, synthesis_gap_type,
	synthesis_gap_reasoning, suggested_recalibrations,
	facilitator_notes, facilitator_notes_updated_at,
	recalibration_action, recalibration_action_updated_at,
	created_at, closed_at, revealed_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var sess Session
	var state string
	var themes, statements, gapType, reasoning, recalibrations sql.NullString
	var notes, notesAt sql.NullString
	var action, actionAt sql.NullString
	var createdAt string
	var closedAt, revealedAt sql.NullString

	err := row.Scan(&sess.ID, &sess.TeamID, &sess.Month, &state,
		&themes, &statements, &gapType, &reasoning, &recalibrations,
		&notes, &notesAt, &action, &actionAt, &createdAt, &closedAt, &revealedAt)
	if err != nil {
		return nil, err
	}

	sess.State = State(state)
	sess.SynthesisThemes = nullStr(themes)
	sess.SynthesisStatements = nullStr(statements)
	sess.SynthesisGapType = nullStr(gapType)
	sess.SynthesisGapReasoning = nullStr(reasoning)
	sess.SuggestedRecalibrations = nullStr(recalibrations)
	sess.FacilitatorNotes = nullStr(notes)
	sess.FacilitatorNotesUpdatedAt = parseNullTime(notesAt)
	sess.RecalibrationAction = nullStr(action)
	sess.RecalibrationActionUpdatedAt = parseNullTime(actionAt)
	sess.CreatedAt = parseTime(createdAt)
	sess.ClosedAt = parseNullTime(closedAt)
	sess.RevealedAt = parseNullTime(revealedAt)
	return &sess, nil
}

// GetSession returns the session with the given id, or nil if it does not
// exist.
func (s *Store) GetSession(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// ListTeamSessions returns all sessions for a team, newest month first.
func (s *Store) ListTeamSessions(ctx context.Context, teamID int64) ([]Session, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE team_id = ? ORDER BY month DESC`,
		teamID)
}

// ListCapturingSessions returns a team's sessions currently accepting
// responses, newest month first.
func (s *Store) ListCapturingSessions(ctx context.Context, teamID int64) ([]Session, error) {
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE team_id = ? AND state = ? ORDER BY month DESC`,
		teamID, string(StateCapturing))
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// BeginCapture transitions draft -> capturing. Returns false if the session
// was not in draft (or does not exist); the compare-and-set makes the
// transition atomic.
func (s *Store) BeginCapture(ctx context.Context, id int64) (bool, error) {
	return s.cas(ctx,
		`UPDATE sessions SET state = ? WHERE session_id = ? AND state = ?`,
		string(StateCapturing), id, string(StateDraft))
}

// CloseCapture transitions capturing -> closed in a single atomic update:
// stamps the close time and writes the in-progress synthesis marker. Only one
// of two concurrent closers can win the compare-and-set, which is what
// guarantees synthesis is scheduled at most once.
func (s *Store) CloseCapture(ctx context.Context, id int64, closedAt time.Time, marker string) (bool, error) {
	return s.cas(ctx,
		`UPDATE sessions SET state = ?, closed_at = ?,
		 synthesis_themes = ?, synthesis_statements = '[]',
		 synthesis_gap_type = NULL, synthesis_gap_reasoning = NULL,
		 suggested_recalibrations = NULL
		 WHERE session_id = ? AND state = ?`,
		string(StateClosed), fmtTime(closedAt), marker, id, string(StateCapturing))
}

// Reveal transitions closed -> revealed and stamps the reveal time.
func (s *Store) Reveal(ctx context.Context, id int64, revealedAt time.Time) (bool, error) {
	return s.cas(ctx,
		`UPDATE sessions SET state = ?, revealed_at = ? WHERE session_id = ? AND state = ?`,
		string(StateRevealed), fmtTime(revealedAt), id, string(StateClosed))
}

// Reopen transitions closed|revealed -> capturing, clearing all synthesis
// fields and the close/reveal timestamps so latecomers can still respond.
func (s *Store) Reopen(ctx context.Context, id int64) (bool, error) {
	return s.cas(ctx,
		`UPDATE sessions SET state = ?, closed_at = NULL, revealed_at = NULL,
		 synthesis_themes = NULL, synthesis_statements = NULL,
		 synthesis_gap_type = NULL, synthesis_gap_reasoning = NULL,
		 suggested_recalibrations = NULL
		 WHERE session_id = ? AND state IN (?, ?)`,
		string(StateCapturing), id, string(StateClosed), string(StateRevealed))
}

// ResetSynthesis clears the synthesis fields back to the in-progress marker
// without changing state. Used by the explicit retry action; allowed from
// closed or revealed.
func (s *Store) ResetSynthesis(ctx context.Context, id int64, marker string) (bool, error) {
	return s.cas(ctx,
		`UPDATE sessions SET synthesis_themes = ?, synthesis_statements = '[]',
		 synthesis_gap_type = NULL, synthesis_gap_reasoning = NULL,
		 suggested_recalibrations = NULL
		 WHERE session_id = ? AND state IN (?, ?)`,
		marker, id, string(StateClosed), string(StateRevealed))
}

// SaveSynthesisResult persists a complete synthesis result and, if the session
// is still closed, performs the auto-reveal in the same update so no
// intermediate state is observable.
func (s *Store) SaveSynthesisResult(ctx context.Context, id int64,
	themes, statementsJSON, gapType, reasoning, recalibrationsJSON string,
	revealedAt time.Time) error {

	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET
		 synthesis_themes = ?, synthesis_statements = ?, synthesis_gap_type = ?,
		 synthesis_gap_reasoning = ?, suggested_recalibrations = ?,
		 revealed_at = CASE WHEN state = ? THEN ? ELSE revealed_at END,
		 state = CASE WHEN state = ? THEN ? ELSE state END
		 WHERE session_id = ?`,
		themes, statementsJSON, gapType, reasoning, recalibrationsJSON,
		string(StateClosed), fmtTime(revealedAt),
		string(StateClosed), string(StateRevealed), id)
	if err != nil {
		return fmt.Errorf("failed to save synthesis result: %w", err)
	}
	return nil
}

// MarkSynthesis writes a terminal sentinel (failed or insufficient) as the
// themes field and empties the statement list, leaving state untouched.
func (s *Store) MarkSynthesis(ctx context.Context, id int64, marker string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET synthesis_themes = ?, synthesis_statements = '[]',
		 synthesis_gap_type = NULL, synthesis_gap_reasoning = NULL,
		 suggested_recalibrations = NULL
		 WHERE session_id = ?`,
		marker, id)
	if err != nil {
		return fmt.Errorf("failed to mark synthesis: %w", err)
	}
	return nil
}

// UpdateFacilitatorNotes stores the facilitator's free-text notes.
func (s *Store) UpdateFacilitatorNotes(ctx context.Context, id int64, notes string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET facilitator_notes = ?, facilitator_notes_updated_at = ?
		 WHERE session_id = ?`,
		notes, fmtTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to update facilitator notes: %w", err)
	}
	return nil
}

// UpdateRecalibrationAction records the action the facilitator committed the
// team to after the reveal. Like the notes it survives a reopen; only the
// synthesis fields are cleared there.
func (s *Store) UpdateRecalibrationAction(ctx context.Context, id int64, action string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET recalibration_action = ?, recalibration_action_updated_at = ?
		 WHERE session_id = ?`,
		action, fmtTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to update recalibration action: %w", err)
	}
	return nil
}

func (s *Store) cas(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update session state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}
