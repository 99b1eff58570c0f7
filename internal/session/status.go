package session

import (
	"context"
	"strings"

	"github.com/teamlens/teamlens/internal/store"
)

// SynthesisStatus is the poll-friendly sub-status of the synthesis pipeline,
// derived purely from the themes marker text.
type SynthesisStatus string

const (
	SynthesisPending    SynthesisStatus = "pending"
	SynthesisGenerating SynthesisStatus = "generating"
	SynthesisFailed     SynthesisStatus = "failed"
	SynthesisComplete   SynthesisStatus = "complete"
)

// MemberStatus is one member's submitted/not-submitted flag.
type MemberStatus struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Submitted bool   `json:"submitted"`
}

// StatusSummary is the read-only snapshot clients poll for.
type StatusSummary struct {
	SessionID      int64           `json:"session_id"`
	State          store.State     `json:"state"`
	Month          string          `json:"month"`
	TotalMembers   int             `json:"total_members"`
	SubmittedCount int             `json:"submitted_count"`
	Members        []MemberStatus  `json:"members"`
	Synthesis      SynthesisStatus `json:"synthesis,omitempty"`
}

// StatusForThemes maps the themes marker to a synthesis sub-status: nil means
// nothing has been attempted, the sentinel markers mean in-progress or a
// terminal non-result, anything else is a real themes text.
func StatusForThemes(themes *string) SynthesisStatus {
	if themes == nil {
		return SynthesisPending
	}
	t := strings.ToLower(*themes)
	switch {
	case strings.Contains(t, "generating"):
		return SynthesisGenerating
	case strings.Contains(t, "failed"), strings.Contains(t, "insufficient"):
		return SynthesisFailed
	default:
		return SynthesisComplete
	}
}

// Status derives the poll summary from current session and response state.
// It is a pure read with no side effects, safe to call at high frequency.
func (s *Service) Status(ctx context.Context, sessionID int64) (*StatusSummary, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}

	members, err := s.store.ListMembers(ctx, sess.TeamID)
	if err != nil {
		return nil, err
	}
	responded, err := s.store.RespondedMemberIDs(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	summary := &StatusSummary{
		SessionID:    sess.ID,
		State:        sess.State,
		Month:        sess.Month,
		TotalMembers: len(members),
		Members:      make([]MemberStatus, 0, len(members)),
	}
	for _, m := range members {
		summary.Members = append(summary.Members, MemberStatus{
			ID:        m.ID,
			Name:      m.Name,
			Submitted: responded[m.ID],
		})
	}
	summary.SubmittedCount = len(responded)

	if sess.State == store.StateClosed || sess.State == store.StateRevealed {
		summary.Synthesis = StatusForThemes(sess.SynthesisThemes)
	}

	return summary, nil
}