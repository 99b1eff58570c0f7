package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxBullets bounds a single response to 1-5 bullet points.
	MaxBullets = 5
	// MaxBulletLength bounds each bullet's text, counted in characters.
	MaxBulletLength = 500
)

func validateBullets(bullets []string) error {
	if len(bullets) == 0 {
		return fmt.Errorf("at least one bullet is required")
	}
	if len(bullets) > MaxBullets {
		return fmt.Errorf("at most %d bullets are allowed", MaxBullets)
	}
	for i, b := range bullets {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("bullet %d is empty", i+1)
		}
		if utf8.RuneCountInString(b) > MaxBulletLength {
			return fmt.Errorf("bullet %d exceeds %d characters", i+1, MaxBulletLength)
		}
	}
	return nil
}

// UpsertResponse records a participant's response. A member has at most one
// response per session; submitting again overwrites the previous one rather
// than creating a duplicate.
func (s *Store) UpsertResponse(ctx context.Context, sessionID, memberID int64, imageID string, bullets []string) (*Response, error) {
	if imageID == "" {
		return nil, fmt.Errorf("image id is required")
	}
	if err := validateBullets(bullets); err != nil {
		return nil, err
	}

	bulletsJSON, err := json.Marshal(bullets)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bullets: %w", err)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO responses (session_id, member_id, image_id, bullets, submitted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, member_id) DO UPDATE SET
			image_id = excluded.image_id,
			bullets = excluded.bullets,
			updated_at = excluded.updated_at`,
		sessionID, memberID, imageID, string(bulletsJSON), fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert response: %w", err)
	}

	return s.GetResponse(ctx, sessionID, memberID)
}

// GetResponse returns the response for (session, member), or nil.
func (s *Store) GetResponse(ctx context.Context, sessionID, memberID int64) (*Response, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT response_id, session_id, member_id, image_id, bullets, submitted_at, updated_at
		 FROM responses WHERE session_id = ? AND member_id = ?`,
		sessionID, memberID)
	r, err := scanResponse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return r, nil
}

func scanResponse(row interface{ Scan(...any) error }) (*Response, error) {
	var r Response
	var bulletsJSON, submittedAt, updatedAt string
	err := row.Scan(&r.ID, &r.SessionID, &r.MemberID, &r.ImageID,
		&bulletsJSON, &submittedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(bulletsJSON), &r.Bullets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bullets: %w", err)
	}
	r.SubmittedAt = parseTime(submittedAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// ListResponses returns all responses for a session.
func (s *Store) ListResponses(ctx context.Context, sessionID int64) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT response_id, session_id, member_id, image_id, bullets, submitted_at, updated_at
		 FROM responses WHERE session_id = ? ORDER BY submitted_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	var responses []Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, *r)
	}
	return responses, rows.Err()
}

// ListObservations returns a session's responses joined with the submitting
// member's display name, in submission order. This is what the synthesis
// orchestrator consumes.
func (s *Store) ListObservations(ctx context.Context, sessionID int64) ([]Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.member_id, m.name, r.image_id, r.bullets
		 FROM responses r JOIN members m ON m.member_id = r.member_id
		 WHERE r.session_id = ? ORDER BY r.submitted_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	defer rows.Close()

	var obs []Observation
	for rows.Next() {
		var o Observation
		var bulletsJSON string
		if err := rows.Scan(&o.MemberID, &o.Name, &o.ImageID, &bulletsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if err := json.Unmarshal([]byte(bulletsJSON), &o.Bullets); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bullets: %w", err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// RespondedMemberIDs returns the set of members who have submitted in a
// session.
func (s *Store) RespondedMemberIDs(ctx context.Context, sessionID int64) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id FROM responses WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responded members: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}
