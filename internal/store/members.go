package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AddMember adds a member to a team. Names are unique per team
// (case-insensitive) and the roster is capped at MaxMembers.
func (s *Store) AddMember(ctx context.Context, teamID int64, name string) (*Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("member name must not be empty")
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE team_id = ?`, teamID).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if count >= MaxMembers {
		return nil, fmt.Errorf("maximum of %d members reached", MaxMembers)
	}

	var existing int64
	err = s.db.QueryRowContext(ctx,
		`SELECT member_id FROM members WHERE team_id = ? AND LOWER(name) = LOWER(?)`,
		teamID, name).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("%q is already a member of this team", name)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check member name: %w", err)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO members (team_id, name, created_at) VALUES (?, ?, ?)`,
		teamID, name, fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get member id: %w", err)
	}

	return &Member{ID: id, TeamID: teamID, Name: name, CreatedAt: now}, nil
}

// GetMember returns the member with the given id, or nil.
func (s *Store) GetMember(ctx context.Context, id int64) (*Member, error) {
	var m Member
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT member_id, team_id, name, created_at FROM members WHERE member_id = ?`,
		id).Scan(&m.ID, &m.TeamID, &m.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

// ListMembers returns all members of a team sorted by name.
func (s *Store) ListMembers(ctx context.Context, teamID int64) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, team_id, name, created_at FROM members
		 WHERE team_id = ? ORDER BY name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var createdAt string
		if err := rows.Scan(&m.ID, &m.TeamID, &m.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		members = append(members, m)
	}
	return members, rows.Err()
}

// RemoveMember deletes a member from a team.
func (s *Store) RemoveMember(ctx context.Context, teamID, memberID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM members WHERE member_id = ? AND team_id = ?`, memberID, teamID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}
