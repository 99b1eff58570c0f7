package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// MaxMembers caps the team roster size.
const MaxMembers = 25

// codeAlphabet excludes characters that are easy to confuse (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 6

const timeLayout = time.RFC3339Nano

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullStr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// GenerateTeamCode produces a random join code from the ambiguity-free
// alphabet.
func GenerateTeamCode() (string, error) {
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate team code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode strips whitespace and upper-cases a join code so lookups are
// case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateTeam inserts a new team. If code is empty a random one is generated.
func (s *Store) CreateTeam(ctx context.Context, companyName, teamName, code, strategy string) (*Team, error) {
	if code == "" {
		var err error
		code, err = GenerateTeamCode()
		if err != nil {
			return nil, err
		}
	}
	code = NormalizeCode(code)

	if existing, err := s.GetTeamByCode(ctx, code); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("team code %q already exists", code)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (company_name, team_name, code, strategy_statement, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(companyName), strings.TrimSpace(teamName), code,
		strings.TrimSpace(strategy), fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert team: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get team id: %w", err)
	}
	return s.GetTeam(ctx, id)
}

const teamColumns = `team_id, company_name, team_name, code, strategy_statement,
	image_prompt, bullet_prompt, created_at, updated_at`

func scanTeam(row interface{ Scan(...any) error }) (*Team, error) {
	var t Team
	var strategy, imagePrompt, bulletPrompt sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.CompanyName, &t.TeamName, &t.Code,
		&strategy, &imagePrompt, &bulletPrompt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.StrategyStatement = strategy.String
	t.ImagePrompt = imagePrompt.String
	t.BulletPrompt = bulletPrompt.String
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// GetTeam returns the team with the given id, or nil if it does not exist.
func (s *Store) GetTeam(ctx context.Context, id int64) (*Team, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE team_id = ?`, id)
	t, err := scanTeam(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return t, nil
}

// GetTeamByCode returns the team with the given join code (case-insensitive),
// or nil if no team matches.
func (s *Store) GetTeamByCode(ctx context.Context, code string) (*Team, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE UPPER(code) = ?`, NormalizeCode(code))
	t, err := scanTeam(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team by code: %w", err)
	}
	return t, nil
}

// ListTeams returns all teams ordered by company then team name.
func (s *Store) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+teamColumns+` FROM teams ORDER BY company_name, team_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

// UpdateTeam updates a team's editable fields.
func (s *Store) UpdateTeam(ctx context.Context, t *Team) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE teams SET company_name = ?, team_name = ?, code = ?,
		 strategy_statement = ?, image_prompt = ?, bullet_prompt = ?, updated_at = ?
		 WHERE team_id = ?`,
		strings.TrimSpace(t.CompanyName), strings.TrimSpace(t.TeamName),
		NormalizeCode(t.Code), t.StrategyStatement, t.ImagePrompt, t.BulletPrompt,
		fmtTime(time.Now()), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	return nil
}

// DeleteTeam removes a team. Members, sessions and responses cascade.
func (s *Store) DeleteTeam(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE team_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return nil
}
