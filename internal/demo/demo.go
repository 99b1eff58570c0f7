// Package demo drives the pre-baked ClearBrief walkthrough for landing-page
// visitors: a fictional team's responses are merged with the visitor's own
// submission and synthesized live, with no database behind it.
package demo

import (
	"math/rand"
	"time"
)

// Company is the fictional demo company context.
type Company struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Revenue  string `json:"revenue"`
	Strategy string `json:"strategy"`
}

// ClearBrief is the demo company shown to every visitor.
var ClearBrief = Company{
	Name:     "ClearBrief",
	Industry: "Legal Tech SaaS",
	Revenue:  "$65M ARR",
	Strategy: "Help law firms win clients through transparency - open billing, open matters, no surprises.",
}

// TeamMember is one demo team member with a seed-picked name.
type TeamMember struct {
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	Role      string `json:"role"`
}

// namePools gives each role three candidate names. A slice keeps picking
// order stable across runs; map iteration order would not be.
var namePools = []struct {
	Role  string
	Names []string
}{
	{"CTO", []string{"Sarah Chen", "Sarah Martinez", "Sarah Williams"}},
	{"CFO", []string{"James Park", "James Thompson", "James Rivera"}},
	{"VP Sales", []string{"Michael Lee", "Michael Johnson", "Michael Okafor"}},
	{"COO", []string{"Rachel Kim", "Rachel Garcia", "Rachel Patel"}},
}

// DefaultSeed returns the hourly-changing default seed, so a returning
// visitor sees the same team names within the hour.
func DefaultSeed(now time.Time) int64 {
	return now.Unix() / 3600
}

// Team returns the demo team with names deterministically picked from each
// role's pool for the given seed.
func Team(seed int64) []TeamMember {
	rng := rand.New(rand.NewSource(seed))

	team := make([]TeamMember, 0, len(namePools))
	for _, pool := range namePools {
		name := pool.Names[rng.Intn(len(pool.Names))]
		team = append(team, TeamMember{
			Name:      name,
			FirstName: firstName(name),
			Role:      pool.Role,
		})
	}
	return team
}

func firstName(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == ' ' {
			return name[:i]
		}
	}
	return name
}
