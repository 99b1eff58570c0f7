package demo

import (
	"context"
	"fmt"

	"github.com/teamlens/teamlens/internal/library"
	"github.com/teamlens/teamlens/internal/synthesis"
)

// sampleResponses are the pre-baked team responses, keyed by role and worded
// to surface Alignment gap indicators. Names are filled in from the seeded
// team at request time.
var sampleResponses = []struct {
	Role          string
	ImageFilename string
	Bullets       []string
}{
	{
		Role:          "CTO",
		ImageFilename: "maze-in-a-green-field.jpg",
		Bullets:       []string{"We're building features but product and sales aren't synced on what clients actually need first"},
	},
	{
		Role:          "CFO",
		ImageFilename: "athlete-passing-relay-baton.jpg",
		Bullets:       []string{"Projects start strong but stall at the handoff between dev and client success"},
	},
	{
		Role:          "VP Sales",
		ImageFilename: "foggy-path.jpg",
		Bullets:       []string{"I'm selling capabilities we don't have yet while engineering builds things nobody asked for"},
	},
	{
		Role:          "COO",
		ImageFilename: "clock-gears-background.jpg",
		Bullets:       []string{"Everyone's working hard but the pieces aren't connecting"},
	},
}

// Observations returns the fixed sample responses attributed to the seeded
// team's names.
func Observations(seed int64) []synthesis.Observation {
	team := Team(seed)
	byRole := make(map[string]TeamMember, len(team))
	for _, m := range team {
		byRole[m.Role] = m
	}

	obs := make([]synthesis.Observation, 0, len(sampleResponses))
	for _, r := range sampleResponses {
		member, ok := byRole[r.Role]
		if !ok {
			continue
		}
		obs = append(obs, synthesis.Observation{
			Name:    member.Name,
			ImageID: library.OpaqueID(r.ImageFilename),
			Bullets: r.Bullets,
		})
	}
	return obs
}

// Synthesize merges the visitor's own observation with the sample set and
// runs a live synthesis. The visitor must always appear in the reveal: if
// the service's output omits them from every statement, their name is
// injected into the first statement rather than failing the request.
func Synthesize(ctx context.Context, client synthesis.Client, seed int64, self synthesis.Observation) (*synthesis.Result, error) {
	if client == nil {
		return nil, fmt.Errorf("no synthesis provider configured")
	}

	observations := append(Observations(seed), self)
	prompt := synthesis.BuildPrompt(ClearBrief.Strategy, observations)

	raw, err := client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("synthesis service call failed: %w", err)
	}

	data, err := synthesis.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	result, err := synthesis.ValidateResult(data)
	if err != nil {
		return nil, err
	}

	synthesis.EnsureParticipant(result, self.Name)
	return result, nil
}
