package synthesis

import (
	"fmt"
	"strings"
)

// BuildPrompt assembles the single analysis request sent to the model: the
// team's strategy statement (possibly empty) plus every observation with the
// participant's name, selected image identifier and bullets, followed by the
// task description and the output schema.
func BuildPrompt(strategyStatement string, observations []Observation) string {
	var responses strings.Builder
	for i, o := range observations {
		if i > 0 {
			responses.WriteString("\n\n")
		}
		fmt.Fprintf(&responses, "**%s** (Image: %s):\n", o.Name, o.ImageID)
		for _, b := range o.Bullets {
			fmt.Fprintf(&responses, "- %s\n", b)
		}
	}

	return fmt.Sprintf(`You are analyzing responses from a leadership team's monthly alignment diagnostic.

## Context
The team's strategy statement (the "3AM test" - what someone should know at 3AM):
"%s"

## Team Responses
Each team member selected an image representing their current state and provided bullet points explaining their choice:

%s

## Your Task
Synthesize these responses into five parts:

1. **Themes** (2-4 sentences): High-level summary of what the team is experiencing. Focus on patterns across responses.

2. **Attributed Statements**: Specific insights with attribution. Each statement has a short label, the full statement text, and the names of team members whose responses support it.

3. **Gap Diagnosis**: Identify the primary gap type from exactly one of these three options:
   - **Direction**: Team lacks shared understanding of goals or priorities
   - **Alignment**: Team's work is disconnected or uncoordinated
   - **Commitment**: Individual interests override collective success

4. **Gap Reasoning** (2-3 sentences): Explain WHY you diagnosed this specific gap type. Reference specific evidence from the responses that led to this conclusion.

5. **Suggested Recalibrations**: Provide exactly 3 specific, actionable recalibration actions the team could take to address the diagnosed gap. Each should be concrete and achievable within 30 days.

## Output Format
Respond ONLY with valid JSON matching this schema:
%s

IMPORTANT:
- gap_type MUST be exactly one of: "Direction", "Alignment", or "Commitment"
- gap_reasoning MUST explain WHY this gap type was chosen based on evidence
- statements array should contain 3-6 attributed insights
- Each participant must appear in at least one statement's participants list
- suggested_recalibrations MUST contain exactly 3 actionable items`,
		strategyStatement, responses.String(), ResultSchema)
}
