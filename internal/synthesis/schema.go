package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ResultSchema is the structured-output contract sent to the model and used
// to validate its response.
const ResultSchema = `{
  "type": "object",
  "properties": {
    "themes": {
      "type": "string",
      "description": "2-4 sentence summary of what the team is experiencing"
    },
    "statements": {
      "type": "array",
      "minItems": 3,
      "maxItems": 6,
      "items": {
        "type": "object",
        "properties": {
          "label": {"type": "string", "description": "Short label for the insight"},
          "statement": {"type": "string", "description": "Full statement text"},
          "participants": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string"},
            "description": "Team member names whose responses support this statement"
          }
        },
        "required": ["label", "statement", "participants"]
      }
    },
    "gap_type": {
      "type": "string",
      "enum": ["Direction", "Alignment", "Commitment"]
    },
    "gap_reasoning": {
      "type": "string",
      "description": "2-3 sentences explaining why this gap type was diagnosed"
    },
    "suggested_recalibrations": {
      "type": "array",
      "minItems": 3,
      "maxItems": 3,
      "items": {"type": "string"},
      "description": "Exactly 3 concrete recalibration actions achievable within 30 days"
    }
  },
  "required": ["themes", "statements", "gap_type", "gap_reasoning", "suggested_recalibrations"]
}`

// ValidateResult checks raw JSON against the output contract and unmarshals
// it. Schema violations and unparseable JSON are both reported as errors so
// the orchestrator treats them like any other service failure.
func ValidateResult(data []byte) (*Result, error) {
	schemaLoader := gojsonschema.NewStringLoader(ResultSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	res, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if !res.Valid() {
		var msgs []string
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("synthesis output failed validation: %s", strings.Join(msgs, "; "))
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal synthesis result: %w", err)
	}
	if !result.GapType.Valid() {
		return nil, fmt.Errorf("invalid gap type %q", result.GapType)
	}
	return &result, nil
}
