package calc

import "github.com/butlerbot/relay/internal/biz/domain"

// ToolName is the name the evaluate tool is declared under
const ToolName = "evaluate"

// Arguments is the argument schema of the evaluate tool
type Arguments struct {
	Expression string `json:"expression" jsonschema:"The arithmetic expression to evaluate, e.g. 12*7 or sqrt(2)^2"`
}

// Result is the payload returned to the model
type Result struct {
	Result float64 `json:"result"`
}

// Spec returns the evaluate tool declaration
func Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        ToolName,
		Description: "Evaluate an arithmetic expression and return the numeric result. Use it for any calculation instead of computing in your head.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "The arithmetic expression to evaluate, e.g. 12*7 or sqrt(2)^2",
				},
			},
			"required":             []string{"expression"},
			"additionalProperties": false,
		},
	}
}
