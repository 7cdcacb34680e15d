package domain

import "errors"

// Failure taxonomy. Adapters wrap these with fmt.Errorf("...: %w", ...) and callers
// classify with errors.Is.
var (
	ErrStore            = errors.New("store error")
	ErrInvalidRequest   = errors.New("reasoning service rejected request")
	ErrTransient        = errors.New("reasoning service unavailable")
	ErrEmptyContent     = errors.New("reasoning service returned no content")
	ErrToolArgument     = errors.New("invalid tool arguments")
	ErrEvaluation       = errors.New("evaluation error")
	ErrToolLoopExceeded = errors.New("tool call loop exceeded")
	ErrTimeout          = errors.New("generation pass timed out")
)

// Reason returns a short, stable label for a failure, used in logs
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStore):
		return "store"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	case errors.Is(err, ErrToolArgument):
		return "tool_argument"
	case errors.Is(err, ErrEvaluation):
		return "evaluation"
	case errors.Is(err, ErrToolLoopExceeded):
		return "tool_loop_exceeded"
	default:
		return "unknown"
	}
}
