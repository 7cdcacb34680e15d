package repo

import (
	"context"

	"github.com/butlerbot/relay/internal/biz/domain"
)

// ReasoningRepo is the remote completion service interface
type ReasoningRepo interface {
	// Complete sends the transcript (and tool declarations) and returns either content
	// or tool calls. Errors wrap domain.ErrInvalidRequest, domain.ErrTransient or
	// domain.ErrEmptyContent.
	Complete(ctx context.Context, transcript []domain.Entry, tools []domain.ToolSpec) (*domain.Completion, error)
}

// ToolRepo executes side tools requested by the model
type ToolRepo interface {
	// Specs returns the tool declarations sent to the reasoning service
	Specs() []domain.ToolSpec

	// Execute runs the named tool with raw JSON arguments.
	// Argument errors wrap domain.ErrToolArgument, execution errors domain.ErrEvaluation.
	Execute(ctx context.Context, name, arguments string) (any, error)
}
