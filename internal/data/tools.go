package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/biz/repo"
	"github.com/butlerbot/relay/internal/calc"
)

// calcToolRepo exposes the arithmetic evaluator as the evaluate tool
type calcToolRepo struct{}

// NewToolRepo creates the tool repository
func NewToolRepo() repo.ToolRepo {
	return calcToolRepo{}
}

func (calcToolRepo) Specs() []domain.ToolSpec {
	return []domain.ToolSpec{calc.Spec()}
}

// Execute parses the arguments strictly; nothing is guessed from malformed input
func (calcToolRepo) Execute(ctx context.Context, name, arguments string) (any, error) {
	if name != calc.ToolName {
		return nil, fmt.Errorf("%w: unknown tool %q", domain.ErrToolArgument, name)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(arguments)))
	dec.DisallowUnknownFields()
	var args calc.Arguments
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrToolArgument, arguments, err)
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after arguments: %s", domain.ErrToolArgument, arguments)
	}
	if strings.TrimSpace(args.Expression) == "" {
		return nil, fmt.Errorf("%w: missing expression", domain.ErrToolArgument)
	}

	return calc.Evaluate(args.Expression)
}
