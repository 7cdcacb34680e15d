package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/butlerbot/relay/internal/biz/domain"
	"github.com/butlerbot/relay/internal/biz/repo"
)

// DefaultMaxToolRounds bounds the number of tool rounds in one resolution
const DefaultMaxToolRounds = 5

// LevelTrace is below slog.LevelDebug; the resolver logs every reasoning request at it
const LevelTrace = slog.Level(-8)

// FollowUpMode selects the transcript sent after a tool round
type FollowUpMode int

const (
	// FollowUpFull resends the original transcript plus every tool exchange so far
	FollowUpFull FollowUpMode = iota
	// FollowUpPair sends only the latest tool-call entry and its results
	FollowUpPair
)

func (m FollowUpMode) String() string {
	if m == FollowUpPair {
		return "pair"
	}
	return "full"
}

// ParseFollowUpMode parses "full" or "pair"
func ParseFollowUpMode(s string) (FollowUpMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return FollowUpFull, nil
	case "pair":
		return FollowUpPair, nil
	default:
		return FollowUpFull, fmt.Errorf("unknown follow-up mode %q (valid: full, pair)", s)
	}
}

// ResolverConfig contains resolution loop configuration
type ResolverConfig struct {
	BotName       string
	MaxToolRounds int
	FollowUp      FollowUpMode
}

// ResolverUsecase drives reasoning calls and tool executions until a final answer
type ResolverUsecase struct {
	reasoningRepo repo.ReasoningRepo
	toolRepo      repo.ToolRepo
	cfg           ResolverConfig
	logger        *slog.Logger
}

// NewResolverUsecase creates a new resolver usecase
func NewResolverUsecase(reasoningRepo repo.ReasoningRepo, toolRepo repo.ToolRepo, cfg ResolverConfig, logger *slog.Logger) *ResolverUsecase {
	if cfg.BotName == "" {
		cfg.BotName = DefaultPromptConfig.BotName
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolverUsecase{
		reasoningRepo: reasoningRepo,
		toolRepo:      toolRepo,
		cfg:           cfg,
		logger:        logger.With("component", "resolver"),
	}
}

type resolveState int

const (
	stateAwaitingModel resolveState = iota
	stateExecutingTool
	stateFinal
	stateFailed
)

// resolveRun is the accumulator threaded through the loop
type resolveRun struct {
	state     resolveState
	base      []domain.Entry // Transcript from the context builder
	exchanges []domain.Entry // Tool-call and tool-result entries so far
	request   []domain.Entry // Transcript for the next reasoning call
	pending   *domain.Completion
	rounds    int
	calls     int
	text      string
	err       error
}

func (r *resolveRun) fail(err error) {
	r.state = stateFailed
	r.err = err
}

// Resolve runs the loop for one generation pass. It never returns Suppressed: the
// sentinel comparison belongs to the caller.
func (uc *ResolverUsecase) Resolve(ctx context.Context, key domain.ConversationKey, transcript []domain.Entry) domain.GenerationOutcome {
	run := &resolveRun{
		state:   stateAwaitingModel,
		base:    transcript,
		request: transcript,
	}

	for {
		switch run.state {
		case stateAwaitingModel:
			uc.awaitModel(ctx, run)
		case stateExecutingTool:
			uc.executeTools(ctx, run)
		case stateFinal:
			uc.logger.Debug("resolved", "key", key.String(), "calls", run.calls, "tool_rounds", run.rounds)
			return domain.Final(run.text)
		case stateFailed:
			uc.logger.Warn("resolution failed",
				"key", key.String(),
				"reason", domain.Reason(run.err),
				"error", run.err,
				"calls", run.calls,
				"tool_rounds", run.rounds,
				"last_entries", summarizeEntries(domain.Tail(run.request, 3)),
			)
			return domain.Failed(run.err)
		}
	}
}

func (uc *ResolverUsecase) awaitModel(ctx context.Context, run *resolveRun) {
	if err := ctx.Err(); err != nil {
		run.fail(contextError(err))
		return
	}

	run.calls++
	if uc.logger.Enabled(ctx, LevelTrace) {
		uc.logger.Log(ctx, LevelTrace, "reasoning request", "call", run.calls, "entries", summarizeEntries(run.request))
	}
	completion, err := uc.reasoningRepo.Complete(ctx, run.request, uc.toolRepo.Specs())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			run.fail(fmt.Errorf("%w: reasoning call %d: %w", domain.ErrTimeout, run.calls, err))
			return
		}
		run.fail(fmt.Errorf("reasoning call %d: %w", run.calls, err))
		return
	}

	if completion.HasToolCalls() {
		if run.rounds >= uc.cfg.MaxToolRounds {
			run.fail(fmt.Errorf("%w: more than %d tool rounds", domain.ErrToolLoopExceeded, uc.cfg.MaxToolRounds))
			return
		}
		run.pending = completion
		run.state = stateExecutingTool
		return
	}

	text := strings.TrimSpace(completion.Content)
	if text == "" {
		run.fail(fmt.Errorf("reasoning call %d: %w", run.calls, domain.ErrEmptyContent))
		return
	}
	text = strings.TrimSpace(strings.TrimPrefix(text, domain.SelfPrefix(uc.cfg.BotName)))
	if text == "" {
		run.fail(fmt.Errorf("reasoning call %d: only a self prefix: %w", run.calls, domain.ErrEmptyContent))
		return
	}

	run.text = text
	run.state = stateFinal
}

func (uc *ResolverUsecase) executeTools(ctx context.Context, run *resolveRun) {
	run.rounds++
	call := domain.Entry{
		Role:      domain.RoleAssistant,
		Content:   run.pending.Content,
		ToolCalls: run.pending.ToolCalls,
	}
	run.pending = nil

	// Every call in the round gets a result, otherwise the follow-up is rejected.
	results := make([]domain.Entry, 0, len(call.ToolCalls))
	for _, req := range call.ToolCalls {
		if err := ctx.Err(); err != nil {
			run.fail(contextError(err))
			return
		}

		payload, err := uc.toolRepo.Execute(ctx, req.Name, req.Arguments)
		if err != nil {
			run.fail(fmt.Errorf("tool %s (call %s): %w", req.Name, req.CallID, err))
			return
		}

		result := domain.ToolResult{CallID: req.CallID, Payload: payload}
		content, err := encodeToolResult(result)
		if err != nil {
			run.fail(fmt.Errorf("tool %s (call %s): %w: %v", req.Name, req.CallID, domain.ErrEvaluation, err))
			return
		}

		uc.logger.Debug("tool executed", "tool", req.Name, "call_id", req.CallID, "arguments", req.Arguments, "result", content)
		results = append(results, domain.Entry{
			Role:       domain.RoleTool,
			Content:    content,
			ToolCallID: req.CallID,
		})
	}

	switch uc.cfg.FollowUp {
	case FollowUpPair:
		run.request = append([]domain.Entry{call}, results...)
	default:
		run.exchanges = append(run.exchanges, call)
		run.exchanges = append(run.exchanges, results...)
		request := make([]domain.Entry, 0, len(run.base)+len(run.exchanges))
		request = append(request, run.base...)
		run.request = append(request, run.exchanges...)
	}
	run.state = stateAwaitingModel
}

func encodeToolResult(r domain.ToolResult) (string, error) {
	b, err := json.Marshal(map[string]any{"result": r.Payload})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrTransient, err)
}

func summarizeEntries(entries []domain.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		content := e.Content
		if len(content) > 80 {
			content = content[:80] + "..."
		}
		line := fmt.Sprintf("%s: %s", e.Role, content)
		if len(e.ToolCalls) > 0 {
			line += fmt.Sprintf(" [%d tool call(s)]", len(e.ToolCalls))
		}
		out = append(out, line)
	}
	return out
}
