package biz

import (
	"log/slog"

	"github.com/butlerbot/relay/internal/biz/repo"
	"github.com/butlerbot/relay/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Context  *usecase.ContextBuilderUsecase
	Resolver *usecase.ResolverUsecase
}

// NewUsecases wires the usecases over the given repositories.
// The resolver strips the same self prefix the context builder renders.
func NewUsecases(
	messageRepo repo.MessageRepo,
	reasoningRepo repo.ReasoningRepo,
	toolRepo repo.ToolRepo,
	promptCfg usecase.PromptConfig,
	resolverCfg usecase.ResolverConfig,
	logger *slog.Logger,
) *Usecases {
	contextUC := usecase.NewContextBuilderUsecase(messageRepo, promptCfg)
	resolverCfg.BotName = contextUC.BotName()
	return &Usecases{
		Context:  contextUC,
		Resolver: usecase.NewResolverUsecase(reasoningRepo, toolRepo, resolverCfg, logger),
	}
}
