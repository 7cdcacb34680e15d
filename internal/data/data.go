package data

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/butlerbot/relay/internal/biz/repo"
	"github.com/butlerbot/relay/internal/infra/feishu"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains data layer configuration
type Config struct {
	Driver     string
	SQLitePath string
	Postgres   PostgresConfig
	BotName    string
	Reasoning  ReasoningConfig
}

// Repositories contains all repositories
type Repositories struct {
	Message   repo.MessageRepo
	Reasoning repo.ReasoningRepo
	Tool      repo.ToolRepo
	Delivery  repo.DeliveryRepo
	Members   repo.MemberRepo // nil without a chat transport
}

// NewRepositories creates all repositories. A nil feishuClient delivers to the log.
func NewRepositories(ctx context.Context, cfg Config, feishuClient *feishu.Client, logger *slog.Logger) (*Repositories, error) {
	messageRepo, err := NewMessageRepo(ctx, cfg)
	if err != nil {
		return nil, err
	}

	repos := &Repositories{
		Message:   messageRepo,
		Reasoning: NewOpenAIRepo(cfg.Reasoning),
		Tool:      NewToolRepo(),
	}

	if feishuClient != nil {
		feishuRepo := NewFeishuRepo(feishuClient)
		repos.Delivery = feishuRepo
		repos.Members = feishuRepo
	} else {
		repos.Delivery = NewLogDeliveryRepo(logger)
	}
	return repos, nil
}

// NewMessageRepo opens the configured conversation store
func NewMessageRepo(ctx context.Context, cfg Config) (repo.MessageRepo, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLiteMessageRepo(cfg.SQLitePath, cfg.BotName)
	case DriverPostgres:
		return NewPostgresMessageRepo(ctx, cfg.Postgres, cfg.BotName)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Close releases the store
func (r *Repositories) Close() error {
	return r.Message.Close()
}
