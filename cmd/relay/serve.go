package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/butlerbot/relay/internal/api"
	"github.com/butlerbot/relay/internal/biz"
	"github.com/butlerbot/relay/internal/data"
	"github.com/butlerbot/relay/internal/infra/feishu"
	"github.com/butlerbot/relay/internal/server"
	"github.com/butlerbot/relay/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay: scheduler, HTTP API and the Feishu transport when configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			// Graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Initialize clients
			var feishuClient *feishu.Client
			if cfg.Feishu.Enabled() {
				feishuClient = feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, logger)
			}

			// Initialize repository layer
			repos, err := data.NewRepositories(ctx, cfg.ToDataConfig(), feishuClient, logger)
			if err != nil {
				return fmt.Errorf("failed to create repositories: %w", err)
			}
			defer repos.Close()

			// Initialize usecase layer
			ucs := biz.NewUsecases(repos.Message, repos.Reasoning, repos.Tool, cfg.ToPromptConfig(), cfg.ToResolverConfig(), logger)

			// Initialize service layer
			scheduler := service.NewScheduler(repos.Message, repos.Delivery, ucs.Context, ucs.Resolver, cfg.ToSchedulerConfig(), logger)

			// Initialize HTTP API server
			apiServer := api.NewServer(scheduler, repos.Message, ucs.Context, cfg.APIAddr, logger)
			errCh := make(chan error, 2) // API server and Feishu
			go func() {
				if err := apiServer.Start(); err != nil {
					reportFailure(errCh, fmt.Errorf("API server: %w", err), logger)
				}
			}()

			// Feishu websocket transport
			var feishuServer *server.FeishuServer
			if feishuClient != nil {
				feishuServer = server.NewFeishuServer(feishuClient, repos.Members, scheduler, logger)
				go func() {
					if err := feishuServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
						reportFailure(errCh, fmt.Errorf("feishu: %w", err), logger)
					}
				}()
			} else {
				logger.Info("feishu not configured, replies go to the log")
			}

			logger.Info("relay started", "bot", ucs.Context.BotName(), "api_addr", cfg.APIAddr,
				"debounce", cfg.Relay.DebounceWindow, "store", cfg.Store.Driver)

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
			case err = <-errCh:
				logger.Error("component failed, shutting down", "error", err)
			}

			// Stop intake first, then let in-flight passes finish
			if feishuServer != nil {
				feishuServer.Stop()
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
				logger.Warn("API server shutdown", "error", stopErr)
			}
			scheduler.Close()
			return err
		},
	}
}

// reportFailure hands a component failure to the serve loop without blocking.
// Only the first failure triggers shutdown; later ones are logged.
func reportFailure(errCh chan<- error, err error, logger *slog.Logger) {
	select {
	case errCh <- err:
	default:
		logger.Error("component failed during shutdown", "error", err)
	}
}
