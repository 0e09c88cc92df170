package fx

import (
	"league-matchmaker/internal/config"
	"league-matchmaker/internal/database"
	"league-matchmaker/internal/lifecycle"
	"league-matchmaker/internal/logger"
	"league-matchmaker/internal/notify"
	"league-matchmaker/internal/queue"
	"league-matchmaker/internal/repository"
	"league-matchmaker/internal/server"
	"league-matchmaker/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideQueues(cfg *config.Config) *queue.Manager {
	return queue.NewManager(cfg.QueueThresholds)
}

func ProvideBook(cfg *config.Config) *lifecycle.Book {
	return lifecycle.NewBook(cfg.VoteTimeout)
}

func ProvideNotifier(cfg *config.Config, logger zerolog.Logger) service.Notifier {
	if cfg.WebhookURL == "" {
		logger.Info().Msg("no webhook configured, summaries go to the log")
		return notify.NewLogNotifier(logger)
	}
	return notify.NewWebhookNotifier(cfg.WebhookURL, logger)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	// storage
	fx.Provide(fx.Annotate(repository.NewStore, fx.As(new(service.Store)))),
	// matchmaking state
	fx.Provide(ProvideQueues),
	fx.Provide(ProvideBook),
	fx.Provide(ProvideNotifier),
	// svc
	fx.Provide(service.NewQueueService),
	fx.Provide(service.NewMatchService),
	fx.Provide(service.NewPlayerService),
	// server
	fx.Provide(server.NewServer),
)
