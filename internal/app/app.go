package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/orgball2608/reddit-research-bot/internal/analyzer"
	"github.com/orgball2608/reddit-research-bot/internal/analyzer/analyzerimpl"
	"github.com/orgball2608/reddit-research-bot/internal/brands"
	"github.com/orgball2608/reddit-research-bot/internal/command"
	"github.com/orgball2608/reddit-research-bot/internal/command/commandimpl"
	"github.com/orgball2608/reddit-research-bot/internal/migrations"
	repositories "github.com/orgball2608/reddit-research-bot/internal/repositories/fx"
	"github.com/orgball2608/reddit-research-bot/internal/research"
	"github.com/orgball2608/reddit-research-bot/internal/research/researchimpl"
	"github.com/orgball2608/reddit-research-bot/internal/retrieval"
	"github.com/orgball2608/reddit-research-bot/internal/retrieval/retrievalimpl"
	"github.com/orgball2608/reddit-research-bot/internal/telegram"
	"github.com/orgball2608/reddit-research-bot/internal/telegram/telegramimpl"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"github.com/orgball2608/reddit-research-bot/pkg/pgx"
	"go.uber.org/fx"
)

const (
	migrateTimeout = 2 * time.Minute
	restartDelay   = 5 * time.Second
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		pgx.New,
		newClock,
		newRegistry,
		newCollector,
		newSources,
		newChain,
		newServer,
		brands.FromConfig,
	),
	fx.Provide(
		fx.Annotate(
			telegramimpl.New,
			fx.As(new(telegram.Client)),
		), fx.Annotate(
			retrievalimpl.New,
			fx.As(new(retrieval.Client)),
		), fx.Annotate(
			analyzerimpl.New,
			fx.As(new(analyzer.Analyzer)),
		), fx.Annotate(
			researchimpl.New,
			fx.As(new(research.Service)),
		),
		fx.Annotate(
			commandimpl.New,
			fx.As(new(command.Client)),
		),
	),
	repositories.Module,
	fx.Invoke(migrate),
	fx.Invoke(start),
)

func newClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

func migrate(c *config.Config, log logger.Logger) error {
	db, err := sql.Open("postgres", c.GetDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	if err := migrations.Up(ctx, db); err != nil {
		return err
	}
	log.Info("Database migrations applied")
	return nil
}

func start(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, clock clockwork.Clock,
	server *http.Server, tgClient telegram.Client, researchSvc research.Service,
	cmdClient command.Client, store *brands.Store) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go serve(log, server)

			if len(cfg.Telegram.AuthorizedUsers) == 0 {
				log.Warn("AUTHORIZED_USERS is empty, every command will be ignored")
			}
			if store.Len() == 0 {
				log.Warn("No brand profiles loaded", "path", cfg.Research.BrandsPath)
			}

			if err := researchSvc.ScheduleCleanup(runCtx); err != nil {
				log.Error("Schedule cleanup error", "Error", err)
				tgClient.NotifyAuthorized("Schedule cleanup error: " + err.Error())
			}

			go handleCommands(runCtx, log, clock, cmdClient)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			cmdClient.Close()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("failed to stop http server: %w", err)
			}
			return nil
		},
	})
}

// handleCommands keeps the command loop alive until ctx ends.
func handleCommands(ctx context.Context, log logger.Logger, clock clockwork.Clock, cmdClient command.Client) {
	for {
		err := cmdClient.HandleCommand(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Error("Command error", "Error", err)

		select {
		case <-ctx.Done():
			return
		case <-clock.After(restartDelay):
		}
	}
}
