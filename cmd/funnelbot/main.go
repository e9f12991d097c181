// Command funnelbot runs the drip funnel against the Telegram Bot API: it
// polls for updates, drives the funnel engine, processes delayed
// continuations, and serves the read-only admin panel.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petrijr/dripline"
	"github.com/petrijr/dripline/internal/admin"
	"github.com/petrijr/dripline/internal/config"
	"github.com/petrijr/dripline/internal/content"
	"github.com/petrijr/dripline/internal/transport/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("funnelbot exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	bot, err := telegram.New(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	logger.Info("telegram authenticated", slog.String("bot", bot.Username()))

	def := content.Default(content.Refs{
		MaterialDoc: cfg.Funnel.MaterialDoc,
		MediaNote:   cfg.Funnel.MediaNote,
		ChatLink:    cfg.Funnel.ChatLink,
		ChannelID:   cfg.Telegram.ChannelID,
	})

	metrics := &dripline.BasicMetrics{}
	runner, err := dripline.NewSQLiteRunner(db, dripline.Options{
		Definition: def,
		Dispatcher: bot,
		Membership: bot,
		Observer: dripline.NewCompositeObserver(
			dripline.NewLoggingObserver(logger),
			metrics,
		),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.StartWorkers(ctx, cfg.Funnel.Workers); err != nil {
		return err
	}
	defer runner.Stop()
	logger.Info("workers started",
		slog.Int("concurrency", cfg.Funnel.Workers),
		slog.Int("pending", runner.Pending()))

	var adminSrv *http.Server
	if cfg.Admin.Addr != "" {
		adminSrv = &http.Server{
			Addr:    cfg.Admin.Addr,
			Handler: admin.NewServer(runner.Engine, logger).Handler(),
		}
		go func() {
			logger.Info("admin panel listening", slog.String("addr", cfg.Admin.Addr))
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin panel failed", slog.Any("error", err))
			}
		}()
	}

	logger.Info("polling for updates")
	err = bot.Run(ctx, runner.Engine, cfg.Funnel.Source, logger)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if adminSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := adminSrv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("admin panel shutdown", slog.Any("error", serr))
		}
	}

	snap := metrics.Snapshot()
	logger.Info("shutting down",
		slog.Int64("users_started", snap.UsersStarted),
		slog.Int64("stage_transitions", snap.StageTransitions),
		slog.Int64("continuations_dropped", snap.ContinuationsDropped))
	return err
}
