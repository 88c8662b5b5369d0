package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"todo-bot/internal/bot"
	"todo-bot/internal/config"
	"todo-bot/internal/logger"
	"todo-bot/internal/repository"
	"todo-bot/internal/service"
)

const sweepTimeout = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("bot stopped with error", zap.Error(err))
	}
	zlog.Info("shutdown complete")
}

func run(cfg config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(cfg.DatabaseURL, zlog)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	clock := func() time.Time { return time.Now().In(cfg.Location) }

	taskRepo := repository.NewTaskRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	taskSvc := service.NewTaskService(taskRepo, reminderRepo, statsRepo, zlog.Named("tasks"), clock)

	telegramBot, err := bot.New(cfg.TelegramToken, taskSvc, &cfg, zlog)
	if err != nil {
		return err
	}

	reminderSvc := service.NewReminderService(reminderRepo, telegramBot, cfg.ReminderThrottle, zlog, clock)

	scheduler := service.NewSchedulerService(cfg.Location, logger.Cron(zlog))
	if _, err := scheduler.ScheduleInterval(cfg.ReminderCheckInterval, func() {
		jobCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		defer cancel()
		if _, err := reminderSvc.Sweep(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("reminder sweep", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	zlog.Info("todo bot started",
		zap.String("database", cfg.DatabaseURL),
		zap.Duration("reminder_check_interval", cfg.ReminderCheckInterval),
		zap.Duration("reminder_throttle", cfg.ReminderThrottle))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})
	g.Go(func() error {
		return telegramBot.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
