// Package app assembles the process: config, logging, storage, scheduler,
// notifier, reminder service and the conversation router, with an ordered
// shutdown that bounds every step.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"remibot/internal/bot"
	"remibot/internal/config"
	"remibot/internal/notify"
	"remibot/internal/reminder"
	"remibot/internal/scheduler"
	"remibot/internal/storage"
	kit "remibot/internal/transport"
	"remibot/internal/transport/telegram"
	logx "remibot/pkg/logx"
)

type App struct {
	cfgm   *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	adapter kit.Adapter
	store   storage.Store
	sched   *scheduler.Service
	router  *bot.Router

	updates chan kit.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	pollTimeout, err := config.ParseDurationOrDefault(
		"telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	logSvc, log := logx.New(loggingConfig(cfg), adapter)
	log = log.With(logx.String("comp", "app"))
	if cfg.Logging.Telegram.Enabled {
		logSvc.SetTelegramTarget(cfg.Logging.Telegram.ChatID)
	}
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationOrDefault(
		"storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	sched := scheduler.New(scheduler.Config{
		Workers:   cfg.Scheduler.Workers,
		QueueSize: cfg.Scheduler.QueueSize,
		Timezone:  cfg.Scheduler.Timezone,
	}, store, log.With(logx.String("comp", "scheduler")))

	notif := notify.New(notify.Config{
		RatePerSec: cfg.Notify.RatePerSec,
		Burst:      cfg.Notify.Burst,
	}, adapter, log.With(logx.String("comp", "notify")))

	rem := reminder.New(store, sched, notif, log.With(logx.String("comp", "reminder")))
	sched.OnFire(rem.Deliver)

	router := bot.NewRouter(adapter, rem, sched.Location(), log.With(logx.String("comp", "bot")))

	return &App{
		cfgm:    cfgm,
		logSvc:  logSvc,
		log:     log,
		adapter: adapter,
		store:   store,
		sched:   sched,
		router:  router,
		updates: make(chan kit.Update, 256),
	}, nil
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.sched.Start(ctx); err != nil {
		cancel()
		return err
	}
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		a.sched.Stop(ctx)
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Run(runCtx, a.updates)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.applyReloads(runCtx)
	}()

	a.log.Info("remibot started")
	return nil
}

// applyReloads picks up config file changes for the settings that can move
// at runtime. Everything else (token, storage path, timezone) requires a
// restart and is logged as such.
func (a *App) applyReloads(ctx context.Context) {
	sub := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logSvc.Apply(loggingConfig(cfg))
			if cfg.Logging.Telegram.Enabled {
				a.logSvc.SetTelegramTarget(cfg.Logging.Telegram.ChatID)
			} else {
				a.logSvc.SetTelegramTarget(0)
			}
			a.log.Info("logging settings reloaded; other sections apply on restart")
		}
	}
}

// Stop shuts the pipeline down back to front: no new updates, then no new
// firings, then flush and close everything that holds resources.
func (a *App) Stop(ctx context.Context) {
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop failed", logx.Err(err))
	}
	a.sched.Stop(ctx)

	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("shutdown timed out waiting for workers", logx.Err(ctx.Err()))
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("remibot stopped")
	a.logSvc.Close()
}
