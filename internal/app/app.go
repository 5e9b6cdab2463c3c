// Package app wires the daemon: configuration, logging, durable stores, the
// Telegram adapter, the broadcast engine and the mailbox poll loop, held
// together by one explicit App object instead of package-level state.
package app

import (
	"context"
	"errors"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"

	"herald/internal/broadcast"
	"herald/internal/config"
	"herald/internal/poller"
	rtsup "herald/internal/runtime/supervisor"
	"herald/internal/storage"
	"herald/internal/store"
	kit "herald/internal/transport"
	telegram "herald/internal/transport/telegram"
	logx "herald/pkg/logx"
)

type App struct {
	cfg *config.Config

	log  logx.Logger
	logs *logx.Service

	subs    *store.Subscribers
	last    *store.LastMessage
	mailbox *store.Mailbox
	audit   storage.Store

	adapter kit.Adapter
	engine  *broadcast.Engine
	poll    *poller.Poller

	sup     *rtsup.Supervisor
	updates chan kit.Update

	retention time.Duration
	stopCron  func()
}

// New builds the daemon context object. Construction order: logging, durable
// state, gateway adapter, broadcast engine, poll loop. Nothing starts running
// until Start().
func New(cfg *config.Config, token string) (*App, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.ConsoleLogging(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	interval, err := config.ParseDurationOrDefault("poll.interval", cfg.Poll.Interval, time.Second)
	if err != nil {
		return nil, err
	}

	// Durable state first: the in-memory mirrors are rebuilt from the files,
	// never the other way around.
	subs := store.OpenSubscribers(cfg.SubscribersPath(), log.With(logx.String("comp", "subscribers")))
	last := store.NewLastMessage(cfg.LastMessagePath(), log.With(logx.String("comp", "lastmsg")))
	mailbox := store.NewMailbox(cfg.MailboxPath(), log.With(logx.String("comp", "mailbox")))

	var audit storage.Store
	var retention time.Duration
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		retention, err = config.ParseDurationField("storage.retention", cfg.Storage.Retention)
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		if st != nil {
			audit = st
			log.Info("audit storage enabled", logx.String("driver", cfg.Storage.Driver))
		}
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		if audit != nil {
			_ = audit.Close()
		}
		return nil, err
	}

	engine := broadcast.New(broadcast.Config{
		RatePerSec: cfg.Broadcast.RatePerSec,
	}, adapter, log.With(logx.String("comp", "broadcast")))

	poll := poller.New(poller.Config{Interval: interval},
		mailbox, last, subs, engine, audit,
		log.With(logx.String("comp", "poller")))

	return &App{
		cfg:       cfg,
		log:       log,
		logs:      logSvc,
		subs:      subs,
		last:      last,
		mailbox:   mailbox,
		audit:     audit,
		adapter:   adapter,
		engine:    engine,
		poll:      poll,
		updates:   make(chan kit.Update, 64),
		retention: retention,
	}, nil
}

// Start brings the daemon up: gateway first (registration events flow from
// it), then the update dispatcher and the poll loop under one supervisor.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sup.Go0("updates.dispatch", func(c context.Context) {
		a.dispatchLoop(c)
	})

	// The poll loop self-heals: a panic or an unexpected return restarts it
	// after a short backoff instead of silently stopping broadcasts.
	a.sup.GoRestart("mailbox.poll", a.poll.Run,
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
	)

	a.startMaintenance()

	// Under systemd, announce readiness; a no-op everywhere else.
	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyReady)

	a.log.Info("daemon started", logx.Int("subscribers", a.subs.Len()))
	return nil
}

// Stop tears down in reverse: cancel and await the poll loop and dispatcher,
// then release the gateway, then close storage and logging.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyStopping)

	if a.stopCron != nil {
		a.stopCron()
		a.stopCron = nil
	}

	a.sup.Cancel()
	if err := a.sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		a.log.Warn("supervisor stopped with error", logx.Err(err))
	}

	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop error", logx.Err(err))
	}

	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.log.Warn("audit close error", logx.Err(err))
		}
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
