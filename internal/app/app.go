// Package app wires the bot together and owns its start/stop lifecycle.
package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"bosstimer/internal/backup"
	"bosstimer/internal/clock"
	"bosstimer/internal/commands"
	"bosstimer/internal/config"
	"bosstimer/internal/eventbus"
	"bosstimer/internal/health"
	"bosstimer/internal/notifier"
	"bosstimer/internal/reminder"
	rtsup "bosstimer/internal/runtime/supervisor"
	"bosstimer/internal/scheduler"
	"bosstimer/internal/state"
	"bosstimer/internal/storage"
	"bosstimer/internal/telemetry"
	kit "bosstimer/internal/transport"
	"bosstimer/internal/transport/telegram"
	logx "bosstimer/pkg/logx"
	"bosstimer/pkg/systemd"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	clk  clock.Real

	adapter *telegram.Adapter
	notif   *notifier.Service
	backup  *backup.Manager
	store   *state.Store
	engine  *reminder.Engine
	router  *commands.Router
	audit   storage.Store
	health  *health.Service
	sched   *scheduler.Service

	sups    *rtsup.Registry
	updates chan kit.Update
}

// New loads the config and builds every component. It authenticates
// against Telegram; a bad token is returned as an error.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	telemetry.Init()

	pollTimeout, err := config.DurationOr("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	bootLog := logx.NewConsole(cfg.Logging.Level).Named("telegram")
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		Channels:    cfg.Telegram.ChatIDs,
	}, bootLog)
	if err != nil {
		return nil, err
	}
	dir := ad.Directory()

	// Bootstrap with the chat sink off, set its target, then apply the
	// final config so Apply doesn't warn about a missing target.
	logCfg := mapLogConfig(cfg)
	bootCfg := logCfg
	bootCfg.Chat.Enabled = false
	logSvc, root := logx.New(bootCfg, ad)
	if to, ok := dir.Resolve(cfg.Channels.Log); ok {
		logSvc.SetChatTarget(to)
	}
	logSvc.Apply(logCfg)
	log := root.Named("app")
	cfgm.SetLogger(root.Named("config"))

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clk := clock.NewReal(loc)
	bus := eventbus.New()

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, ad, dir, root.Named("notifier"), bus)
	sink := directFallback{queue: notif, sender: ad, dir: dir, log: root.Named("notify")}

	store := state.New(cfg.Data.File, root.Named("state"))
	bm := backup.New(backup.Config{
		LivePath:      cfg.Data.File,
		Dir:           cfg.Data.BackupDir,
		Prefix:        cfg.Data.BackupPrefix,
		MaxBackups:    cfg.Data.MaxBackups,
		NoticeChannel: cfg.Channels.Notice,
	}, store.Locker(), root.Named("backup"), backup.WithNotifier(sink), backup.WithBus(bus))

	rcfg, err := mapReminderConfig(cfg)
	if err != nil {
		return nil, err
	}
	engine := reminder.New(rcfg, store, sink, root.Named("reminder"), bus)

	scfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	audit, err := storage.Open(scfg, root.Named("storage"))
	if err != nil {
		return nil, err
	}
	if audit != nil {
		log.Info("audit storage enabled", logx.String("driver", scfg.Driver))
	}

	cmdTimeout, err := config.DurationOr("commands.timeout", cfg.Commands.Timeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	router := commands.New(commands.Config{
		BossChannel:  cfg.Channels.Boss,
		EventChannel: cfg.Channels.Event,
		Workers:      cfg.Commands.Workers,
		Timeout:      cmdTimeout,
	}, ad, dir, store, audit, clk, root.Named("commands"))

	sched := scheduler.New(scheduler.Config{Timezone: cfg.Reminder.Timezone}, root.Named("scheduler"), bus)

	sups := rtsup.NewRegistry()
	sups.Register("telegram", ad.Supervisor)
	sups.Register("notifier", notif.Supervisor)
	sups.Register("commands", router.Supervisor)

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		clk:     clk,
		adapter: ad,
		notif:   notif,
		backup:  bm,
		store:   store,
		engine:  engine,
		router:  router,
		audit:   audit,
		sched:   sched,
		sups:    sups,
		updates: make(chan kit.Update, 256),
	}
	sups.Register("app", func() *rtsup.Supervisor { return a.sup })

	if cfg.HTTP.Enabled {
		a.health = health.New(health.Config{Addr: cfg.Addr()}, health.Deps{
			Ready: bm.Ready,
			State: func() (int, int) {
				doc := store.Snapshot()
				return len(doc.Bosses), len(doc.Events)
			},
			Details: map[string]func() any{
				"scheduler":   func() any { return sched.Snapshot() },
				"supervisors": func() any { return sups.Counters() },
				"notifier":    func() any { return map[string]any{"enabled": notif.Enabled(), "backlog": notif.Backlog()} },
			},
			Audit: audit,
		}, root.Named("health"))
		sups.Register("health", a.health.Supervisor)
	}

	if err := registerJobs(sched, cfg.Schedule, jobDeps{
		clock:  clk,
		engine: engine,
		backup: bm,
		notify: sink,
		vault:  func() string { return cfgm.Get().Channels.Vault },
		afterTick: func() {
			doc := store.Snapshot()
			telemetry.SetStateSize(len(doc.Bosses), len(doc.Events))
			a.syncLogTarget(cfgm.Get())
		},
	}); err != nil {
		return nil, err
	}
	return a, nil
}

// Done is closed when the app supervisor is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start restores data, loads state and starts every background service.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	c := a.sup.Context()

	if a.notif.Enabled() {
		a.notif.Start(c)
	}
	restored, err := a.backup.RestoreLatestBackup(c)
	if err != nil {
		a.log.Warn("backup restore failed; continuing with live file", logx.Err(err))
	} else if restored {
		a.log.Info("live data restored from backup")
	}
	doc := a.store.Load()
	telemetry.SetStateSize(len(doc.Bosses), len(doc.Events))
	a.log.Info("state loaded",
		logx.String("path", a.store.Path()),
		logx.Int("bosses", len(doc.Bosses)),
		logx.Int("event_series", len(doc.Events)),
	)

	if err := a.adapter.Start(c, a.updates); err != nil {
		return err
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	if a.health != nil {
		a.health.Start(c)
	}
	if err := a.sched.Start(c); err != nil {
		return err
	}
	if err := a.sched.RunNow(c, jobBackup); err != nil {
		a.log.Warn("startup backup failed", logx.Err(err))
	}

	a.sup.Go0("eventbus.log", func(c context.Context) {
		events, unsub := a.bus.Subscribe(128)
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		_ = systemd.Watchdog(c, systemd.WatchdogInterval())
	})
	if _, err := systemd.Ready(); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	}
	_, _ = systemd.Status("running")

	a.log.Info("app started")
	return nil
}

// applyConfig pushes the hot-reloadable sections to running components.
func (a *App) applyConfig(prev, next *config.Config) {
	changed, attrs, restart := config.SummarizeConfigChange(prev, next)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if len(restart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.Strings("sections", restart))
	}

	a.syncLogTarget(next)
	a.logs.Apply(mapLogConfig(next))

	a.engine.SetChannels(next.Channels.Boss, next.Channels.Event)
	a.router.SetChannels(next.Channels.Boss, next.Channels.Event)
	a.backup.Apply(next.Data.MaxBackups, next.Channels.Notice)

	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// syncLogTarget points the chat log sink at the log channel once its chat
// id is known.
func (a *App) syncLogTarget(cfg *config.Config) {
	if cfg == nil || a.logs == nil {
		return
	}
	to, _ := a.adapter.Directory().Resolve(cfg.Channels.Log)
	a.logs.SetChatTarget(to)
}

// Stop shuts components down in reverse start order.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	a.sup.Cancel()

	stopStep(ctx, a.log, "scheduler", 3*time.Second, a.sched.Stop)
	stopStep(ctx, a.log, "health", time.Second, func(c context.Context) error {
		if a.health != nil {
			return a.health.Stop(c)
		}
		return nil
	})
	stopStep(ctx, a.log, "adapter", 2*time.Second, a.adapter.Stop)
	stopStep(ctx, a.log, "notifier", 2*time.Second, func(c context.Context) error {
		a.notif.Stop(c)
		return nil
	})
	stopStep(ctx, a.log, "storage", time.Second, func(context.Context) error {
		if a.audit != nil {
			return a.audit.Close()
		}
		return nil
	})
	stopStep(ctx, a.log, "supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
