package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/observability/debug"
	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	"remindbot/internal/transport/telegram"
	logx "remindbot/pkg/logx"
)

const updatesBuffer = 256

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter *telegram.Adapter
	notif   *notifier.Service
	engine  *scheduler.Service
	bot     *bot.Service
	debug   *debug.Service

	updates chan kit.Update
	started time.Time
}

// NewApp loads the config and builds every component. Nothing runs until Start.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return nil, errors.New("telegram.token is required (config file or " + config.EnvPrefix + "_TELEGRAM_TOKEN)")
	}

	// Logging comes up before the transport so the transport can log; the
	// alert sink is attached once the notifier exists.
	logSvc, root := logx.New(mapLogging(cfg), nil)
	log := root.With(logx.String("comp", "app"))

	tcfg, err := mapTelegram(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(tcfg, root.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	notif := notifier.New(mapNotifier(cfg), ad, root.With(logx.String("comp", "notifier")))
	logSvc.SetSender(notif)

	store, err := OpenStore(ctx, cfg, root)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	bus := eventbus.New()
	engine := scheduler.New(mapScheduler(cfg), store, notif,
		scheduler.WithLogger(root.With(logx.String("comp", "scheduler"))),
		scheduler.WithBus(bus),
	)

	bcfg, err := mapBot(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	frontend := bot.New(bcfg, ad, engine, store, root.With(logx.String("comp", "bot")))

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		notif:   notif,
		engine:  engine,
		bot:     frontend,
		updates: make(chan kit.Update, updatesBuffer),
	}

	dcfg, err := mapDebug(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.debug = debug.New(dcfg, debug.Sources{
		Store:       store,
		Engine:      engine,
		Deliveries:  notif.History,
		Supervisors: a.supervisorStats,
		BusDropped:  bus.Dropped,
	}, root)
	return a, nil
}

// Done is closed when the app supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start restores persisted reminders, then opens the front-end. Reminders
// are armed before the first command is accepted.
func (a *App) Start(ctx context.Context) error {
	a.started = time.Now()
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return errors.New("telegram.token cannot be removed while running")
		}
		return nil
	})

	rep, err := a.engine.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore reminders: %w", err)
	}
	a.log.Info("reminders restored",
		logx.Int("armed", rep.Armed),
		logx.Int("overdue", rep.Overdue),
		logx.Int("fired", rep.Fired),
		logx.Int("skipped", rep.Skipped),
	)
	a.engine.Start(a.sup.Context())

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go("bot.dispatch", func(c context.Context) error {
		return a.bot.Run(c, a.updates)
	})

	a.debug.Start(a.sup.Context())

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				logEvent(a.log, e)
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.String("timezone", a.engine.Location().String()),
		logx.Int("armed", a.engine.Armed()),
	)
	return nil
}

func logEvent(log logx.Logger, e eventbus.Event) {
	re, ok := e.Data.(eventbus.ReminderEvent)
	if !ok {
		log.Debug("event", logx.String("type", e.Type))
		return
	}
	fields := []logx.Field{
		logx.String("type", e.Type),
		logx.JobID(re.JobID),
		logx.Int64("external_id", re.ExternalID),
	}
	if !re.FireAt.IsZero() {
		fields = append(fields, logx.Time("fire_at", re.FireAt))
	}
	if re.Err != "" {
		fields = append(fields, logx.String("err", re.Err))
	}
	log.Debug("event", fields...)
}

// supervisorStats collects every long-lived supervisor for the status page.
func (a *App) supervisorStats() map[string][]supervisor.Stats {
	out := make(map[string][]supervisor.Stats, 4)
	add := func(name string, s *supervisor.Supervisor) {
		if s != nil {
			out[name] = s.Snapshot()
		}
	}
	add("app", a.sup)
	add("telegram", a.adapter.Supervisor())
	add("bot", a.bot.Supervisor())
	add("debug", a.debug.Supervisor())
	return out
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	// Adapter first so no new command arrives, then the engine so no timer
	// fires into a closed store.
	a.step(ctx, "adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	a.step(ctx, "engine", 5*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	a.step(ctx, "debug", time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	a.step(ctx, "supervisor", 3*time.Second, func(c context.Context) error {
		if err := a.sup.Wait(c); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown step bounded by max and the caller's deadline. A
// step that overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
