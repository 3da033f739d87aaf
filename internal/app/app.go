package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"growthbot/internal/config"
	"growthbot/internal/eventbus"
	"growthbot/internal/notifier"
	"growthbot/internal/observability/status"
	"growthbot/internal/platform"
	rtsup "growthbot/internal/runtime/supervisor"
	"growthbot/internal/storage"
	"growthbot/internal/task/scheduler"
	"growthbot/internal/tracker"
	kit "growthbot/internal/transport"
	telegram "growthbot/internal/transport/telegram/adapter"
	"growthbot/internal/transport/telegram/router"
	logx "growthbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   *eventbus.MemBus
	store storage.Store

	adapter *telegram.Adapter

	tracker *tracker.Service
	sched   *scheduler.Service
	notif   *notifier.Service
	router  *router.Router
	status  *status.Service

	updates chan kit.Update
}

// NewApp loads the config and wires every component. Nothing runs until
// Start.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The adapter is the chat log sink, so it starts with a console logger.
	bootLog := logx.NewConsole(cfg.Logging.Level)
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: config.MustDuration(cfg.Telegram.PollTimeout),
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Set the chat target before enabling the chat sink so Apply doesn't
	// warn about a missing target.
	logCfg := mapLogConfig(cfg)
	bootCfg := logCfg
	bootCfg.Chat.Enabled = false
	logs, log := logx.New(bootCfg, ad)
	logs.SetChatTarget(logTarget(cfg))
	logs.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	store, err := storage.Open(ctx, mapStorageConfig(cfg), log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	log.Info("storage opened", logx.String("driver", cfg.Storage.Driver))

	notif := notifier.New(mapNotifierConfig(cfg), ad, bus, log)

	fetchers, err := buildFetchers(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}
	var enabled []platform.Fetcher
	for _, f := range fetchers {
		if f != nil {
			enabled = append(enabled, f)
		}
	}

	trk := tracker.New(tracker.Options{
		Store:    store,
		Sink:     notif,
		Bus:      bus,
		Fetchers: enabled,
		Log:      log,
	})
	// A corrupt or unreachable backend degrades to an empty registry.
	_ = trk.Load(ctx)

	sched, err := scheduler.New("sweep", mapSchedulerConfig(cfg), func(c context.Context) error {
		_, err := trk.Sweep(c)
		if errors.Is(err, tracker.ErrSweepRunning) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}, log)
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	rt := router.New(router.Options{
		Adapter: ad,
		Tracker: trk,
		Trigger: sched,
		Owners:  cfg.Telegram.OwnerUserIDs,
		Log:     log,
	})

	st := status.New(mapStatusConfig(cfg), status.Deps{
		Tracker:  trk,
		Schedule: sched,
		History:  notif,
	}, log)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		bus:     bus,
		store:   store,
		adapter: ad,
		tracker: trk,
		sched:   sched,
		notif:   notif,
		router:  rt,
		status:  st,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
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

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		return mapStatusConfig(cfg).Check()
	})

	// The notifier outlives the run context so Stop can drain its queue.
	a.notif.Start(context.WithoutCancel(a.sup.Context()))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.router.PublishMenu(a.sup.Context())
	a.status.Start(a.sup.Context())

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	a.sup.Go("tracker.schedule", a.sched.Run)

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
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})

	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.String("schedule", a.sched.Snapshot().Schedule),
		logx.Int("groups", len(a.tracker.Groups())),
	)
	return nil
}

// applyConfig pushes a reloaded config into every component that can take it
// live. Storage, the sweep schedule and the bot token need a restart.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	changed := config.ChangedSections(prev, next)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if pending := config.NeedsRestart(changed); len(pending) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(pending, ",")))
	}

	a.logs.SetChatTarget(logTarget(next))
	a.logs.Apply(mapLogConfig(next))
	a.router.SetOwners(next.Telegram.OwnerUserIDs)
	a.notif.Apply(mapNotifierConfig(next))

	if slices.Contains(changed, "youtube") || slices.Contains(changed, "instagram") {
		fetchers, err := buildFetchers(ctx, next, a.log)
		if err != nil {
			a.log.Warn("fetcher rebuild failed; keeping previous", logx.Err(err))
		} else {
			for p, f := range fetchers {
				a.tracker.SetFetcher(p, f)
			}
		}
	}

	a.status.Reconfigure(ctx, mapStatusConfig(next))

	a.log.Info("config reloaded", logx.String("changed", strings.Join(changed, ",")))
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so the sweep and the pollers start unwinding.
	a.sup.Cancel()

	// step bounds one shutdown action so a stuck component can't stall the rest.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, time.Until(dl))
		}
		stepCtx, cancel := context.WithTimeout(ctx, max(limit, 0))
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

	step("status", time.Second, func(c context.Context) error { a.status.Stop(c); return nil })
	step("notifier", 3*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	// Waiting here lets an in-flight sweep finish its last save before the
	// store goes away.
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(c context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
