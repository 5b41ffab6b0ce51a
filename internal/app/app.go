package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"dockbridge/internal/applet"
	"dockbridge/internal/config"
	"dockbridge/internal/dbusapi"
	"dockbridge/internal/dock"
	"dockbridge/internal/eventbus"
	"dockbridge/internal/notifier"
	"dockbridge/internal/observability/debug"
	"dockbridge/internal/resolver"
	rtsup "dockbridge/internal/runtime/supervisor"
	"dockbridge/internal/schedule"
	"dockbridge/internal/storage"
	logx "dockbridge/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/godbus/dbus/v5"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	tree   *applet.Tree
	loader *applet.Loader
	panel  *dock.PanelState
	disp   *dock.Dispatcher
	res    *resolver.Resolver
	proxy  *dock.Proxy

	notif *notifier.Service
	sched *schedule.Service
	dbus  *dbusapi.Server
	conn  atomic.Pointer[dbus.Conn]
	debug *debug.Service

	unwatch func()
	stopped atomic.Bool

	// swapped out in tests
	notifySD sdNotifier
	connect  func() (*dbus.Conn, error)
}

// New loads the config at cfgPath (a missing file means defaults) and builds
// every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load(true)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg), nil)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	notif := notifier.New(ncfg, log, bus, store)
	// Log lines above logging.notify.min_level surface as desktop notifications.
	logSvc.SetSink(notif)

	interval, maxWait, err := dockTimings(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	tree := applet.NewTree(applet.RootID)
	loader := applet.NewLoader(tree, bus, log)
	if err := loader.Attach(applet.RootID, applet.NewContainment(dock.PanelID)); err != nil {
		closeStore(store)
		return nil, err
	}

	panel := dock.NewPanelState(bus, log)
	disp := dock.NewDispatcher(cfg.Dock.DispatchQueue, log)

	a := &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		tree:     tree,
		loader:   loader,
		panel:    panel,
		disp:     disp,
		notif:    notif,
		sched:    schedule.New(mapSchedulerConfig(cfg), log),
		notifySD: systemdNotify,
		connect:  dbusapi.Connect,
	}

	events, unwatch := tree.Watch()
	a.res = resolver.New(tree, cfg.Dock.Required,
		resolver.WithInterval(interval),
		resolver.WithMaxWait(maxWait),
		resolver.WithEvents(events),
		resolver.WithBus(bus),
		resolver.WithLogger(log.With(logx.String("comp", "resolver"))),
	)
	a.unwatch = unwatch
	a.debug = debug.New(mapDebugConfig(cfg), log, a.readiness, func() any { return a.Status() })

	a.proxy = dock.New(dock.Deps{
		Tree:       tree,
		Siblings:   a.res.Binding(),
		Panel:      panel,
		Dispatcher: disp,
		Logger:     log,
	})

	if err := a.registerPrune(cfg); err != nil {
		closeStore(store)
		return nil, err
	}
	return a, nil
}

func closeStore(st storage.Store) {
	if st != nil {
		_ = st.Close()
	}
}

// Loader is where applets are registered and loaded. Siblings attached under
// dock.PanelID are picked up by the resolver.
func (a *App) Loader() *applet.Loader { return a.loader }

func (a *App) Proxy() *dock.Proxy { return a.proxy }

func (a *App) Resolver() *resolver.Resolver { return a.res }

func (a *App) Notifier() *notifier.Service { return a.notif }

func (a *App) Scheduler() *schedule.Service { return a.sched }

func (a *App) Bus() eventbus.Bus { return a.bus }

func (a *App) Logger() logx.Logger { return a.log }

// Conn returns the session bus connection, nil before Start or when the bus
// is disabled or unreachable.
func (a *App) Conn() *dbus.Conn { return a.conn.Load() }

// Done is closed when the app context ends, either through the Start context
// or because a supervised goroutine failed. Nil before Start.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		return nil
	}
	return a.sup.Context().Done()
}

// Err returns the first supervised failure, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// registerPrune upserts the retention job, or removes it when retention is
// off or storage is disabled.
func (a *App) registerPrune(cfg *config.Config) error {
	keep, spec, err := retentionConfig(cfg)
	if err != nil {
		return err
	}
	if a.store == nil || keep <= 0 {
		if a.sched.Remove(schedule.PruneJobName) {
			a.log.Info("retention prune disabled")
		}
		return nil
	}
	return a.sched.AddSchedule(schedule.PruneJobName, spec, time.Minute,
		schedule.PruneJob(a.store, keep, nil, a.log.With(logx.String("job", schedule.PruneJobName))))
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log),
		rtsup.WithCancelOnError(true),
	)
	runCtx := a.sup.Context()

	a.notif.Start(runCtx)
	a.sched.Start(runCtx)

	a.sup.Go("dock.dispatch", a.disp.Run)
	a.sup.Go("dock.resolver", func(c context.Context) error {
		defer a.unwatch()
		// A timeout is a degraded dock, not a reason to exit.
		if err := a.res.Run(c); err != nil && !errors.Is(err, resolver.ErrTimeout) {
			return err
		}
		return nil
	})
	a.sup.Go0("systemd.ready", func(c context.Context) { a.awaitResolution(c, a.res) })

	a.startDBus()
	a.debug.Start(runCtx)

	if a.log.Enabled(logx.LevelDebug) {
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
					a.log.Debug("event", logx.String("type", e.Type))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, rtsup.WithRestartBackoff(time.Second, 30*time.Second))

	a.log.Info("app started",
		logx.Strings("required", a.res.Binding().IDs()),
		logx.Bool("storage", a.store != nil),
		logx.Bool("scheduler", a.sched.Enabled()),
	)
	return nil
}

// startDBus exports the bus objects. No session bus is not fatal: the dock
// and notification center keep working in-process.
func (a *App) startDBus() {
	cfg := mapDBusConfig(a.cfgm.Get())
	if !cfg.Enabled {
		return
	}
	conn, err := a.connect()
	if err != nil {
		a.log.Warn("dbus unavailable; running without bus objects", logx.Err(err))
		return
	}
	srv := dbusapi.New(cfg, conn, a.proxy, a.notif, a.bus, a.log)
	if err := srv.Start(); err != nil {
		a.log.Warn("dbus export failed", logx.Err(err))
		_ = srv.Close()
		_ = conn.Close()
		return
	}
	a.conn.Store(conn)
	a.dbus = srv
	a.sup.Go("dbus.signals", srv.Run)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil || !a.stopped.CompareAndSwap(false, true) {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sdNotify(daemon.SdNotifyStopping)

	// Unwind background loops first.
	a.sup.Cancel()

	// Each step is bounded so one component cannot stall the whole stop.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if limit > 0 {
			if dl, ok := ctx.Deadline(); !ok || time.Until(dl) > limit {
				var cancel context.CancelFunc
				stepCtx, cancel = context.WithTimeout(ctx, limit)
				defer cancel()
			}
		}

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
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("dbus", time.Second, func(context.Context) error {
		if a.dbus == nil {
			return nil
		}
		err := a.dbus.Close()
		return errors.Join(err, a.conn.Load().Close())
	})
	step("debug", time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error {
		if err := a.sup.Wait(c); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	return a.logs.Close()
}
