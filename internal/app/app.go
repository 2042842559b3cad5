package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scorebot/internal/config"
	"scorebot/internal/deliver"
	"scorebot/internal/eventbus"
	"scorebot/internal/ops"
	"scorebot/internal/poll"
	"scorebot/internal/runtime/supervisor"
	"scorebot/internal/sched"
	"scorebot/internal/source"
	"scorebot/internal/storage"
	"scorebot/internal/transport/telegram"
	logx "scorebot/pkg/logx"
)

// StopReason is logged on shutdown so operators can tell a signal from a
// crash in the journal.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

// App wires the whole bot together: config manager, source client, delivery
// engine, poll controller, schedule trigger and the ops server, all under
// one supervisor.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	root logx.Logger
	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store  storage.Store
	client *source.Client
	engine *deliver.Engine
	ctl    *poll.Controller
	trig   *sched.Trigger
	ops    *ops.Service

	// tg is nil until a telegram destination is configured.
	tg    *telegram.Bot
	tgCfg telegram.Config
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, root := logx.New(mapLogConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	fail := func(err error) (*App, error) {
		_ = logs.Close()
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return fail(err)
	}

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return fail(err)
	}
	store, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		return fail(err)
	}
	if store == nil {
		store = storage.NewMemory()
	}
	log.Info("storage ready", logx.String("driver", sc.Driver))

	srcCfg, err := mapSourceConfig(cfg)
	if err != nil {
		return fail(err)
	}
	client, err := source.New(srcCfg, root.With(logx.String("comp", "source")))
	if err != nil {
		return fail(err)
	}

	var tg *telegram.Bot
	tgCfg := mapTelegramConfig(cfg)
	if hasTelegramDest(cfg) {
		tg, err = telegram.NewBot(tgCfg, root.With(logx.String("comp", "telegram")))
		if err != nil {
			return fail(fmt.Errorf("telegram: %w", err))
		}
	}

	engine := deliver.New(mapDeliverConfig(cfg), store, bus, root.With(logx.String("comp", "deliver")))
	senders, err := buildSenders(cfg, tg, root)
	if err != nil {
		return fail(err)
	}
	engine.SetSenders(senders)

	pollCfg, err := mapPollConfig(cfg)
	if err != nil {
		return fail(err)
	}
	ctl := poll.New(pollCfg, client, engine, bus, root.With(logx.String("comp", "poll")))

	spec, err := parseSchedule(cfg)
	if err != nil {
		return fail(err)
	}
	trig := sched.NewTrigger(sched.Config{
		Spec:       spec,
		RunOnStart: !cfg.Poll.SkipInitialRun,
	}, ctl.RunCycle, root.With(logx.String("comp", "sched")))

	opsCfg, err := mapOpsConfig(cfg)
	if err != nil {
		return fail(err)
	}
	opsSvc := ops.New(opsCfg, ctl.Snapshot, bus, root.With(logx.String("comp", "ops")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		root:    root,
		log:     log,
		logs:    logs,
		bus:     bus,
		store:   store,
		client:  client,
		engine:  engine,
		ctl:     ctl,
		trig:    trig,
		ops:     opsSvc,
		tg:      tg,
		tgCfg:   tgCfg,
	}, nil
}

// Done is closed when the app context ends (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// Transactional reload: a config revision is committed and published
	// only after it validates.
	a.cfgm.SetLogger(a.root.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	a.ops.Start(a.sup.Context())
	a.sup.Go("ops.watch", a.ops.Watch)

	a.sup.GoRestart("poll.trigger", a.trig.Run,
		supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(ctx context.Context) {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", ev.Type), logx.Time("time", ev.Time))
			}
		}
	})

	a.notifyReady()
	a.startWatchdog()

	cfg := a.cfgm.Get()
	a.log.Info("scorebot started",
		logx.Int("destinations", len(cfg.Destinations)),
		logx.String("schedule", a.trig.Schedule()))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		_ = a.store.Close()
		_ = a.logs.Close()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notifyStopping()

	// Cancel the run context first so every loop starts unwinding at once.
	a.sup.Cancel()

	a.step(ctx, "ops", 2*time.Second, func(c context.Context) error {
		a.ops.Stop(c)
		return nil
	})
	a.step(ctx, "supervisor", 5*time.Second, func(c context.Context) error {
		return a.sup.Wait(c)
	})
	a.step(ctx, "storage", time.Second, func(c context.Context) error {
		return a.store.Close()
	})

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

// step runs one shutdown stage with an upper bound so a single component
// cannot stall the whole stop. A stage that overruns is logged and left to
// finish in the background.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()

	stepCtx := ctx
	if max > 0 {
		// Respect the caller's deadline; never extend it.
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
	}
	var cancel context.CancelFunc
	if max > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, max)
		defer cancel()
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
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)))
		go func() {
			err := <-done
			a.log.Warn("stop step finished after deadline",
				logx.String("name", name),
				logx.Err(err),
				logx.Duration("took", time.Since(start)))
		}()
	}
}
