// Package app wires the clock to its collaborators and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"shipsbell/internal/announce"
	"shipsbell/internal/audio"
	"shipsbell/internal/clock"
	"shipsbell/internal/config"
	"shipsbell/internal/eventbus"
	"shipsbell/internal/logbook"
	"shipsbell/internal/runtime/supervisor"
	"shipsbell/internal/shipclock"
	"shipsbell/pkg/systemd"
	logx "shipsbell/pkg/logx"
)

type App struct {
	cfgPath     string
	optionalCfg bool

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store logbook.Store

	clk       clock.Clock
	out       io.Writer
	player    audio.Player
	announcer *announce.Multi
	driver    *shipclock.Driver
	sd        *systemd.Notifier
}

type Option func(*App)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option { return func(a *App) { a.clk = clk } }

// WithPlayer replaces the configured bell player.
func WithPlayer(p audio.Player) Option { return func(a *App) { a.player = p } }

// WithConsole sends console announcements to w instead of stdout.
func WithConsole(w io.Writer) Option { return func(a *App) { a.out = w } }

// WithOptionalConfig runs on defaults when the config file does not exist.
func WithOptionalConfig() Option { return func(a *App) { a.optionalCfg = true } }

func NewApp(cfgPath string, opts ...Option) (*App, error) {
	a := &App{cfgPath: cfgPath, clk: clock.Real{}}
	for _, o := range opts {
		o(a)
	}

	a.cfgm = config.NewConfigManager(cfgPath)
	a.cfgm.SetOptional(a.optionalCfg)
	cfg, err := a.cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	a.logs, a.log = logx.New(LoggingConfig(cfg))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	log := a.log.With(logx.String("comp", "app"))

	a.bus = eventbus.New()
	a.sd = systemd.NewNotifier(cfg.Systemd.Notify, a.log)

	if lc, enabled, err := LogbookConfig(cfg); err != nil {
		a.closeAll()
		return nil, err
	} else if enabled {
		st, err := logbook.Open(lc, a.log.With(logx.String("comp", "logbook")))
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("logbook: %w", err)
		}
		a.store = st
		log.Info("logbook enabled", logx.String("driver", lc.Driver), logx.String("path", lc.Path))
	}

	if a.player == nil {
		ac, err := AudioConfig(cfg)
		if err != nil {
			a.closeAll()
			return nil, err
		}
		if a.player, err = audio.New(ac, a.log); err != nil {
			a.closeAll()
			return nil, fmt.Errorf("bells: %w", err)
		}
	}

	annCfg := AnnounceConfig(cfg)
	annCfg.Out = a.out
	if a.announcer, err = announce.New(annCfg, a.log); err != nil {
		a.closeAll()
		return nil, err
	}

	cc, err := ClockConfig(cfg)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	a.driver = shipclock.New(cc, a.clk, a.player, a.announcer, a.bus, a.log)
	return a, nil
}

func (a *App) Driver() *shipclock.Driver { return a.driver }

// Done is closed once the app is stopping, including after a fatal error.
func (a *App) Done() <-chan struct{} { return a.sup.Done() }

// Err returns the error that stopped the clock, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	log := a.log.With(logx.String("comp", "app"))
	a.sup = supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	if a.store != nil {
		events, unsub := a.bus.Subscribe(128)
		rec := logbook.NewRecorder(a.store, a.log)
		a.sup.Go0("logbook.record", func(c context.Context) {
			defer unsub()
			rec.Run(c, events)
		})
	}

	status, unsubStatus := a.bus.Subscribe(16)
	a.sup.Go0("systemd.status", func(c context.Context) {
		defer unsubStatus()
		a.followStatus(c, status)
	})
	a.sup.Go0("systemd.watchdog", a.sd.Watchdog)

	a.sup.Go("shipclock", a.driver.Run)

	a.sup.GoRestart("config.watch", a.cfgm.Watch, 250*time.Millisecond, 5*time.Second)
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.followConfig(c, sub)
	})

	a.sd.Ready()
	log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

// followStatus mirrors clock events into the systemd status line.
func (a *App) followStatus(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e, _ := ev.Data.(logbook.Entry)
			switch ev.Type {
			case eventbus.TypeClockStarted:
				a.sd.Status("waiting for " + a.driver.Seed().Format("15:04"))
			case eventbus.TypeBellStruck:
				a.sd.Status(fmt.Sprintf("%d bells at %s", e.Chimes, e.Due.Format("15:04")))
			case eventbus.TypeWatchAnnounced:
				a.sd.Status(fmt.Sprintf("%s, %s", e.Watch, e.Due.Format("15:04")))
			case eventbus.TypeOverdue:
				a.sd.Status(fmt.Sprintf("skipped overdue %s at %s", e.Event, e.Due.Format("15:04")))
			}
		}
	}
}

// followConfig applies logging changes live; everything else waits for a
// restart.
func (a *App) followConfig(ctx context.Context, sub chan *config.Config) {
	log := a.log.With(logx.String("comp", "app"))
	last := a.cfgm.Get()
	for {
		var next *config.Config
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub:
			if !ok {
				return
			}
			next = c
		}
		// Coalesce bursts: keep only the newest.
	drain:
		for {
			select {
			case c := <-sub:
				if c != nil {
					next = c
				}
			default:
				break drain
			}
		}

		sections, attrs := config.SummarizeConfigChange(last, next)
		last = next
		if len(sections) == 0 {
			log.Debug("config reload received, but no effective changes detected")
			continue
		}
		log.Info("config change summary", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

		for _, s := range sections {
			if s == "logging" {
				a.sd.Reloading()
				if err := a.logs.Apply(LoggingConfig(next)); err != nil {
					log.Warn("log file disabled", logx.Err(err))
				}
				a.sd.Ready()
			}
		}
		if rest := config.RestartRequired(sections); len(rest) > 0 {
			log.Warn("config changed; restart required for changes to take effect", logx.Strings("sections", rest))
		}
	}
}

// Stop cancels every goroutine and closes the outputs, each step bounded so
// one stuck component cannot stall shutdown.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	log := a.log.With(logx.String("comp", "app"))
	log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	if a.sup != nil {
		a.sup.Cancel()
		// A fatal error is read through Err; only a stuck goroutine matters here.
		a.step(ctx, "supervisor", 3*time.Second, func(c context.Context) error {
			_ = a.sup.Wait(c)
			return c.Err()
		})
	}
	a.step(ctx, "announce", time.Second, func(context.Context) error { return a.announcer.Close() })
	a.step(ctx, "player", time.Second, func(context.Context) error { return a.player.Close() })
	if a.store != nil {
		a.step(ctx, "logbook", time.Second, func(context.Context) error { return a.store.Close() })
	}

	log.Info("stopped")
	return a.logs.Close()
}

func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	log := a.log.With(logx.String("comp", "app"))
	start := time.Now()
	c, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(c)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-c.Done():
		log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}

// closeAll releases what NewApp opened before failing.
func (a *App) closeAll() {
	if a.announcer != nil {
		_ = a.announcer.Close()
	}
	if a.player != nil {
		_ = a.player.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
