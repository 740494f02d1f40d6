// Package shipclock drives the bells: it seeds the half-hourly bell and watch
// events and runs them on the scheduler.
package shipclock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"shipsbell/internal/bells"
	"shipsbell/internal/clock"
	"shipsbell/internal/eventbus"
	"shipsbell/internal/logbook"
	"shipsbell/internal/task/recurrence"
	"shipsbell/internal/task/scheduler"
	"shipsbell/internal/watch"
	logx "shipsbell/pkg/logx"
)

const (
	DefaultStartupMargin = 10 * time.Second

	// Bells strike before the watch is announced at the same boundary.
	BellPriority  = 1
	WatchPriority = 2

	bellEvent  = "bell"
	watchEvent = "watch"
)

type Player interface {
	PlayBells(ctx context.Context, count int) error
}

type Announcer interface {
	Announce(ctx context.Context, watch string) error
}

type Config struct {
	StartupMargin time.Duration
	OverdueAfter  time.Duration
	Policy        bells.Policy
	Watches       watch.Table
}

type Driver struct {
	cfg       Config
	clk       clock.Clock
	player    Player
	announcer Announcer
	bus       eventbus.Bus
	log       logx.Logger

	sched *scheduler.Scheduler

	// A long suspend makes every missed half hour overdue at once.
	overdueWarn *rate.Limiter

	seedOnce sync.Once
	first    time.Time
}

// New builds a driver. bus may be nil.
func New(cfg Config, clk clock.Clock, player Player, announcer Announcer, bus eventbus.Bus, log logx.Logger) *Driver {
	if log.IsZero() {
		log = logx.Nop()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.StartupMargin <= 0 {
		cfg.StartupMargin = DefaultStartupMargin
	}
	if cfg.OverdueAfter <= 0 {
		cfg.OverdueAfter = recurrence.DefaultGrace
	}
	if len(cfg.Watches.Ranges()) == 0 {
		cfg.Watches = watch.Default()
	}
	log = log.With(logx.String("comp", "shipclock"))
	return &Driver{
		cfg:         cfg,
		clk:         clk,
		player:      player,
		announcer:   announcer,
		bus:         bus,
		log:         log,
		sched:       scheduler.New(clk, log.With(logx.String("comp", "scheduler"))),
		overdueWarn: rate.NewLimiter(rate.Every(time.Minute), 3),
	}
}

func (d *Driver) Scheduler() *scheduler.Scheduler { return d.sched }

// Seed registers the first bell and watch events. It is idempotent and
// returns the first boundary.
func (d *Driver) Seed() time.Time {
	d.seedOnce.Do(func() {
		d.first = FirstBoundary(d.clk.Now(), d.cfg.StartupMargin)
		eng := recurrence.Engine{
			Clock:     d.clk,
			Grace:     d.cfg.OverdueAfter,
			OnOverdue: d.overdue,
		}
		eng.Schedule(d.sched, bellEvent, d.strike, d.first, BellPriority)
		eng.Schedule(d.sched, watchEvent, d.announce, d.first, WatchPriority)
	})
	return d.first
}

// Run seeds the clock and runs it until ctx is done (returns nil) or a bell
// or announcement fails (returns a *scheduler.ActionError).
func (d *Driver) Run(ctx context.Context) error {
	first := d.Seed()
	d.log.Info("clock started", logx.Time("first", first))
	d.publish(eventbus.TypeClockStarted, nil)

	err := d.sched.Run(ctx)
	if ctx.Err() != nil {
		d.log.Info("clock stopped")
		return nil
	}
	return err
}

// NextChime reports the next boundary after now using the driver's policy and
// watch table.
func (d *Driver) NextChime(now time.Time) (Chime, error) {
	return NextChime(now, d.cfg.Policy, d.cfg.Watches)
}

func (d *Driver) strike(ctx context.Context, t time.Time, _ int) error {
	e := logbook.Entry{Due: t, Kind: logbook.KindBell, Event: bellEvent}

	n, ok := d.cfg.Policy.Chimes(t.Hour(), t.Minute())
	if !ok {
		e.Kind = logbook.KindWithheld
		e.Chimes = bells.ChimeCount(t.Hour(), t.Minute())
		e.At = d.clk.Now()
		d.log.Info("bell withheld", logx.Time("due", t), logx.Int("chimes", e.Chimes))
		d.publish(eventbus.TypeBellWithheld, e)
		return nil
	}

	d.log.Info("striking bells", logx.Time("due", t), logx.Int("chimes", n))
	if err := d.player.PlayBells(ctx, n); err != nil {
		return fmt.Errorf("play %d bells: %w", n, err)
	}
	e.Chimes = n
	e.At = d.clk.Now()
	d.publish(eventbus.TypeBellStruck, e)
	return nil
}

func (d *Driver) announce(ctx context.Context, t time.Time, _ int) error {
	name, err := d.cfg.Watches.For(t.Hour())
	if err != nil {
		return err
	}
	if err := d.announcer.Announce(ctx, name); err != nil {
		return fmt.Errorf("announce %q: %w", name, err)
	}
	d.log.Debug("watch announced", logx.Time("due", t), logx.String("watch", name))
	d.publish(eventbus.TypeWatchAnnounced, logbook.Entry{
		At:    d.clk.Now(),
		Due:   t,
		Kind:  logbook.KindWatch,
		Event: watchEvent,
		Watch: name,
	})
	return nil
}

func (d *Driver) overdue(oe *recurrence.OverdueError) {
	if d.overdueWarn.Allow() {
		d.log.Warn("cancel, overdue",
			logx.String("event", oe.Name),
			logx.Time("due", oe.Due),
			logx.Duration("late", oe.Late()),
		)
	} else {
		d.log.Debug("cancel, overdue", logx.String("event", oe.Name), logx.Time("due", oe.Due))
	}
	d.publish(eventbus.TypeOverdue, logbook.Entry{
		At:     oe.Now,
		Due:    oe.Due,
		Kind:   logbook.KindOverdue,
		Event:  oe.Name,
		LateMS: oe.Late().Milliseconds(),
	})
}

func (d *Driver) publish(typ string, data any) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(eventbus.Event{Type: typ, Time: d.clk.Now(), Data: data})
}
