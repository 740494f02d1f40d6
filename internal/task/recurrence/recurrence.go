// Package recurrence turns a one-shot action into one that re-arms itself on
// a fixed interval and refuses to run when it wakes up too late.
package recurrence

import (
	"context"
	"fmt"
	"time"

	"shipsbell/internal/clock"
	"shipsbell/internal/task/scheduler"
)

const (
	DefaultEvery = 30 * time.Minute
	DefaultGrace = 30 * time.Minute
)

// Func is the body of a recurring event, called with its nominal time.
type Func func(ctx context.Context, t time.Time, priority int) error

// OverdueError reports a tick whose body was skipped because it came up more
// than Grace after its nominal time. It is informational only.
type OverdueError struct {
	Name string
	Due  time.Time
	Now  time.Time
}

func (e *OverdueError) Error() string {
	return fmt.Sprintf("%s due %s is overdue by %s, cancelled", e.Name, e.Due.Format(time.RFC3339), e.Late())
}

func (e *OverdueError) Late() time.Duration { return e.Now.Sub(e.Due) }

type Engine struct {
	// Clock is read to decide whether a tick is overdue. Defaults to the
	// scheduler's own clock.
	Clock clock.Clock
	Every time.Duration
	Grace time.Duration
	// OnOverdue is called for every skipped tick.
	OnOverdue func(*OverdueError)
}

func (e Engine) every() time.Duration {
	if e.Every <= 0 {
		return DefaultEvery
	}
	return e.Every
}

func (e Engine) grace() time.Duration {
	if e.Grace <= 0 {
		return DefaultGrace
	}
	return e.Grace
}

// Make returns the event for the first occurrence at first. Every time it
// fires at t it runs fn (unless overdue) and registers its successor at
// t+Every, so the chain never breaks on a missed tick.
func (e Engine) Make(name string, fn Func, first time.Time, priority int) scheduler.Event {
	return scheduler.Event{
		Name:     name,
		Due:      first,
		Priority: priority,
		Action:   e.handle(fn),
	}
}

// Schedule registers the first occurrence on s.
func (e Engine) Schedule(s *scheduler.Scheduler, name string, fn Func, first time.Time, priority int) scheduler.Handle {
	return s.Register(e.Make(name, fn, first, priority))
}

func (e Engine) handle(fn Func) scheduler.Action {
	return func(ctx context.Context, s *scheduler.Scheduler, ev scheduler.Event) error {
		clk := e.Clock
		if clk == nil {
			clk = s.Clock()
		}
		t := ev.Due

		if now := clk.Now(); !now.After(t.Add(e.grace())) {
			if err := fn(ctx, t, ev.Priority); err != nil {
				return err
			}
		} else if e.OnOverdue != nil {
			e.OnOverdue(&OverdueError{Name: ev.Name, Due: t, Now: now})
		}

		s.Register(e.Make(ev.Name, fn, t.Add(e.every()), ev.Priority))
		return nil
	}
}
