package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"shipsbell/internal/clock"
	logx "shipsbell/pkg/logx"
)

type Scheduler struct {
	mu sync.Mutex

	clk clock.Clock
	log logx.Logger

	queue eventHeap
	seq   uint64
	fired uint64

	running bool
	// interrupt cancels the current wait; set only while Run is sleeping.
	interrupt context.CancelFunc
}

func New(clk clock.Clock, log logx.Logger) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{clk: clk, log: log}
}

// Clock returns the time source the scheduler waits on.
func (s *Scheduler) Clock() clock.Clock { return s.clk }

// Register adds ev to the pending set. Duplicate due times are allowed.
//
// Safe to call from any goroutine, including from inside an action. If ev
// becomes the earliest event, a pending wait is cut short and re-evaluated.
func (s *Scheduler) Register(ev Event) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	ev.seq = s.seq
	heapPush(&s.queue, ev)

	if s.interrupt != nil && s.queue[0].seq == ev.seq {
		s.interrupt()
	}
	s.log.Trace("event registered",
		logx.String("name", ev.Name),
		logx.Time("due", ev.Due),
		logx.Int("priority", ev.Priority),
	)
	return Handle(ev.seq)
}

// Cancel removes a pending event. It reports whether the event was pending.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := heapRemoveBySeq(&s.queue, uint64(h))
	if idx < 0 {
		return false
	}
	if idx == 0 && s.interrupt != nil {
		s.interrupt()
	}
	return true
}

// Len returns the number of pending events.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run executes events in order until none are pending (returns nil), ctx is
// canceled (returns ctx.Err()), or an action fails (returns *ActionError).
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.interrupt = nil
		s.mu.Unlock()
	}()

	s.log.Debug("run loop started", logx.Int("pending", s.Len()))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			s.log.Debug("run loop finished: nothing pending")
			return nil
		}
		due := s.queue[0].Due
		wctx, cancel := context.WithCancel(ctx)
		s.interrupt = cancel
		s.mu.Unlock()

		err := s.clk.SleepUntil(wctx, due)

		s.mu.Lock()
		s.interrupt = nil
		s.mu.Unlock()
		cancel()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		// Interrupted by Register/Cancel, or woken by the clock: either way
		// re-read the head before running anything.

		ev, ok := s.popDue()
		if !ok {
			continue
		}
		if err := s.fire(ctx, ev); err != nil {
			return err
		}
	}
}

func (s *Scheduler) popDue() (Event, bool) {
	now := s.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 || s.queue[0].Due.After(now) {
		return Event{}, false
	}
	s.fired++
	return heapPop(&s.queue), true
}

func (s *Scheduler) fire(ctx context.Context, ev Event) error {
	s.log.Debug("event due",
		logx.String("name", ev.Name),
		logx.Time("due", ev.Due),
		logx.Int("priority", ev.Priority),
		logx.Duration("late", s.clk.Now().Sub(ev.Due)),
	)
	if ev.Action == nil {
		return nil
	}
	start := time.Now()
	if err := ev.Action(ctx, s, ev); err != nil {
		s.log.Error("event action failed", logx.String("name", ev.Name), logx.Err(err))
		return &ActionError{Name: ev.Name, Due: ev.Due, Err: err}
	}
	s.log.Trace("event done", logx.String("name", ev.Name), logx.Duration("took", time.Since(start)))
	return nil
}
